package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/realtime"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/service"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/config"
)

// RealtimeHandler upgrades HTTP connections to the websocket broadcast layer.
type RealtimeHandler struct {
	hub         *realtime.Hub
	enrollments *service.EnrollmentService
	metrics     *service.MetricsService
	cfg         config.RealtimeConfig
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewRealtimeHandler constructs RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub, enrollments *service.EnrollmentService, metrics *service.MetricsService, cfg config.RealtimeConfig, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if cfg.AllowAllOrigins {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return &RealtimeHandler{
		hub:         hub,
		enrollments: enrollments,
		metrics:     metrics,
		cfg:         cfg,
		upgrader:    upgrader,
		logger:      logger,
	}
}

// Connect godoc
// @Summary Open a realtime connection
// @Tags Realtime
// @Router /ws [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	client := realtime.NewClient(conn, h.hub, h.enrollments, h.cfg, h.logger)
	client.Run(c.Request.Context())
}
