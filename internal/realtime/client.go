package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/service"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/config"
	appErrors "github.com/ScepterCode/Project-Nest3-sub010/pkg/errors"
)

// Command actions accepted over a realtime connection.
const (
	ActionSubscribe     = "subscribe"
	ActionUnsubscribe   = "unsubscribe"
	ActionEnroll        = "enroll"
	ActionDrop          = "drop"
	ActionOfferResponse = "offer_response"
)

// Command is an inbound client request.
type Command struct {
	Action        string   `json:"action"`
	RequestID     string   `json:"request_id,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	StudentID     string   `json:"student_id,omitempty"`
	ClassID       string   `json:"class_id,omitempty"`
	Justification *string  `json:"justification,omitempty"`
	Response      string   `json:"response,omitempty"`
}

// Message is the envelope written back to the connection: either the result
// of a command, a broadcast event, or an error.
type Message struct {
	Type      string           `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Data      interface{}      `json:"data,omitempty"`
	Event     *models.Event    `json:"event,omitempty"`
	Error     *appErrors.Error `json:"error,omitempty"`
}

// Client binds one websocket connection to the hub and the enrollment core.
// Connection loss is a silent unsubscribe; no in-flight operation holds
// per-connection state.
type Client struct {
	conn        *websocket.Conn
	hub         *Hub
	sub         *Subscriber
	enrollments *service.EnrollmentService
	cfg         config.RealtimeConfig
	logger      *zap.Logger

	send chan Message
}

// NewClient wires a freshly upgraded connection.
func NewClient(conn *websocket.Conn, hub *Hub, enrollments *service.EnrollmentService, cfg config.RealtimeConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		conn:        conn,
		hub:         hub,
		sub:         hub.NewSubscriber(),
		enrollments: enrollments,
		cfg:         cfg,
		logger:      logger,
		send:        make(chan Message, cfg.SendBufferSize),
	}
}

// Run services the connection until it closes. It blocks; callers start it in
// its own goroutine per connection.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	go c.writePump(ctx, cancel)
	c.readPump(ctx)
	cancel()
	c.hub.Remove(c.sub)
	_ = c.conn.Close()
}

func (c *Client) readPump(ctx context.Context) {
	if c.cfg.ReadLimitBytes > 0 {
		c.conn.SetReadLimit(c.cfg.ReadLimitBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("realtime read failed", zap.Error(err))
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.reply(Message{Type: "error", Error: appErrors.Clone(appErrors.ErrValidation, "malformed command")})
			continue
		}
		c.handle(ctx, cmd)
	}
}

func (c *Client) handle(ctx context.Context, cmd Command) {
	switch cmd.Action {
	case ActionSubscribe:
		c.hub.Subscribe(c.sub, cmd.Topics...)
		c.reply(Message{Type: "ack", RequestID: cmd.RequestID, Data: map[string]interface{}{"topics": cmd.Topics}})
	case ActionUnsubscribe:
		c.hub.Unsubscribe(c.sub, cmd.Topics...)
		c.reply(Message{Type: "ack", RequestID: cmd.RequestID, Data: map[string]interface{}{"topics": cmd.Topics}})
	case ActionEnroll:
		result, err := c.enrollments.RequestEnrollment(ctx, service.EnrollmentRequest{
			StudentID:     cmd.StudentID,
			ClassID:       cmd.ClassID,
			Justification: cmd.Justification,
		})
		c.replyResult(cmd.RequestID, result, err)
	case ActionDrop:
		result, err := c.enrollments.DropEnrollment(ctx, service.DropRequest{
			StudentID: cmd.StudentID,
			ClassID:   cmd.ClassID,
		})
		c.replyResult(cmd.RequestID, result, err)
	case ActionOfferResponse:
		result, err := c.enrollments.RespondToOffer(ctx, service.OfferResponseRequest{
			StudentID: cmd.StudentID,
			ClassID:   cmd.ClassID,
			Response:  models.OfferResponse(cmd.Response),
		})
		c.replyResult(cmd.RequestID, result, err)
	default:
		c.reply(Message{Type: "error", RequestID: cmd.RequestID,
			Error: appErrors.Clone(appErrors.ErrValidation, "unknown action")})
	}
}

func (c *Client) replyResult(requestID string, result *models.EnrollmentResult, err error) {
	if err != nil {
		c.reply(Message{Type: "result", RequestID: requestID, Error: appErrors.FromError(err)})
		return
	}
	c.reply(Message{Type: "result", RequestID: requestID, Data: result})
}

// reply queues a message for the writer, dropping it if the connection is
// backed up.
func (c *Client) reply(msg Message) {
	select {
	case c.send <- msg:
	default:
		c.logger.Debug("reply dropped on full send buffer")
	}
}

func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			if !c.write(msg) {
				return
			}
		case event, ok := <-c.sub.Events():
			if !ok {
				return
			}
			if !c.write(Message{Type: "event", Event: &event}) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(msg Message) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("realtime write failed", zap.Error(err))
		return false
	}
	return true
}
