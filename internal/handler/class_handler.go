package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/service"
	appErrors "github.com/ScepterCode/Project-Nest3-sub010/pkg/errors"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/export"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/response"
)

// ClassHandler exposes class capacity and waitlist endpoints.
type ClassHandler struct {
	enrollments *service.EnrollmentService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(enrollments *service.EnrollmentService) *ClassHandler {
	return &ClassHandler{
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
	}
}

// Create godoc
// @Summary Provision the seat counter for a new class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	capacity, err := h.enrollments.CreateClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, capacity)
}

// Capacity godoc
// @Summary Display-only capacity snapshot of a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/capacity [get]
func (h *ClassHandler) Capacity(c *gin.Context) {
	snapshot, err := h.enrollments.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// AdjustCapacityRequest carries an admin capacity change.
type AdjustCapacityRequest struct {
	Capacity int `json:"capacity" binding:"gte=0"`
}

// AdjustCapacity godoc
// @Summary Adjust the seat capacity of a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body AdjustCapacityRequest true "New capacity"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/capacity [put]
func (h *ClassHandler) AdjustCapacity(c *gin.Context) {
	var req AdjustCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	capacity, err := h.enrollments.AdjustCapacity(c.Request.Context(), c.Param("id"), req.Capacity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

// Waitlist godoc
// @Summary Ordered waitlist of a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/waitlist [get]
func (h *ClassHandler) Waitlist(c *gin.Context) {
	entries, err := h.enrollments.ListWaitlist(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportRoster godoc
// @Summary Export the roster and waitlist of a class
// @Tags Classes
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /classes/{id}/roster/export [get]
func (h *ClassHandler) ExportRoster(c *gin.Context) {
	classID := c.Param("id")
	enrolled, queued, err := h.enrollments.Roster(c.Request.Context(), classID)
	if err != nil {
		response.Error(c, err)
		return
	}

	dataset := rosterDataset(enrolled, queued)
	filename := fmt.Sprintf("roster-%s-%s", classID, time.Now().UTC().Format("20060102"))

	switch c.DefaultQuery("format", "csv") {
	case "pdf":
		payload, err := h.pdf.Render(dataset, "Class Roster "+classID)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", payload)
	case "csv":
		payload, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		c.Data(http.StatusOK, "text/csv", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

func rosterDataset(enrolled []models.Enrollment, queued []models.WaitlistEntry) export.Dataset {
	dataset := export.Dataset{Headers: []string{"Student", "Status", "Waitlist Position", "Since"}}
	for _, enrollment := range enrolled {
		since := enrollment.RequestedAt
		if enrollment.DecidedAt != nil {
			since = *enrollment.DecidedAt
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":           enrollment.StudentID,
			"Status":            string(enrollment.Status),
			"Waitlist Position": "",
			"Since":             since.Format(time.RFC3339),
		})
	}
	for _, entry := range queued {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":           entry.StudentID,
			"Status":            string(models.EnrollmentStatusWaitlisted),
			"Waitlist Position": strconv.Itoa(entry.Position),
			"Since":             entry.JoinedAt.Format(time.RFC3339),
		})
	}
	return dataset
}
