package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/service"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/response"
)

// handlerStore is a minimal in-memory backend wired under a real
// EnrollmentService, so the handlers are exercised against the full
// admission flow rather than a canned mock.
type handlerStore struct {
	mu          sync.Mutex
	caps        map[string]*models.ClassCapacity
	enrollments map[string]*models.Enrollment
	waitlist    map[string]*models.WaitlistEntry
	seq         int
}

func newHandlerStore() *handlerStore {
	return &handlerStore{
		caps:        make(map[string]*models.ClassCapacity),
		enrollments: make(map[string]*models.Enrollment),
		waitlist:    make(map[string]*models.WaitlistEntry),
	}
}

func (s *handlerStore) id() string {
	s.seq++
	return "h-" + strconv.Itoa(s.seq)
}

func (s *handlerStore) Create(_ context.Context, capacity *models.ClassCapacity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *capacity
	s.caps[capacity.ClassID] = &copied
	return nil
}

func (s *handlerStore) Get(_ context.Context, classID string) (*models.ClassCapacity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	capacity, ok := s.caps[classID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *capacity
	return &copied, nil
}

func (s *handlerStore) TryReserveSeat(_ context.Context, classID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	capacity, ok := s.caps[classID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if capacity.EnrolledCount >= capacity.Capacity {
		return false, nil
	}
	capacity.EnrolledCount++
	return true, nil
}

func (s *handlerStore) ReleaseSeat(_ context.Context, classID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	capacity, ok := s.caps[classID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	if capacity.EnrolledCount > 0 {
		capacity.EnrolledCount--
	}
	return capacity.EnrolledCount, nil
}

func (s *handlerStore) SetCapacity(_ context.Context, classID string, newCapacity int) (*models.ClassCapacity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	capacity, ok := s.caps[classID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	capacity.Capacity = newCapacity
	copied := *capacity
	return &copied, nil
}

type handlerEnrollments struct{ *handlerStore }

func (s handlerEnrollments) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Enrollment
	for _, enrollment := range s.enrollments {
		if filter.StudentID != "" && enrollment.StudentID != filter.StudentID {
			continue
		}
		result = append(result, *enrollment)
	}
	return result, len(result), nil
}

func (s handlerEnrollments) FindActive(_ context.Context, studentID, classID string) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, enrollment := range s.enrollments {
		if enrollment.StudentID == studentID && enrollment.ClassID == classID && enrollment.Status.Active() {
			copied := *enrollment
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s handlerEnrollments) Create(_ context.Context, enrollment *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enrollment.ID == "" {
		enrollment.ID = s.id()
	}
	copied := *enrollment
	s.enrollments[enrollment.ID] = &copied
	return nil
}

func (s handlerEnrollments) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus, decidedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrollment, ok := s.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	enrollment.Status = status
	enrollment.DecidedAt = decidedAt
	return nil
}

func (s handlerEnrollments) ListEnrolledByClass(_ context.Context, classID string) ([]models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Enrollment
	for _, enrollment := range s.enrollments {
		if enrollment.ClassID == classID && enrollment.Status == models.EnrollmentStatusEnrolled {
			result = append(result, *enrollment)
		}
	}
	return result, nil
}

type handlerWaitlist struct{ *handlerStore }

func (s handlerWaitlist) Append(_ context.Context, classID, studentID string) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxPos := 0
	for _, entry := range s.waitlist {
		if entry.ClassID == classID && entry.Position > maxPos {
			maxPos = entry.Position
		}
	}
	entry := &models.WaitlistEntry{
		ID:          s.id(),
		StudentID:   studentID,
		ClassID:     classID,
		Position:    maxPos + 1,
		OfferStatus: models.OfferStatusNone,
		JoinedAt:    time.Now().UTC(),
	}
	s.waitlist[entry.ID] = entry
	copied := *entry
	return &copied, nil
}

func (s handlerWaitlist) Find(_ context.Context, classID, studentID string) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.waitlist {
		if entry.ClassID == classID && entry.StudentID == studentID {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s handlerWaitlist) ListByClass(_ context.Context, classID string) ([]models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.WaitlistEntry
	for _, entry := range s.waitlist {
		if entry.ClassID == classID {
			result = append(result, *entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (s handlerWaitlist) Depth(_ context.Context, classID string) (int, error) {
	entries, _ := s.ListByClass(context.Background(), classID)
	return len(entries), nil
}

func (s handlerWaitlist) NextCandidate(_ context.Context, classID string) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidate *models.WaitlistEntry
	for _, entry := range s.waitlist {
		if entry.ClassID != classID || entry.OfferStatus != models.OfferStatusNone {
			continue
		}
		if candidate == nil || entry.Position < candidate.Position {
			candidate = entry
		}
	}
	if candidate == nil {
		return nil, sql.ErrNoRows
	}
	copied := *candidate
	return &copied, nil
}

func (s handlerWaitlist) OutstandingOffer(_ context.Context, classID string) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.waitlist {
		if entry.ClassID == classID && entry.OfferStatus == models.OfferStatusOffered {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (s handlerWaitlist) MarkOffered(_ context.Context, id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.waitlist[id]
	if !ok {
		return sql.ErrNoRows
	}
	entry.OfferStatus = models.OfferStatusOffered
	entry.OfferExpiresAt = &expiresAt
	return nil
}

func (s handlerWaitlist) ResetOffer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.waitlist[id]
	if !ok {
		return sql.ErrNoRows
	}
	entry.OfferStatus = models.OfferStatusNone
	entry.OfferExpiresAt = nil
	return nil
}

func (s handlerWaitlist) Remove(_ context.Context, id string) ([]models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, ok := s.waitlist[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(s.waitlist, id)
	var shifted []models.WaitlistEntry
	for _, entry := range s.waitlist {
		if entry.ClassID == removed.ClassID && entry.Position > removed.Position {
			entry.Position--
			shifted = append(shifted, *entry)
		}
	}
	return shifted, nil
}

func (s handlerWaitlist) ClassesWithExpiredOffers(_ context.Context, now time.Time) ([]string, error) {
	return nil, nil
}

func newHandlerService(t *testing.T) (*service.EnrollmentService, *handlerStore) {
	t.Helper()
	store := newHandlerStore()
	svc := service.NewEnrollmentService(service.EnrollmentServiceConfig{
		Capacities:  store,
		Enrollments: handlerEnrollments{store},
		Waitlist:    handlerWaitlist{store},
	})
	return svc, store
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newEnrollmentRouter(t *testing.T) (*gin.Engine, *handlerStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, store := newHandlerService(t)
	enrollments := NewEnrollmentHandler(svc)
	classes := NewClassHandler(svc)

	router := gin.New()
	router.POST("/enrollments", enrollments.Request)
	router.DELETE("/enrollments", enrollments.Drop)
	router.POST("/enrollments/offer-response", enrollments.OfferResponse)
	router.POST("/classes", classes.Create)
	router.GET("/classes/:id/capacity", classes.Capacity)
	router.PUT("/classes/:id/capacity", classes.AdjustCapacity)
	router.GET("/classes/:id/waitlist", classes.Waitlist)
	router.GET("/classes/:id/roster/export", classes.ExportRoster)
	return router, store
}

func seedHandlerClass(t *testing.T, store *handlerStore, classID string, capacity int) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &models.ClassCapacity{
		ClassID:   classID,
		TeacherID: "teacher-1",
		Capacity:  capacity,
	}))
}

func TestEnrollmentHandlerRequest(t *testing.T) {
	router, store := newEnrollmentRouter(t)
	seedHandlerClass(t, store, "c1", 1)

	w := postJSON(t, router, "/enrollments", service.EnrollmentRequest{StudentID: "s1", ClassID: "c1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(models.EnrollmentStatusEnrolled), data["status"])

	// Second student lands on the waitlist at position 1.
	w = postJSON(t, router, "/enrollments", service.EnrollmentRequest{StudentID: "s2", ClassID: "c1"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data = envelope.Data.(map[string]interface{})
	assert.Equal(t, string(models.EnrollmentStatusWaitlisted), data["status"])
	assert.Equal(t, float64(1), data["position"])
}

func TestEnrollmentHandlerRequestInvalidBody(t *testing.T) {
	router, _ := newEnrollmentRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/enrollments", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerRequestUnknownClass(t *testing.T) {
	router, _ := newEnrollmentRouter(t)

	w := postJSON(t, router, "/enrollments", service.EnrollmentRequest{StudentID: "s1", ClassID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerOfferResponseWithoutOffer(t *testing.T) {
	router, store := newEnrollmentRouter(t)
	seedHandlerClass(t, store, "c1", 5)

	w := postJSON(t, router, "/enrollments/offer-response", service.OfferResponseRequest{
		StudentID: "s1",
		ClassID:   "c1",
		Response:  models.OfferResponseAccept,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestClassHandlerCapacityFlow(t *testing.T) {
	router, _ := newEnrollmentRouter(t)

	w := postJSON(t, router, "/classes", service.CreateClassRequest{
		ClassID:   "c1",
		TeacherID: "teacher-1",
		Capacity:  2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body, _ := json.Marshal(AdjustCapacityRequest{Capacity: 3})
	req := httptest.NewRequest(http.MethodPut, "/classes/c1/capacity", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/classes/c1/capacity", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["capacity"])
	assert.Equal(t, float64(3), data["available"])
}

func TestClassHandlerWaitlist(t *testing.T) {
	router, store := newEnrollmentRouter(t)
	seedHandlerClass(t, store, "c1", 0)

	for _, student := range []string{"s1", "s2"} {
		w := postJSON(t, router, "/enrollments", service.EnrollmentRequest{StudentID: student, ClassID: "c1"})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/classes/c1/waitlist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	entries := envelope.Data.([]interface{})
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "s1", first["student_id"])
	assert.Equal(t, float64(1), first["position"])
}

func TestClassHandlerExportRosterCSV(t *testing.T) {
	router, store := newEnrollmentRouter(t)
	seedHandlerClass(t, store, "c1", 1)

	w := postJSON(t, router, "/enrollments", service.EnrollmentRequest{StudentID: "s1", ClassID: "c1"})
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/classes/c1/roster/export?format=csv", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w2.Body.String(), "s1")
}

func TestEnrollmentHandlerDrop(t *testing.T) {
	router, store := newEnrollmentRouter(t)
	seedHandlerClass(t, store, "c1", 1)

	w := postJSON(t, router, "/enrollments", service.EnrollmentRequest{StudentID: "s1", ClassID: "c1"})
	require.Equal(t, http.StatusCreated, w.Code)

	body, _ := json.Marshal(service.DropRequest{StudentID: "s1", ClassID: "c1"})
	req := httptest.NewRequest(http.MethodDelete, "/enrollments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	capacity, err := store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, capacity.EnrolledCount)
}
