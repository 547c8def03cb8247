package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScepterCode/Project-Nest3-sub010/internal/models"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/config"
)

type capturingSender struct {
	mu   sync.Mutex
	sent []Notification
	done chan struct{}
}

func (s *capturingSender) Send(_ context.Context, notification Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, notification)
	select {
	case s.done <- struct{}{}:
	default:
	}
	return nil
}

func TestNotificationServiceDelivers(t *testing.T) {
	sender := &capturingSender{done: make(chan struct{}, 1)}
	svc := NewNotificationService(sender, config.NotificationsConfig{
		Workers:    1,
		BufferSize: 4,
	}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify("student-1", models.EventWaitlistOffer, map[string]interface{}{"position": 1})

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "student-1", sender.sent[0].StudentID)
	assert.Equal(t, models.EventWaitlistOffer, sender.sent[0].EventType)
	assert.False(t, sender.sent[0].QueuedAt.IsZero())
}

func TestNotificationServiceDropsWhenStopped(t *testing.T) {
	sender := &capturingSender{done: make(chan struct{}, 1)}
	svc := NewNotificationService(sender, config.NotificationsConfig{Workers: 1}, nil)

	// Never started: the enqueue fails and is swallowed.
	svc.Notify("student-1", models.EventWaitlistJoined, nil)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Empty(t, sender.sent)
}
