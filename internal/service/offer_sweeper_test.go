package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferSweeperResolvesExpiredOffers(t *testing.T) {
	store := newMemStore()
	seedClass(t, store, "c1", 1)
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	requestWaitlist(t, svc, "c1", "a", "b")
	_, err := svc.DropEnrollment(ctx, DropRequest{StudentID: "a", ClassID: "c1"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	sweeper := NewOfferSweeper(svc, 10*time.Millisecond, nil)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		_, err := store.Find(context.Background(), "c1", "b")
		return err == sql.ErrNoRows
	}, 2*time.Second, 20*time.Millisecond, "expired offer was not swept")

	depth, err := store.Depth(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestOfferSweeperStartStopIdempotent(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newTestService(t, store)

	sweeper := NewOfferSweeper(svc, time.Minute, nil)
	sweeper.Start(context.Background())
	sweeper.Start(context.Background())
	sweeper.Stop()
	sweeper.Stop()
}

func TestLazyExpiryTracksSweptState(t *testing.T) {
	store := newMemStore()
	seedClass(t, store, "c1", 1)
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	requestWaitlist(t, svc, "c1", "a", "b")
	_, err := svc.DropEnrollment(ctx, DropRequest{StudentID: "a", ClassID: "c1"})
	require.NoError(t, err)

	entry, err := store.Find(ctx, "c1", "b")
	require.NoError(t, err)
	assert.False(t, entry.OfferExpired(time.Now().UTC()))
	assert.True(t, entry.OfferExpired(time.Now().UTC().Add(2*time.Hour)))
}
