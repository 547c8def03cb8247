package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorSerializesSameClass(t *testing.T) {
	coordinator := NewClassCoordinator()
	ctx := context.Background()

	var active int32
	var overlapped int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := coordinator.Do(ctx, "class-1", func(ctx context.Context) error {
				if atomic.AddInt32(&active, 1) > 1 {
					atomic.StoreInt32(&overlapped, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&overlapped), "critical sections overlapped")
}

func TestCoordinatorIndependentClassesRunConcurrently(t *testing.T) {
	coordinator := NewClassCoordinator()
	ctx := context.Background()

	firstInside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- coordinator.Do(ctx, "class-a", func(ctx context.Context) error {
			close(firstInside)
			<-release
			return nil
		})
	}()

	<-firstInside

	// class-b must not queue behind class-a.
	err := coordinator.Do(ctx, "class-b", func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestCoordinatorContextCancellation(t *testing.T) {
	coordinator := NewClassCoordinator()

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- coordinator.Do(context.Background(), "class-1", func(ctx context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()

	<-inside

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := coordinator.Do(ctx, "class-1", func(ctx context.Context) error {
		t.Fatal("must not enter the critical section")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-done)

	// The lock is released and usable again.
	require.NoError(t, coordinator.Do(context.Background(), "class-1", func(ctx context.Context) error { return nil }))
}

func TestCoordinatorReleasesOnError(t *testing.T) {
	coordinator := NewClassCoordinator()
	ctx := context.Background()

	wantErr := errors.New("boom")
	err := coordinator.Do(ctx, "class-1", func(ctx context.Context) error { return wantErr })
	require.ErrorIs(t, err, wantErr)

	// A failed section must not wedge the class.
	acquired := make(chan struct{})
	go func() {
		_ = coordinator.Do(ctx, "class-1", func(ctx context.Context) error {
			close(acquired)
			return nil
		})
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released after an error")
	}
}

func TestCoordinatorCleansUpIdleLocks(t *testing.T) {
	coordinator := NewClassCoordinator()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, coordinator.Do(ctx, "class-1", func(ctx context.Context) error { return nil }))
	}

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	assert.Empty(t, coordinator.locks, "idle locks must be dropped from the registry")
}
