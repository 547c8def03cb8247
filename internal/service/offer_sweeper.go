package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OfferSweeper periodically resolves waitlist offers whose window has passed.
// Expiry is also detected lazily when a student responds; the sweep exists so
// silent students do not hold a seat offer forever.
type OfferSweeper struct {
	enrollments *EnrollmentService
	interval    time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewOfferSweeper constructs the sweeper.
func NewOfferSweeper(enrollments *EnrollmentService, interval time.Duration, logger *zap.Logger) *OfferSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferSweeper{enrollments: enrollments, interval: interval, logger: logger}
}

// Start launches the sweep loop. Safe to call once.
func (s *OfferSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.started = true
	go s.run(ctx)
	s.logger.Sugar().Infow("offer sweeper started", "interval", s.interval)
}

// Stop cancels the loop and waits for it to exit.
func (s *OfferSweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.mu.Unlock()
	<-done
	s.logger.Sugar().Infow("offer sweeper stopped")
}

func (s *OfferSweeper) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.enrollments.SweepExpiredOffers(ctx)
			if err != nil {
				s.logger.Error("offer sweep pass failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				s.logger.Info("expired offers swept", zap.Int("count", swept))
			}
		}
	}
}
