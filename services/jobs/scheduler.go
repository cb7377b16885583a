package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/trezcool/virtuallab/core"
)

// TokenPurger drops revoked tokens that expired before a given instant.
type TokenPurger interface {
	PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs the periodic housekeeping of the API process.
type Scheduler struct {
	scheduler *gocron.Scheduler
	purger    TokenPurger
	logger    core.Logger
	timeout   time.Duration
}

func NewScheduler(purger TokenPurger, logger core.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		purger:    purger,
		logger:    logger,
		timeout:   30 * time.Second,
	}
}

// Start schedules the purge every interval, first run included, and returns immediately.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("invalid purge interval %v", interval)
	}
	if _, err := s.scheduler.Every(interval).Do(s.PurgeRevokedTokens); err != nil {
		return errors.Wrap(err, "scheduling revoked tokens purge")
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// PurgeRevokedTokens runs one purge pass.
func (s *Scheduler) PurgeRevokedTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.purger.PurgeRevokedTokens(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to purge revoked tokens", err)
		return
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("purged %d revoked tokens", n))
	}
}
