// Package scheduler runs the daily job roundup on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"github.com/garnizeh/talentmail/internal/campaign"
	"github.com/garnizeh/talentmail/internal/config"
)

// Authorizer reports whether the ATS integration holds usable tokens.
type Authorizer interface {
	IsAuthorized(ctx context.Context) bool
}

// RoundupSender runs one daily roundup.
type RoundupSender interface {
	SendDailyRoundup(ctx context.Context) campaign.Result
}

type Scheduler struct {
	cron    *cron.Cron
	auth    Authorizer
	roundup RoundupSender
	timeout time.Duration
	logger  *slog.Logger
}

// New parses the schedule in the configured timezone. The roundup is not
// started until Start is called.
func New(cfg config.ScheduleConfig, auth Authorizer, roundup RoundupSender, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		auth:    auth,
		roundup: roundup,
		timeout: 10 * time.Minute,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(cfg.RoundupCron, func() { s.RunRoundup(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse roundup schedule %q: %w", cfg.RoundupCron, err)
	}
	return s, nil
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("roundup scheduled", slog.Time("next", e.Next))
	}
}

// Stop halts the cron loop and waits for a running roundup or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// RunRoundup is the scheduled job. It skips when the ATS is not authorized
// and never retries; failures are reported by the roundup itself.
func (s *Scheduler) RunRoundup(ctx context.Context) campaign.Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if !s.auth.IsAuthorized(ctx) {
		s.logger.Warn("scheduled roundup skipped, ats not authorized")
		return campaign.Result{Success: false, Message: "not authorized", Err: campaign.ErrAuth}
	}

	s.logger.Info("running scheduled roundup")
	r := s.roundup.SendDailyRoundup(ctx)
	if !r.Success {
		s.logger.Error("scheduled roundup failed", slog.String("message", r.Message), slog.Any("err", r.Err))
		return r
	}
	s.logger.Info("scheduled roundup done", slog.String("message", r.Message))
	return r
}
