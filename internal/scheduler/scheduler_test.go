package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/garnizeh/talentmail/internal/campaign"
	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/scheduler"
)

type auth bool

func (a auth) IsAuthorized(ctx context.Context) bool { return bool(a) }

type roundup struct {
	calls  atomic.Int32
	result campaign.Result
}

func (r *roundup) SendDailyRoundup(ctx context.Context) campaign.Result {
	r.calls.Add(1)
	return r.result
}

func cfg() config.ScheduleConfig {
	return config.ScheduleConfig{Enabled: true, RoundupCron: "0 14 * * *", Timezone: "Australia/Sydney"}
}

func TestRunRoundup_SkipsWhenUnauthorized(t *testing.T) {
	r := &roundup{result: campaign.Result{Success: true}}
	s, err := scheduler.New(cfg(), auth(false), r, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res := s.RunRoundup(context.Background())
	if res.Success || res.Err != campaign.ErrAuth {
		t.Fatalf("expected auth failure, got %+v", res)
	}
	if r.calls.Load() != 0 {
		t.Fatalf("roundup should not run")
	}
}

func TestRunRoundup_Runs(t *testing.T) {
	r := &roundup{result: campaign.Result{Success: true, Message: "Sent 5 most recent jobs to 2 recipients"}}
	s, err := scheduler.New(cfg(), auth(true), r, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res := s.RunRoundup(context.Background())
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if r.calls.Load() != 1 {
		t.Fatalf("expected one roundup, got %d", r.calls.Load())
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	bad := cfg()
	bad.Timezone = "Mars/Olympus"
	if _, err := scheduler.New(bad, auth(true), &roundup{}, nil); err == nil {
		t.Fatalf("expected timezone error")
	}

	bad = cfg()
	bad.RoundupCron = "every day"
	if _, err := scheduler.New(bad, auth(true), &roundup{}, nil); err == nil {
		t.Fatalf("expected cron parse error")
	}
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := scheduler.New(cfg(), auth(true), &roundup{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
