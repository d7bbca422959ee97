package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/garnizeh/talentmail/internal/format"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/internal/upstream"
)

const roundupJobs = 5

// Roundup sends job alerts. It keeps no state between calls.
type Roundup struct {
	Jobs      JobSource
	Mailer    Mailer
	Formatter *format.Formatter
	Notifier  Notifier
	// BoardID selects where single ads are looked up. Zero searches live jobs
	// by ad id instead.
	BoardID        int64
	DailyTemplate  int64
	SingleTemplate int64
}

func (r *Roundup) formatter() *format.Formatter {
	if r.Formatter == nil {
		return format.New("", "")
	}
	return r.Formatter
}

// SendDailyRoundup mails the first live jobs, in the order the ATS returns
// them, to every opt-in recipient in one batch.
func (r *Roundup) SendDailyRoundup(ctx context.Context) Result {
	logger.Info("starting daily roundup")

	jobs, err := r.Jobs.LiveJobs(ctx)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("fetch live jobs: %w", err))
	}
	if len(jobs) == 0 {
		logger.Info("no live jobs, roundup skipped")
		return ok("No live jobs to send", nil)
	}
	if len(jobs) > roundupJobs {
		jobs = jobs[:roundupJobs]
	}
	items := r.formatter().Jobs(jobs)

	if r.DailyTemplate <= 0 {
		return r.fail(ctx, fmt.Errorf("%w: daily roundup template not configured", ErrConfig))
	}
	recipients, err := r.Mailer.OptInRecipients(ctx)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("fetch recipients: %w", err))
	}
	if len(recipients) == 0 {
		logger.Info("no recipients, roundup skipped")
		return ok("No recipients found", nil)
	}

	params := map[string]any{"jobs": items, "job_count": len(items)}
	if err := r.Mailer.Send(ctx, recipients, r.DailyTemplate, params); err != nil {
		return r.fail(ctx, fmt.Errorf("send roundup: %w", err))
	}

	logger.Info("daily roundup sent", slog.Int("jobs", len(items)), slog.Int("count", len(recipients)))
	return ok(fmt.Sprintf("Sent %d most recent jobs to %d recipients", len(items), len(recipients)), nil)
}

func (r *Roundup) fail(ctx context.Context, err error) Result {
	logger.Error("daily roundup failed", slog.Any("err", err))
	if r.Notifier != nil {
		if nerr := r.Notifier.Notify(ctx, "Daily roundup failed: "+err.Error()); nerr != nil {
			logger.Warn("notify failed", slog.Any("err", nerr))
		}
	}
	return failed(err, nil)
}

// SendJobAlert mails one job, usually after a new-job webhook.
func (r *Roundup) SendJobAlert(ctx context.Context, jobID int64) Result {
	job, err := r.Jobs.Job(ctx, jobID)
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return failed(fmt.Errorf("%w: job %d not found", ErrNoMaterial, jobID), nil)
		}
		return failed(fmt.Errorf("fetch job %d: %w", jobID, err), nil)
	}
	return r.sendSingle(ctx, *job)
}

// SendAdAlert mails one job ad. With a configured board the ad is read from
// that board; otherwise it is matched among live jobs.
func (r *Roundup) SendAdAlert(ctx context.Context, adID int64) Result {
	job, err := r.findAd(ctx, adID)
	if err != nil {
		return failed(err, nil)
	}
	if job == nil {
		logger.Warn("job ad not found", slog.Int64("ad_id", adID))
		return failed(fmt.Errorf("%w: job ad %d not found", ErrNoMaterial, adID), nil)
	}
	return r.sendSingle(ctx, *job)
}

func (r *Roundup) findAd(ctx context.Context, adID int64) (*models.Job, error) {
	if r.BoardID > 0 {
		job, err := r.Jobs.JobBoardAd(ctx, r.BoardID, adID)
		if upstream.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetch ad %d from board %d: %w", adID, r.BoardID, err)
		}
		return job, nil
	}

	jobs, err := r.Jobs.LiveJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch live jobs: %w", err)
	}
	for i := range jobs {
		if jobs[i].AdID == adID {
			return &jobs[i], nil
		}
	}
	return nil, nil
}

func (r *Roundup) sendSingle(ctx context.Context, job models.Job) Result {
	if r.SingleTemplate <= 0 {
		return failed(fmt.Errorf("%w: single job template not configured", ErrConfig), nil)
	}
	item := r.formatter().Job(job)

	recipients, err := r.Mailer.OptInRecipients(ctx)
	if err != nil {
		return failed(fmt.Errorf("fetch recipients: %w", err), nil)
	}
	if len(recipients) == 0 {
		return ok("No recipients found", item)
	}

	if err := r.Mailer.Send(ctx, recipients, r.SingleTemplate, item); err != nil {
		logger.Error("job alert failed", slog.Int64("job_id", job.JobID), slog.Any("err", err))
		return failed(fmt.Errorf("send job alert: %w", err), item)
	}
	logger.Info("job alert sent", slog.Int64("job_id", job.JobID), slog.Int("count", len(recipients)))
	return ok(fmt.Sprintf("Job alert sent to %d recipients", len(recipients)), item)
}
