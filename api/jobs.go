package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/garnizeh/talentmail/internal/campaign"
	"github.com/garnizeh/talentmail/internal/models"
)

// Roundup is the stateless job alert workflow.
type Roundup interface {
	SendDailyRoundup(ctx context.Context) campaign.Result
	SendJobAlert(ctx context.Context, jobID int64) campaign.Result
	SendAdAlert(ctx context.Context, adID int64) campaign.Result
}

// LiveJobLister lists open jobs for operator pickers.
type LiveJobLister interface {
	LiveJobs(ctx context.Context) ([]models.Job, error)
}

type JobsHandler struct {
	roundup Roundup
	jobs    LiveJobLister
}

func NewJobsHandler(roundup Roundup, jobs LiveJobLister) *JobsHandler {
	return &JobsHandler{roundup: roundup, jobs: jobs}
}

type jobSummary struct {
	AdID      int64  `json:"adId"`
	JobID     int64  `json:"jobId"`
	Title     string `json:"title"`
	Reference string `json:"reference,omitempty"`
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.LiveJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]jobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobSummary{AdID: j.AdID, JobID: j.JobID, Title: j.Title, Reference: j.Reference})
	}
	writeJSON(w, map[string]any{"jobs": out}, http.StatusOK)
}

// webhookID accepts a numeric or string id.
type webhookID int64

func (id *webhookID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n = json.Number(s)
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return err
	}
	*id = webhookID(v)
	return nil
}

type webhookPayload struct {
	Job *struct {
		JobID webhookID `json:"jobId"`
	} `json:"job"`
	JobID webhookID `json:"jobId"`
}

// Webhook handles the ATS new-job notification with a single job alert.
func (h *JobsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, errorResponse{Error: "Invalid request"}, http.StatusBadRequest)
		return
	}
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		logger.Warn("webhook payload rejected", slog.Any("err", err))
		writeJSON(w, errorResponse{Error: "Invalid payload"}, http.StatusBadRequest)
		return
	}

	id := int64(p.JobID)
	if p.Job != nil && p.Job.JobID > 0 {
		id = int64(p.Job.JobID)
	}
	if id <= 0 {
		writeJSON(w, errorResponse{Error: "No job ID in payload"}, http.StatusBadRequest)
		return
	}

	logger.Info("webhook received", slog.Int64("job_id", id))
	writeResult(w, h.roundup.SendJobAlert(context.WithoutCancel(r.Context()), id))
}

func (h *JobsHandler) TriggerDailyRoundup(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.roundup.SendDailyRoundup(context.WithoutCancel(r.Context())))
}

func (h *JobsHandler) TriggerSingleJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "adId")
	if !ok {
		writeJSON(w, errorResponse{Error: "Bad Request", Message: "invalid ad id"}, http.StatusBadRequest)
		return
	}
	writeResult(w, h.roundup.SendAdAlert(context.WithoutCancel(r.Context()), id))
}
