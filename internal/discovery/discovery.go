// Package discovery finds candidates with recent interview evidence in the ATS and
// hydrates their full records.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/garnizeh/talentmail/internal/ats"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/internal/upstream"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by discovery. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	logger = l
}

// Source is the ATS surface the engine reads from.
type Source interface {
	ApplicationLookup
	Notes(ctx context.Context, noteType string, after time.Time, limit int) ([]ats.Record, error)
	RecentNotes(ctx context.Context, after time.Time, limit int) ([]ats.Record, error)
	Note(ctx context.Context, id string) (ats.Record, error)
	Activities(ctx context.Context, after time.Time, limit int) ([]ats.Record, error)
	Candidate(ctx context.Context, id int64) (*models.Candidate, error)
}

// PartialFetchError reports a best-effort stage where some items failed.
type PartialFetchError struct {
	Stage  string
	Failed int
	Total  int
}

func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("discovery %s: %d of %d failed", e.Stage, e.Failed, e.Total)
}

type Options struct {
	NoteTypes      []string
	WindowDays     int
	PageLimit      int
	NoteBatch      int
	NotePause      time.Duration
	HydrationBatch int
	HydrationPause time.Duration
	// UseFallback enables the activities and untyped notes scans when typed notes
	// yield no candidate.
	UseFallback bool
}

func (o *Options) defaults() {
	if o.WindowDays <= 0 {
		o.WindowDays = 21
	}
	if o.PageLimit <= 0 {
		o.PageLimit = 500
	}
	if o.NoteBatch <= 0 {
		o.NoteBatch = 20
	}
	if o.HydrationBatch <= 0 {
		o.HydrationBatch = 10
	}
}

type Engine struct {
	src    Source
	opts   Options
	local  []Extractor
	remote []Extractor
	now    func() time.Time

	// OnPartial, when set, receives every partial fetch report.
	OnPartial func(*PartialFetchError)
}

func New(src Source, opts Options) *Engine {
	opts.defaults()
	return &Engine{
		src:    src,
		opts:   opts,
		local:  LocalExtractors(),
		remote: []Extractor{ApplicationHop(src)},
		now:    time.Now,
	}
}

func (e *Engine) partial(stage string, failed, total int) {
	if failed == 0 {
		return
	}
	pe := &PartialFetchError{Stage: stage, Failed: failed, Total: total}
	logger.Warn("partial fetch", slog.String("stage", stage), slog.Int("failed", failed), slog.Int("total", total))
	if e.OnPartial != nil {
		e.OnPartial(pe)
	}
}

// Discover returns hydrated candidates with interview evidence in the last
// windowDays days. An empty result is not an error.
func (e *Engine) Discover(ctx context.Context, windowDays int) ([]models.Candidate, error) {
	if windowDays <= 0 {
		windowDays = e.opts.WindowDays
	}
	cutoff := e.now().AddDate(0, 0, -windowDays)
	logger.Info("discovering candidates", slog.Time("cutoff", cutoff), slog.Int("window_days", windowDays))

	ids, err := e.CandidateIDs(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		logger.Info("no candidates with recent interview evidence")
		return nil, nil
	}

	return e.Hydrate(ctx, ids)
}

// CandidateIDs runs the typed note queries and, when they yield nothing, the
// fallback chain.
func (e *Engine) CandidateIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var notes []ats.Record
	failed := 0
	for _, t := range e.opts.NoteTypes {
		recs, err := e.src.Notes(ctx, t, cutoff, e.opts.PageLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			logger.Warn("note query failed", slog.String("note_type", t), slog.Any("err", err))
			continue
		}
		logger.Info("fetched notes", slog.String("note_type", t), slog.Int("count", len(recs)))
		notes = append(notes, recs...)
	}
	e.partial("notes", failed, len(e.opts.NoteTypes))

	ids, err := e.fromNotes(ctx, notes)
	if err != nil || len(ids) > 0 || !e.opts.UseFallback {
		return ids, err
	}

	logger.Info("typed notes yielded no candidates, trying activities")
	acts, err := e.src.Activities(ctx, cutoff, e.opts.PageLimit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("activities query failed", slog.Any("err", err))
	}
	if ids = ExtractIDs(ctx, acts, e.local, e.remote); len(ids) > 0 {
		return ids, nil
	}

	logger.Info("activities yielded no candidates, scanning recent notes")
	recent, err := e.src.RecentNotes(ctx, cutoff, e.opts.PageLimit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("recent notes query failed", slog.Any("err", err))
		return nil, nil
	}
	return e.fromNotes(ctx, recent)
}

func noteKey(rec ats.Record) string {
	switch v := rec["noteId"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}

// fromNotes fetches each note's detail, since list results omit relations, and
// extracts candidate ids. Batches run concurrently and are separated by a pause.
func (e *Engine) fromNotes(ctx context.Context, notes []ats.Record) ([]int64, error) {
	if len(notes) == 0 {
		return nil, nil
	}

	d := newDedup()
	failed := 0
	size := e.opts.NoteBatch
	for start := 0; start < len(notes); start += size {
		if start > 0 {
			if err := upstream.Sleep(ctx, e.opts.NotePause); err != nil {
				return nil, err
			}
		}
		batch := notes[start:min(start+size, len(notes))]

		results := make([][]int64, len(batch))
		ok := make([]bool, len(batch))
		var wg sync.WaitGroup
		for i, n := range batch {
			wg.Add(1)
			go func(i int, n ats.Record) {
				defer wg.Done()
				rec := n
				if id := noteKey(n); id != "" {
					full, err := e.src.Note(ctx, id)
					if err != nil {
						logger.Debug("note detail failed", slog.String("note_id", id), slog.Any("err", err))
						return
					}
					rec = full
				}
				results[i] = extract(ctx, rec, e.local, e.remote)
				ok[i] = true
			}(i, n)
		}
		wg.Wait()

		for i := range batch {
			if !ok[i] {
				failed++
				continue
			}
			d.add(results[i]...)
		}
		logger.Info("processed notes", slog.Int("processed", min(start+size, len(notes))), slog.Int("total", len(notes)), slog.Int("count", len(d.ids)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.partial("note details", failed, len(notes))
	return d.ids, nil
}

// Hydrate fetches full records for ids in batches, preserving id order. Failed
// lookups are dropped.
func (e *Engine) Hydrate(ctx context.Context, ids []int64) ([]models.Candidate, error) {
	out := make([]models.Candidate, 0, len(ids))
	failed := 0
	size := e.opts.HydrationBatch
	for start := 0; start < len(ids); start += size {
		if start > 0 {
			if err := upstream.Sleep(ctx, e.opts.HydrationPause); err != nil {
				return nil, err
			}
		}
		batch := ids[start:min(start+size, len(ids))]

		results := make([]*models.Candidate, len(batch))
		var wg sync.WaitGroup
		for i, id := range batch {
			wg.Add(1)
			go func(i int, id int64) {
				defer wg.Done()
				c, err := e.src.Candidate(ctx, id)
				if err != nil {
					logger.Warn("candidate lookup failed", slog.Int64("candidate_id", id), slog.Any("err", err))
					return
				}
				results[i] = c
			}(i, id)
		}
		wg.Wait()

		for _, c := range results {
			if c == nil {
				failed++
				continue
			}
			out = append(out, *c)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.partial("candidates", failed, len(ids))
	logger.Info("hydrated candidates", slog.Int("count", len(out)))
	return out, nil
}
