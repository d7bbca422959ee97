package discovery

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/garnizeh/talentmail/internal/ats"
)

var (
	candidateLinkRe   = regexp.MustCompile(`/candidates/(\d+)`)
	applicationLinkRe = regexp.MustCompile(`/applications/(\d+)`)
)

// Extractor resolves zero or more candidate ids from one evidence record.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, rec ats.Record) []int64
}

type extractorFunc struct {
	name string
	fn   func(rec ats.Record) []int64
}

func (e extractorFunc) Name() string { return e.name }

func (e extractorFunc) Extract(_ context.Context, rec ats.Record) []int64 { return e.fn(rec) }

// toID accepts the numeric shapes a decoded JSON id can take.
func toID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case int64:
		return t, t > 0
	case int:
		return int64(t), t > 0
	case json.Number:
		n, err := t.Int64()
		return n, err == nil && n > 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}

func one(v any) []int64 {
	if id, ok := toID(v); ok {
		return []int64{id}
	}
	return nil
}

func linkMatch(re *regexp.Regexp, rec ats.Record, key string) (int64, bool) {
	links, _ := rec["links"].(map[string]any)
	s, _ := links[key].(string)
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return toID(m[1])
}

// DirectID reads a top-level candidateId.
var DirectID Extractor = extractorFunc{"direct", func(rec ats.Record) []int64 {
	return one(rec["candidateId"])
}}

// CandidateArray reads candidates[].candidateId.
var CandidateArray Extractor = extractorFunc{"array", func(rec ats.Record) []int64 {
	items, _ := rec["candidates"].([]any)
	var out []int64
	for _, it := range items {
		obj, _ := it.(map[string]any)
		out = append(out, one(obj["candidateId"])...)
	}
	return out
}}

// CandidateObject reads candidate.candidateId.
var CandidateObject Extractor = extractorFunc{"object", func(rec ats.Record) []int64 {
	obj, _ := rec["candidate"].(map[string]any)
	return one(obj["candidateId"])
}}

// CandidateLink parses links.candidate.
var CandidateLink Extractor = extractorFunc{"link", func(rec ats.Record) []int64 {
	if id, ok := linkMatch(candidateLinkRe, rec, "candidate"); ok {
		return []int64{id}
	}
	return nil
}}

// LocalExtractors need no network access.
func LocalExtractors() []Extractor {
	return []Extractor{DirectID, CandidateArray, CandidateObject, CandidateLink}
}

// ApplicationLookup fetches the application referenced by links.application.
type ApplicationLookup interface {
	Application(ctx context.Context, id int64) (ats.Record, error)
}

type applicationHop struct {
	apps ApplicationLookup
}

// ApplicationHop follows links.application to the application's candidateId.
func ApplicationHop(apps ApplicationLookup) Extractor {
	return applicationHop{apps: apps}
}

func (applicationHop) Name() string { return "application" }

func (h applicationHop) Extract(ctx context.Context, rec ats.Record) []int64 {
	appID, ok := linkMatch(applicationLinkRe, rec, "application")
	if !ok {
		return nil
	}
	app, err := h.apps.Application(ctx, appID)
	if err != nil {
		logger.Debug("application lookup failed", slog.Int64("application_id", appID), slog.Any("err", err))
		return nil
	}
	return one(app["candidateId"])
}

// extract runs every local extractor and falls back to the remote ones only when the
// local chain found nothing. Panics inside an extractor count as no match.
func extract(ctx context.Context, rec ats.Record, local, remote []Extractor) (ids []int64) {
	run := func(ex Extractor) (got []int64) {
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("extractor failed", slog.String("extractor", ex.Name()), slog.Any("err", r))
				got = nil
			}
		}()
		return ex.Extract(ctx, rec)
	}

	for _, ex := range local {
		ids = append(ids, run(ex)...)
	}
	if len(ids) > 0 {
		return ids
	}
	for _, ex := range remote {
		if ids = run(ex); len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// ExtractIDs resolves and deduplicates candidate ids across records, keeping
// first-seen order.
func ExtractIDs(ctx context.Context, records []ats.Record, local, remote []Extractor) []int64 {
	d := newDedup()
	for _, rec := range records {
		d.add(extract(ctx, rec, local, remote)...)
	}
	return d.ids
}

type dedup struct {
	seen map[int64]struct{}
	ids  []int64
}

func newDedup() *dedup { return &dedup{seen: map[int64]struct{}{}} }

func (d *dedup) add(ids ...int64) {
	for _, id := range ids {
		if _, ok := d.seen[id]; ok {
			continue
		}
		d.seen[id] = struct{}{}
		d.ids = append(d.ids, id)
	}
}
