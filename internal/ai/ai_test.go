package ai_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/garnizeh/talentmail/internal/ai"
	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/pkg/ollama"
)

type fakeGenerator struct {
	out     string
	err     error
	calls   atomic.Int32
	prompts chan string
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, model, prompt string) (ollama.GenerateResult, error) {
	f.calls.Add(1)
	if f.prompts != nil {
		f.prompts <- prompt
	}
	if f.err != nil {
		return ollama.GenerateResult{}, f.err
	}
	return ollama.GenerateResult{Text: f.out}, nil
}

func candidate() models.Candidate {
	return models.Candidate{
		CandidateID: 7,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		SkillTags:   []string{"Revit", "AutoCAD", "BIM", "Rhino"},
		Employment: models.Employment{
			Current: &models.Position{Position: "Architect", Employer: "Acme"},
			Ideal:   &models.Position{Position: "Design Lead"},
			History: []models.Position{{Position: "Architect", Employer: "Acme"}, {Position: "Graduate"}},
		},
	}
}

func newEngine(t *testing.T, gen ai.Generator, model string) *ai.Engine {
	t.Helper()
	e, err := ai.NewEngine(context.Background(), gen, config.EngineConfig{Model: model})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestParseSummary(t *testing.T) {
	r, err := ai.ParseSummary("Here you go:\n```json\n{\"summary\":\"A seasoned architect.\"}\n```")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if r.Summary != "A seasoned architect." {
		t.Fatalf("unexpected summary: %s", r.Summary)
	}

	for _, bad := range []string{"", "   ", "no json here", "{broken"} {
		if _, err := ai.ParseSummary(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBuildContext(t *testing.T) {
	c := candidate()
	c.Summary = "<p>" + strings.Repeat("b", 400) + "</p>"

	got := ai.BuildContext(c)
	want := []string{
		"Name: Ada Lovelace",
		"Current Role: Architect",
		"Company: Acme",
		"Recent Experience: Architect at Acme; Graduate",
		"Skills: Revit, AutoCAD, BIM, Rhino",
		"Bio: " + strings.Repeat("b", 300),
		"Seeking: Design Lead",
	}
	if got != strings.Join(want, "\n") {
		t.Fatalf("unexpected context:\n%s", got)
	}
}

func TestFallback(t *testing.T) {
	c := candidate()
	want := "An experienced Architect with expertise in Revit, AutoCAD, BIM. Brings a strong track record of delivering results and contributing to team success."
	if got := ai.Fallback(c); got != want {
		t.Fatalf("unexpected fallback: %q", got)
	}

	if got := ai.Fallback(models.Candidate{}); !strings.HasPrefix(got, "An experienced Professional with expertise in various skills.") {
		t.Fatalf("unexpected empty fallback: %q", got)
	}

	c.Summary = strings.Repeat("x", 260)
	if got := ai.Fallback(c); got != strings.Repeat("x", 250)+"..." {
		t.Fatalf("expected truncated bio, got %q", got)
	}

	c.Summary = "Short bio."
	if got := ai.Fallback(c); got != "Short bio." {
		t.Fatalf("expected bio unchanged, got %q", got)
	}
}

func TestEngine_SummarizeUsesModel(t *testing.T) {
	gen := &fakeGenerator{out: `{"summary":"  Ada is a standout architect with deep BIM expertise.  "}`, prompts: make(chan string, 1)}
	e := newEngine(t, gen, "llama3")

	got := e.Summarize(context.Background(), candidate())
	if got != "Ada is a standout architect with deep BIM expertise." {
		t.Fatalf("unexpected summary: %q", got)
	}
	prompt := <-gen.prompts
	if !strings.Contains(prompt, "Name: Ada Lovelace") || !strings.Contains(prompt, `{"summary"`) {
		t.Fatalf("prompt missing context or output contract: %s", prompt)
	}
}

func TestEngine_FallbackPaths(t *testing.T) {
	tests := []struct {
		name  string
		gen   ai.Generator
		model string
	}{
		{"nil generator", nil, "llama3"},
		{"no model", &fakeGenerator{out: `{"summary":"never used at all here"}`}, ""},
		{"generator error", &fakeGenerator{err: errors.New("connection refused")}, "llama3"},
		{"schema violation", &fakeGenerator{out: `{"summary":"short"}`}, "llama3"},
		{"not json", &fakeGenerator{out: "I cannot help with that."}, "llama3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine(t, tc.gen, tc.model)
			if got := e.Summarize(context.Background(), candidate()); got != ai.Fallback(candidate()) {
				t.Fatalf("expected fallback, got %q", got)
			}
		})
	}
}

func TestSummarizeAll_KeepsOrder(t *testing.T) {
	cs := []models.Candidate{
		{CandidateID: 1, Summary: "one"},
		{CandidateID: 2, Summary: "two"},
		{CandidateID: 3, Summary: "three"},
	}

	var nilEngine *ai.Engine
	got := ai.SummarizeAll(context.Background(), nilEngine, cs)
	if strings.Join(got, ",") != "one,two,three" {
		t.Fatalf("unexpected summaries: %v", got)
	}
	if got := ai.SummarizeAll(context.Background(), nil, cs); len(got) != 3 || got[2] != "three" {
		t.Fatalf("unexpected summaries without summarizer: %v", got)
	}
}
