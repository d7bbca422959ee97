package file_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/internal/repository/file"
)

func TestStore_StateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := file.New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	in := models.CampaignState{
		Campaign:        models.CampaignNewsletter,
		State:           models.StateGenerated,
		GeneratedAt:     &ts,
		FeaturedArticle: &models.Article{ID: 1, Title: "Featured"},
		RecentArticles:  []models.Article{{ID: 2, Title: "Recent"}},
	}
	if err := s.SaveState(ctx, in); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, ".xpose-state.json"))
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	if !strings.Contains(string(raw), "\n  \"state\": \"GENERATED\"") {
		t.Fatalf("expected pretty-printed JSON, got:\n%s", raw)
	}

	out, err := s.LoadState(ctx, models.CampaignNewsletter)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if out.State != models.StateGenerated || out.FeaturedArticle == nil || out.FeaturedArticle.Title != "Featured" {
		t.Fatalf("unexpected state: %#v", out)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStore_ReadRepair(t *testing.T) {
	dir := t.TempDir()
	s, err := file.New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	got, err := s.LoadState(ctx, models.CampaignDigest)
	if err != nil || got.State != models.StateEmpty {
		t.Fatalf("missing file should read as EMPTY, got %#v (%v)", got, err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".alist-state.json"), []byte("{garbage"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	got, err = s.LoadState(ctx, models.CampaignDigest)
	if err != nil || got.State != models.StateEmpty || got.Campaign != models.CampaignDigest {
		t.Fatalf("corrupt file should read as EMPTY, got %#v (%v)", got, err)
	}
}

func TestStore_Tokens(t *testing.T) {
	s, err := file.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if got, err := s.LoadTokens(ctx, "jobadder"); err != nil || got != nil {
		t.Fatalf("expected no tokens, got %#v (%v)", got, err)
	}

	want := models.TokenSet{AccessToken: "a", RefreshToken: "r", ExpiresAt: 42}
	if err := s.SaveTokens(ctx, "jobadder", want); err != nil {
		t.Fatalf("SaveTokens: %v", err)
	}
	got, err := s.LoadTokens(ctx, "jobadder")
	if err != nil || got == nil || *got != want {
		t.Fatalf("expected %#v, got %#v (%v)", want, got, err)
	}
}
