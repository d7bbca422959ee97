package api

import (
	"context"
	"net/http"

	"github.com/garnizeh/talentmail/internal/models"
)

// Previewer renders campaign emails to HTML.
type Previewer interface {
	Digest(s models.CampaignState) (string, error)
	Newsletter(s models.CampaignState) (string, error)
	Article(ctx context.Context, id int64) (string, error)
	Job(ctx context.Context, id int64) (string, error)
}

// StateReader loads a campaign snapshot.
type StateReader interface {
	LoadState(ctx context.Context, c models.Campaign) (models.CampaignState, error)
}

type PreviewHandler struct {
	preview Previewer
	states  StateReader
}

func NewPreviewHandler(p Previewer, states StateReader) *PreviewHandler {
	return &PreviewHandler{preview: p, states: states}
}

func writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *PreviewHandler) fromState(c models.Campaign, render func(models.CampaignState) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.states.LoadState(r.Context(), c)
		if err != nil {
			writeError(w, err)
			return
		}
		html, err := render(s)
		if err != nil {
			writeError(w, err)
			return
		}
		writeHTML(w, html)
	}
}

func (h *PreviewHandler) Digest() http.HandlerFunc {
	return h.fromState(models.CampaignDigest, h.preview.Digest)
}

func (h *PreviewHandler) Newsletter() http.HandlerFunc {
	return h.fromState(models.CampaignNewsletter, h.preview.Newsletter)
}

func (h *PreviewHandler) byID(name string, render func(context.Context, int64) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, name)
		if !ok {
			writeJSON(w, errorResponse{Error: "Bad Request", Message: "invalid " + name}, http.StatusBadRequest)
			return
		}
		html, err := render(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeHTML(w, html)
	}
}

func (h *PreviewHandler) Article() http.HandlerFunc { return h.byID("articleId", h.preview.Article) }
func (h *PreviewHandler) Job() http.HandlerFunc     { return h.byID("jobId", h.preview.Job) }
