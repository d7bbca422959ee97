package api

import (
	"context"
	"net/http"

	"github.com/garnizeh/talentmail/internal/campaign"
	"github.com/garnizeh/talentmail/internal/models"
)

// ArticleSender mails single CMS articles.
type ArticleSender interface {
	List(ctx context.Context) ([]models.ArticleRef, error)
	Send(ctx context.Context, id int64) campaign.Result
	SendTest(ctx context.Context, id int64) campaign.Result
}

type ArticlesHandler struct {
	sender ArticleSender
}

func NewArticlesHandler(sender ArticleSender) *ArticlesHandler {
	return &ArticlesHandler{sender: sender}
}

func (h *ArticlesHandler) List(w http.ResponseWriter, r *http.Request) {
	refs, err := h.sender.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if refs == nil {
		refs = []models.ArticleRef{}
	}
	writeJSON(w, map[string]any{"success": true, "articles": refs}, http.StatusOK)
}

func (h *ArticlesHandler) send(w http.ResponseWriter, r *http.Request, test bool) {
	id, ok := pathID(r, "articleId")
	if !ok {
		writeJSON(w, errorResponse{Error: "Bad Request", Message: "invalid article id"}, http.StatusBadRequest)
		return
	}
	ctx := context.WithoutCancel(r.Context())
	if test {
		writeResult(w, h.sender.SendTest(ctx, id))
		return
	}
	writeResult(w, h.sender.Send(ctx, id))
}

func (h *ArticlesHandler) Send(w http.ResponseWriter, r *http.Request)     { h.send(w, r, false) }
func (h *ArticlesHandler) SendTest(w http.ResponseWriter, r *http.Request) { h.send(w, r, true) }
