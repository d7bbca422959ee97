package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/models"
)

// Deps are the workflows and clients the routes serve.
type Deps struct {
	Auth     Authorizer
	OAuth    OAuthClient
	Machines map[models.Campaign]Machine
	Articles ArticleSender
	Roundup  Roundup
	Jobs     LiveJobLister
	Preview  Previewer
	States   StateReader
	// History is nil when the state backend keeps no audit trail.
	History  HistoryReader
}

func SetupRoutes(cfg *config.Config, version, buildTime string, d Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{Auth: d.Auth, TestMode: cfg.Mail.TestMode, TestEmail: cfg.Mail.TestEmail}
	authHandler := NewAuthHandler(d.OAuth, cfg.StateSecret, 0)
	campaignHandler := NewCampaignHandler(d.Machines)
	articlesHandler := NewArticlesHandler(d.Articles)
	jobsHandler := NewJobsHandler(d.Roundup, d.Jobs)
	previewHandler := NewPreviewHandler(d.Preview, d.States)
	historyHandler := NewHistoryHandler(d.History)

	// Open endpoints
	r.HandleFunc("/", systemHandler.StatusHandler(version)).Methods(http.MethodGet)
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/auth/jobadder", authHandler.Authorize).Methods(http.MethodGet)
	r.HandleFunc("/auth/callback", authHandler.Callback).Methods(http.MethodGet)
	r.HandleFunc("/webhook/jobadder", jobsHandler.Webhook).Methods(http.MethodPost)

	// Local state and previews
	r.HandleFunc("/api/{campaign:alist}/state", campaignHandler.State).Methods(http.MethodGet)
	r.HandleFunc("/api/{campaign:alist|xpose}/reset", campaignHandler.Reset()).Methods(http.MethodPost)
	r.HandleFunc("/api/{campaign:alist|xpose}/history", historyHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/api/preview/alist", previewHandler.Digest()).Methods(http.MethodGet)
	r.HandleFunc("/api/preview/xpose-newsletter", previewHandler.Newsletter()).Methods(http.MethodGet)
	r.HandleFunc("/api/preview/xpose-article/{articleId:[0-9]+}", previewHandler.Article()).Methods(http.MethodGet)

	// Routes that reach the ATS require authorization
	guarded := r.NewRoute().Subrouter()
	guarded.Use(RequireAuthorized(d.Auth))

	guarded.HandleFunc("/api/{campaign:xpose}/state", campaignHandler.State).Methods(http.MethodGet)
	guarded.HandleFunc("/api/preview/job/{jobId:[0-9]+}", previewHandler.Job()).Methods(http.MethodGet)
	guarded.HandleFunc("/api/jobs", jobsHandler.List).Methods(http.MethodGet)
	guarded.HandleFunc("/api/{campaign:alist|xpose}/generate", campaignHandler.Generate()).Methods(http.MethodPost)
	guarded.HandleFunc("/api/{campaign:alist|xpose}/send-test", campaignHandler.SendTest()).Methods(http.MethodPost)
	guarded.HandleFunc("/api/{campaign:alist|xpose}/send", campaignHandler.SendToAll()).Methods(http.MethodPost)
	guarded.HandleFunc("/api/xpose/articles", articlesHandler.List).Methods(http.MethodGet)
	guarded.HandleFunc("/api/xpose/send-article/{articleId:[0-9]+}", articlesHandler.Send).Methods(http.MethodPost)
	guarded.HandleFunc("/api/xpose/send-test-article/{articleId:[0-9]+}", articlesHandler.SendTest).Methods(http.MethodPost)
	guarded.HandleFunc("/trigger/daily-roundup", jobsHandler.TriggerDailyRoundup).Methods(http.MethodPost)
	guarded.HandleFunc("/trigger/single-job/{adId:[0-9]+}", jobsHandler.TriggerSingleJob).Methods(http.MethodPost)

	return r
}
