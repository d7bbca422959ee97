package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/talentmail/api"
	dbfs "github.com/garnizeh/talentmail/db"
	"github.com/garnizeh/talentmail/internal/ai"
	"github.com/garnizeh/talentmail/internal/ats"
	"github.com/garnizeh/talentmail/internal/campaign"
	"github.com/garnizeh/talentmail/internal/cms"
	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/db"
	"github.com/garnizeh/talentmail/internal/discovery"
	"github.com/garnizeh/talentmail/internal/format"
	"github.com/garnizeh/talentmail/internal/mail"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/internal/notify"
	"github.com/garnizeh/talentmail/internal/preview"
	"github.com/garnizeh/talentmail/internal/repository/dynamo"
	"github.com/garnizeh/talentmail/internal/repository/file"
	"github.com/garnizeh/talentmail/internal/repository/sqlite"
	"github.com/garnizeh/talentmail/internal/scheduler"
	"github.com/garnizeh/talentmail/pkg/ollama"
	"github.com/garnizeh/talentmail/pkg/repository"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// store holds both the OAuth tokens and the campaign snapshots.
type store interface {
	repository.TokenRepo
	repository.StateRepo
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, func() error, error) {
	switch cfg.StateBackend {
	case "file":
		s, err := file.New(cfg.StateDir, logger)
		return s, func() error { return nil }, err
	case "dynamodb":
		r, err := dynamo.NewFromEnv(ctx, cfg.Dynamo.Table, logger)
		return r, func() error { return nil }, err
	default:
		conn, err := db.New(ctx, cfg.DatabasePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.Migrate(ctx, conn, dbfs.Migrations); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("migrate db: %w", err)
		}
		return sqlite.New(conn, logger), conn.Close, nil
	}
}

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	campaign.SetLogger(logger)
	discovery.SetLogger(logger)
	ai.SetLogger(logger)
	ollama.SetLogger(logger)

	log.Printf("Starting talentmail version %s (built at %s)", version, buildTime)

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open %s state store: %v", cfg.StateBackend, err)
	}

	httpClient := &http.Client{Timeout: cfg.APITimeout}

	atsClient := ats.New(cfg.ATS, st, httpClient, logger)
	mailer := mail.New(cfg.Mail, httpClient, logger)
	articles := cms.New(cfg.CMS, httpClient, logger)
	formatter := format.New(cfg.ATS.AppURL, cfg.ATS.ApplyURLBase)
	notifier := notify.New(cfg.Telegram, httpClient, logger)

	if cfg.ATS.JobBoardID > 0 && atsClient.IsAuthorized(ctx) {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
		if ads, err := atsClient.BoardAds(checkCtx, cfg.ATS.JobBoardID); err != nil {
			log.Printf("Job board %d check failed: %v", cfg.ATS.JobBoardID, err)
		} else {
			log.Printf("Job board %d has %d ads", cfg.ATS.JobBoardID, len(ads))
		}
		cancel()
	}

	// A nil generator keeps every summary on the fallback.
	var gen ai.Generator
	if cfg.EngineConfig.Model != "" {
		oc, err := ollama.NewDefaultClient(cfg.Ollama)
		if err != nil {
			log.Printf("Ollama unavailable, using fallback summaries: %v", err)
		} else {
			defer oc.Close()
			if m, err := oc.ResolveModel(ctx, cfg.EngineConfig.Model); err != nil {
				log.Printf("Ollama model check failed, keeping %s: %v", cfg.EngineConfig.Model, err)
			} else {
				cfg.EngineConfig.Model = m
			}
			gen = oc
		}
	}
	engine, err := ai.NewEngine(ctx, gen, cfg.EngineConfig)
	if err != nil {
		log.Fatalf("Failed to create summary engine: %v", err)
	}

	finder := discovery.New(atsClient, discovery.Options{
		NoteTypes:      cfg.ATS.NoteTypes,
		WindowDays:     cfg.Discovery.WindowDays,
		PageLimit:      cfg.ATS.PageLimit,
		NoteBatch:      cfg.Discovery.NoteBatch,
		NotePause:      cfg.Discovery.NotePause,
		HydrationBatch: cfg.Discovery.HydrationBatch,
		HydrationPause: cfg.Discovery.HydrationPause,
		UseFallback:    cfg.ATS.UseFallback,
	})

	machineCfg := campaign.MachineConfig{ResetDelay: cfg.Campaign.ResetDelay, Notifier: notifier}
	digest := campaign.NewMachine(&campaign.DigestSource{
		Discoverer:  finder,
		Summarizer:  engine,
		Formatter:   formatter,
		WindowDays:  cfg.Discovery.WindowDays,
		SelectCount: cfg.Discovery.SelectCount,
		Template:    cfg.Mail.Templates.CandidateDigest,
	}, st, mailer, machineCfg)
	newsletter := campaign.NewMachine(&campaign.NewsletterSource{
		Articles:  articles,
		Jobs:      atsClient,
		Formatter: formatter,
		Template:  cfg.Mail.Templates.Newsletter,
	}, st, mailer, machineCfg)

	roundup := &campaign.Roundup{
		Jobs:           atsClient,
		Mailer:         mailer,
		Formatter:      formatter,
		Notifier:       notifier,
		BoardID:        cfg.ATS.JobBoardID,
		DailyTemplate:  cfg.Mail.Templates.DailyRoundup,
		SingleTemplate: cfg.Mail.Templates.SingleJob,
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		sched, err = scheduler.New(cfg.Schedule, atsClient, roundup, logger)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		sched.Start()
	}

	var history api.HistoryReader
	if h, ok := st.(repository.StateHistoryRepo); ok {
		history = h
	}

	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Auth:  atsClient,
		OAuth: atsClient,
		Machines: map[models.Campaign]api.Machine{
			models.CampaignDigest:     digest,
			models.CampaignNewsletter: newsletter,
		},
		Articles: &campaign.ArticleSender{
			Articles: articles,
			Mailer:   mailer,
			Template: cfg.Mail.Templates.SingleArticle,
		},
		Roundup: roundup,
		Jobs:    atsClient,
		Preview: preview.New(articles, atsClient, formatter, nil),
		States:  st,
		History: history,
	})

	// generation and bulk sends can run for minutes
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if sched != nil {
		sched.Stop(ctx)
	}
	digest.Close()
	newsletter.Close()

	if err := closeStore(); err != nil {
		log.Printf("Error closing state store: %v", err)
	}

	log.Println("Server exited")
}
