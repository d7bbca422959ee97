package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const insecureStateSecret = "change-me"

type Config struct {
	Addr         string        `yaml:"addr"`
	Env          string        `yaml:"env"`
	APITimeout   time.Duration `yaml:"timeout"`
	DatabasePath string        `yaml:"database_path"`
	StateBackend string        `yaml:"state_backend"`
	StateDir     string        `yaml:"state_dir"`
	StateSecret  string        `yaml:"state_secret"`

	ATS          ATSConfig       `yaml:"ats"`
	Mail         MailConfig      `yaml:"mail"`
	CMS          CMSConfig       `yaml:"cms"`
	Discovery    DiscoveryConfig `yaml:"discovery"`
	Campaign     CampaignConfig  `yaml:"campaign"`
	Schedule     ScheduleConfig  `yaml:"schedule"`
	Ollama       OllamaConfig    `yaml:"ollama"`
	EngineConfig EngineConfig    `yaml:"engine"`
	Dynamo       DynamoConfig    `yaml:"dynamo"`
	Telegram     TelegramConfig  `yaml:"telegram"`
}

type ATSConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	BaseURL      string `yaml:"base_url"`
	// AppURL is the recruiter web app used for candidate profile links.
	AppURL string `yaml:"app_url"`
	// ApplyURLBase is prefixed to the job id when a job has no apply URL.
	ApplyURLBase string `yaml:"apply_url_base"`
	// NoteTypes are matched case-sensitively by the ATS.
	NoteTypes   []string `yaml:"note_types"`
	PageLimit   int      `yaml:"page_limit"`
	JobBoardID  int64    `yaml:"job_board_id"`
	UseFallback bool     `yaml:"use_activity_fallback"`
}

type MailConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	SenderEmail    string        `yaml:"sender_email"`
	SenderName     string        `yaml:"sender_name"`
	OptInAttribute string        `yaml:"opt_in_attribute"`
	TestEmail      string        `yaml:"test_email"`
	TestMode       bool          `yaml:"test_mode"`
	BatchSize      int           `yaml:"batch_size"`
	BatchPause     time.Duration `yaml:"batch_pause"`
	Templates      TemplateIDs   `yaml:"templates"`
}

type TemplateIDs struct {
	DailyRoundup    int64 `yaml:"daily_roundup"`
	SingleJob       int64 `yaml:"single_job"`
	CandidateDigest int64 `yaml:"candidate_digest"`
	Newsletter      int64 `yaml:"newsletter"`
	SingleArticle   int64 `yaml:"single_article"`
}

type CMSConfig struct {
	BaseURL    string `yaml:"base_url"`
	CategoryID int    `yaml:"category_id"`
}

type DiscoveryConfig struct {
	WindowDays     int           `yaml:"window_days"`
	SelectCount    int           `yaml:"select_count"`
	NoteBatch      int           `yaml:"note_batch"`
	NotePause      time.Duration `yaml:"note_pause"`
	HydrationBatch int           `yaml:"hydration_batch"`
	HydrationPause time.Duration `yaml:"hydration_pause"`
}

type CampaignConfig struct {
	ResetDelay time.Duration `yaml:"reset_delay"`
}

type ScheduleConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RoundupCron string `yaml:"roundup_cron"`
	Timezone    string `yaml:"timezone"`
}

type EngineConfig struct {
	Model    string         `yaml:"model"`
	Template PromptTemplate `yaml:"template"`
	Timeout  time.Duration  `yaml:"timeout"`
}

type PromptTemplate struct {
	Version       string `yaml:"version"`
	Template      string `yaml:"template"`
	SchemaVersion string `yaml:"schema_version,omitempty"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	DefaultModelNames       []string      `yaml:"models"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type DynamoConfig struct {
	Table string `yaml:"table"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// LoadConfig reads .env (if present), environment variables and an optional YAML
// file, in increasing order of precedence.
func LoadConfig(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{
		Addr:         getEnv("TALENTMAIL_ADDR", ":8080"),
		Env:          getEnv("TALENTMAIL_ENV", "development"),
		APITimeout:   60 * time.Second,
		DatabasePath: getEnv("TALENTMAIL_DATABASE_PATH", "talentmail.db"),
		StateBackend: getEnv("TALENTMAIL_STATE_BACKEND", "sqlite"),
		StateDir:     getEnv("TALENTMAIL_STATE_DIR", "."),
		StateSecret:  getEnv("OAUTH_STATE_SECRET", insecureStateSecret),
		ATS: ATSConfig{
			ClientID:     os.Getenv("JOBADDER_CLIENT_ID"),
			ClientSecret: os.Getenv("JOBADDER_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("JOBADDER_REDIRECT_URI"),
			JobBoardID:   getEnvInt64("JOBADDER_JOB_BOARD_ID", 0),
			UseFallback:  getEnvBool("JOBADDER_ACTIVITY_FALLBACK", true),
		},
		Mail: MailConfig{
			APIKey:      os.Getenv("BREVO_API_KEY"),
			SenderEmail: getEnv("SENDER_EMAIL", "artisan@artisan.com.au"),
			SenderName:  getEnv("SENDER_NAME", "ARTISAN"),
			TestEmail:   os.Getenv("TEST_EMAIL"),
			TestMode:    getEnvBool("TEST_MODE", false),
			Templates: TemplateIDs{
				DailyRoundup:    getEnvInt64("DAILY_ROUNDUP_TEMPLATE_ID", 0),
				SingleJob:       getEnvInt64("SINGLE_JOB_ALERT_TEMPLATE_ID", 0),
				CandidateDigest: getEnvInt64("A_LIST_TEMPLATE_ID", 0),
				Newsletter:      getEnvInt64("XPOSE_NEWSLETTER_TEMPLATE_ID", 0),
				SingleArticle:   getEnvInt64("XPOSE_SINGLE_ARTICLE_TEMPLATE_ID", 0),
			},
		},
		CMS: CMSConfig{
			BaseURL:    getEnv("WORDPRESS_API_URL", "https://artisan.com.au/wp-json/wp/v2"),
			CategoryID: int(getEnvInt64("ARTICLE_CATEGORY_ID", 6)),
		},
		Schedule: ScheduleConfig{
			Enabled:     getEnvBool("TALENTMAIL_SCHEDULE_ENABLED", true),
			RoundupCron: getEnv("TALENTMAIL_ROUNDUP_CRON", "0 14 * * *"),
			Timezone:    getEnv("TALENTMAIL_TIMEZONE", "Australia/Sydney"),
		},
		Ollama: OllamaConfig{
			BaseURL: os.Getenv("OLLAMA_BASE_URL"),
		},
		EngineConfig: EngineConfig{
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		Dynamo: DynamoConfig{
			Table: os.Getenv("TALENTMAIL_DYNAMO_TABLE"),
		},
		Telegram: TelegramConfig{
			Token:  os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
		},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate fills defaults and rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	env := strings.ToLower(getEnv("TALENTMAIL_ENV", c.Env))
	if c.StateSecret == "" || (c.StateSecret == insecureStateSecret && env != "development") {
		errs = append(errs, errors.New("state_secret must be set to a non-default value outside development"))
	}

	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 60 * time.Second
	}

	switch c.StateBackend {
	case "", "sqlite":
		c.StateBackend = "sqlite"
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("database_path is required for the sqlite state backend"))
		}
	case "file":
		if c.StateDir == "" {
			c.StateDir = "."
		}
	case "dynamodb":
		if c.Dynamo.Table == "" {
			errs = append(errs, errors.New("dynamo.table is required for the dynamodb state backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state_backend %q", c.StateBackend))
	}

	if c.ATS.ClientID == "" || c.ATS.ClientSecret == "" {
		errs = append(errs, errors.New("ats.client_id and ats.client_secret are required"))
	}
	if c.ATS.RedirectURI == "" {
		errs = append(errs, errors.New("ats.redirect_uri is required"))
	}
	if c.Mail.APIKey == "" {
		errs = append(errs, errors.New("mail.api_key is required"))
	}
	if c.Mail.TestMode && c.Mail.TestEmail == "" {
		errs = append(errs, errors.New("mail.test_email is required when test_mode is on"))
	}

	c.applyDefaults()

	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	a := &c.ATS
	if a.AuthURL == "" {
		a.AuthURL = "https://id.jobadder.com/connect/authorize"
	}
	if a.TokenURL == "" {
		a.TokenURL = "https://id.jobadder.com/connect/token"
	}
	if a.BaseURL == "" {
		a.BaseURL = "https://api.jobadder.com/v2"
	}
	if a.AppURL == "" {
		a.AppURL = "https://app.jobadder.com"
	}
	if a.ApplyURLBase == "" {
		a.ApplyURLBase = "https://clientapps.jobadder.com/67514/artisan/jobs"
	}
	if len(a.NoteTypes) == 0 {
		a.NoteTypes = []string{"Internal interview", "Candidate interview", "Phone Screen"}
	}
	if a.PageLimit <= 0 {
		a.PageLimit = 500
	}

	m := &c.Mail
	if m.BaseURL == "" {
		m.BaseURL = "https://api.brevo.com/v3"
	}
	if m.OptInAttribute == "" {
		m.OptInAttribute = "JOB_ALERTS"
	}
	if m.BatchSize <= 0 || m.BatchSize > 1000 {
		m.BatchSize = 1000
	}
	if m.BatchPause <= 0 {
		m.BatchPause = time.Second
	}

	if c.CMS.CategoryID <= 0 {
		c.CMS.CategoryID = 6
	}

	d := &c.Discovery
	if d.WindowDays <= 0 {
		d.WindowDays = 21
	}
	if d.SelectCount <= 0 {
		d.SelectCount = 5
	}
	if d.NoteBatch <= 0 {
		d.NoteBatch = 20
	}
	if d.NotePause <= 0 {
		d.NotePause = 500 * time.Millisecond
	}
	if d.HydrationBatch <= 0 {
		d.HydrationBatch = 10
	}
	if d.HydrationPause <= 0 {
		d.HydrationPause = time.Second
	}

	if c.Campaign.ResetDelay <= 0 {
		c.Campaign.ResetDelay = 2 * time.Second
	}

	if c.Schedule.RoundupCron == "" {
		c.Schedule.RoundupCron = "0 14 * * *"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Australia/Sydney"
	}

	o := &c.Ollama
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:11434"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.CircuitFailureThreshold <= 0 {
		o.CircuitFailureThreshold = 5
	}
	if o.CircuitReset <= 0 {
		o.CircuitReset = 30 * time.Second
	}

	e := &c.EngineConfig
	if e.Timeout <= 0 {
		e.Timeout = 20 * time.Second
	}
	if e.Template.Version == "" {
		e.Template.Version = "v1"
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}

	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}

	return b
}
