package models

import (
	"time"
)

// State is the lifecycle position of a stateful campaign.
type State string

const (
	StateEmpty     State = "EMPTY"
	StateGenerated State = "GENERATED"
	StateTested    State = "TESTED"
	StateSent      State = "SENT"
)

// Campaign identifies one of the stateful email workflows.
type Campaign string

const (
	CampaignDigest     Campaign = "alist"
	CampaignNewsletter Campaign = "xpose"
)

// Valid reports whether c names a known stateful campaign.
func (c Campaign) Valid() bool {
	return c == CampaignDigest || c == CampaignNewsletter
}

// Candidate is the subset of an ATS candidate record the campaigns consume.
type Candidate struct {
	CandidateID int64          `json:"candidateId"`
	FirstName   string         `json:"firstName"`
	LastName    string         `json:"lastName"`
	Email       string         `json:"email,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	SkillTags   []string       `json:"skillTags,omitempty"`
	Employment  Employment     `json:"employment"`
	Links       CandidateLinks `json:"links"`
}

type Employment struct {
	Current *Position  `json:"current,omitempty"`
	Ideal   *Position  `json:"ideal,omitempty"`
	History []Position `json:"history,omitempty"`
}

type Position struct {
	Position string   `json:"position,omitempty"`
	Employer string   `json:"employer,omitempty"`
	Start    *DateRef `json:"start,omitempty"`
	End      *DateRef `json:"end,omitempty"`
}

type DateRef struct {
	Date string `json:"date,omitempty"`
}

type CandidateLinks struct {
	Photo string `json:"photo,omitempty"`
}

// Job is a live job or job-board ad as returned by the ATS.
type Job struct {
	JobID       int64     `json:"jobId"`
	AdID        int64     `json:"adId,omitempty"`
	Title       string    `json:"title"`
	Reference   string    `json:"reference,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	WorkType    string    `json:"workType,omitempty"`
	Location    *Location `json:"location,omitempty"`
	ApplyURL    string    `json:"applyUrl,omitempty"`
}

type Location struct {
	Name string `json:"name"`
}

type JobBoard struct {
	BoardID int64  `json:"boardId"`
	Name    string `json:"name"`
}

// Article is a normalized CMS post.
type Article struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Excerpt       string `json:"excerpt"`
	Link          string `json:"link"`
	Date          string `json:"date"`
	FeaturedImage string `json:"featuredImage,omitempty"`
}

// ArticleRef is the id/title pair used for article pickers.
type ArticleRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Recipient is a mail platform contact.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CandidateItem is the mail template projection of a candidate.
type CandidateItem struct {
	Number      int    `json:"number"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Experience  string `json:"experience"`
	Summary     string `json:"summary"`
	ProfileURL  string `json:"profile_url"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	ImageURL    string `json:"image_url"`
	CandidateID int64  `json:"candidateId"`
}

// JobItem is the mail template projection of a job.
type JobItem struct {
	JobTitle       string `json:"job_title"`
	Location       string `json:"location"`
	JobType        string `json:"job_type"`
	JobDescription string `json:"job_description"`
	ApplyURL       string `json:"apply_url"`
}

// CampaignState is the persisted snapshot of one stateful campaign.
type CampaignState struct {
	Campaign    Campaign   `json:"campaign"`
	State       State      `json:"state"`
	RunID       string     `json:"runId,omitempty"`
	GeneratedAt *time.Time `json:"generatedAt"`
	TestSentAt  *time.Time `json:"testSentAt"`
	SentAt      *time.Time `json:"sentAt"`
	PoolSize    int        `json:"poolSize"`

	Candidates []CandidateItem `json:"candidates,omitempty"`

	FeaturedArticle *Article  `json:"featuredArticle,omitempty"`
	RecentArticles  []Article `json:"recentArticles,omitempty"`
	Jobs            []JobItem `json:"jobs,omitempty"`
}

// EmptyState returns the EMPTY snapshot for c.
func EmptyState(c Campaign) CampaignState {
	return CampaignState{Campaign: c, State: StateEmpty}
}

// TokenSet holds OAuth2 tokens for an integration. ExpiresAt is epoch milliseconds.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// StateHistory is an audit row written on every saved snapshot.
type StateHistory struct {
	ID           int64    `json:"id"`
	Campaign     Campaign `json:"campaign"`
	State        State    `json:"state"`
	SnapshotJSON string   `json:"snapshot_json"`
	Created      int64    `json:"created"`
}
