// Package format projects ATS and CMS records into the flat items mail templates consume.
package format

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/garnizeh/talentmail/internal/models"
)

const (
	DefaultYears        = 5
	DescriptionLimit    = 300
	defaultTitle        = "Professional"
	monthDuration       = 30 * 24 * time.Hour
	DefaultAppURL       = "https://app.jobadder.com"
	DefaultApplyURLBase = "https://clientapps.jobadder.com/67514/artisan/jobs"
)

const imageBase = "https://files.manuscdn.com/user_upload_by_module/session_file/310519663319947996/"

// CandidateImages are the decorative images assigned by position in the digest.
var CandidateImages = []string{
	imageBase + "pzTOcKITaobJarAC.png",
	imageBase + "NeuNOpUgADoHvDui.png",
	imageBase + "aattvrprsDIeLpzd.png",
	imageBase + "iaAQUFHBtSMsCVoC.png",
	imageBase + "JmKstOAridzHaWqF.png",
}

var strict = bluemonday.StrictPolicy()

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01"}

func parseDate(d *models.DateRef) (time.Time, bool) {
	if d == nil || d.Date == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, d.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// YearsOfExperience sums the month spans of the employment history, counting an open
// entry up to now. Entries with a missing or malformed start, or a malformed end,
// contribute nothing.
func YearsOfExperience(c models.Candidate, now time.Time) int {
	if len(c.Employment.History) == 0 {
		return DefaultYears
	}

	var months float64
	for _, h := range c.Employment.History {
		start, ok := parseDate(h.Start)
		if !ok {
			continue
		}
		end := now
		if h.End != nil && h.End.Date != "" {
			if end, ok = parseDate(h.End); !ok {
				continue
			}
		}
		months += math.Max(0, float64(end.Sub(start))/float64(monthDuration))
	}

	return int(math.Round(months / 12))
}

// CurrentTitle resolves current, then ideal, then most recent position.
func CurrentTitle(c models.Candidate) string {
	e := c.Employment
	if e.Current != nil && e.Current.Position != "" {
		return e.Current.Position
	}
	if e.Ideal != nil && e.Ideal.Position != "" {
		return e.Ideal.Position
	}
	if len(e.History) > 0 && e.History[0].Position != "" {
		return e.History[0].Position
	}
	return defaultTitle
}

func ExperienceLabel(years int) string {
	if years == 1 {
		return "1 Year"
	}
	return fmt.Sprintf("%d Years", years)
}

func FullName(c models.Candidate) string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// StripHTML removes all markup and decodes entities.
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Truncate strips markup and cuts s to at most limit runes followed by an ellipsis.
func Truncate(s string, limit int) string {
	plain := StripHTML(s)
	r := []rune(plain)
	if len(r) <= limit {
		return plain
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}

// Formatter builds template items using the configured link bases.
type Formatter struct {
	AppURL       string
	ApplyURLBase string
	Now          func() time.Time
}

func New(appURL, applyURLBase string) *Formatter {
	if appURL == "" {
		appURL = DefaultAppURL
	}
	if applyURLBase == "" {
		applyURLBase = DefaultApplyURLBase
	}
	return &Formatter{
		AppURL:       strings.TrimRight(appURL, "/"),
		ApplyURLBase: strings.TrimRight(applyURLBase, "/"),
		Now:          time.Now,
	}
}

// Candidate formats c at the 1-based position pos.
func (f *Formatter) Candidate(c models.Candidate, pos int, summary string) models.CandidateItem {
	years := YearsOfExperience(c, f.Now())

	image := CandidateImages[0]
	if pos >= 1 && pos <= len(CandidateImages) {
		image = CandidateImages[pos-1]
	}

	return models.CandidateItem{
		Number:      pos,
		Name:        FullName(c),
		Title:       CurrentTitle(c),
		Experience:  ExperienceLabel(years),
		Summary:     summary,
		ProfileURL:  fmt.Sprintf("%s/candidates/%d", f.AppURL, c.CandidateID),
		AvatarURL:   c.Links.Photo,
		ImageURL:    image,
		CandidateID: c.CandidateID,
	}
}

func (f *Formatter) Job(j models.Job) models.JobItem {
	item := models.JobItem{
		JobTitle: j.Title,
		Location: "Location TBD",
		JobType:  j.WorkType,
		ApplyURL: j.ApplyURL,
	}
	if item.JobTitle == "" {
		item.JobTitle = "Untitled Position"
	}
	if j.Location != nil && j.Location.Name != "" {
		item.Location = j.Location.Name
	}
	if item.JobType == "" {
		item.JobType = "Not specified"
	}
	if item.ApplyURL == "" {
		item.ApplyURL = fmt.Sprintf("%s/%d", f.ApplyURLBase, j.JobID)
	}

	desc := j.Summary
	if desc == "" {
		desc = j.Description
	}
	if desc == "" {
		desc = "No description available"
	}
	item.JobDescription = Truncate(desc, DescriptionLimit)

	return item
}

func (f *Formatter) Jobs(jobs []models.Job) []models.JobItem {
	out := make([]models.JobItem, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, f.Job(j))
	}
	return out
}
