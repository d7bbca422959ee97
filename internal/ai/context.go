package ai

import (
	"strings"

	"github.com/garnizeh/talentmail/internal/format"
	"github.com/garnizeh/talentmail/internal/models"
)

const (
	bioContextLimit  = 300
	bioFallbackLimit = 250
)

func truncateRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}

// BuildContext renders the candidate facts handed to the model, one per line.
func BuildContext(c models.Candidate) string {
	var parts []string
	parts = append(parts, "Name: "+format.FullName(c))

	e := c.Employment
	if e.Current != nil && e.Current.Position != "" {
		parts = append(parts, "Current Role: "+e.Current.Position)
		if e.Current.Employer != "" {
			parts = append(parts, "Company: "+e.Current.Employer)
		}
	}

	if len(e.History) > 0 {
		recent := make([]string, 0, 3)
		for _, h := range e.History[:min(3, len(e.History))] {
			s := h.Position
			if h.Employer != "" {
				s += " at " + h.Employer
			}
			recent = append(recent, s)
		}
		parts = append(parts, "Recent Experience: "+strings.Join(recent, "; "))
	}

	if len(c.SkillTags) > 0 {
		parts = append(parts, "Skills: "+strings.Join(c.SkillTags[:min(10, len(c.SkillTags))], ", "))
	}

	if bio := format.StripHTML(c.Summary); bio != "" {
		cut, _ := truncateRunes(bio, bioContextLimit)
		parts = append(parts, "Bio: "+cut)
	}

	if e.Ideal != nil && e.Ideal.Position != "" {
		parts = append(parts, "Seeking: "+e.Ideal.Position)
	}

	return strings.Join(parts, "\n")
}

// Fallback is the deterministic summary used when no model is configured or the
// model output is unusable.
func Fallback(c models.Candidate) string {
	if bio := format.StripHTML(c.Summary); bio != "" {
		if cut, truncated := truncateRunes(bio, bioFallbackLimit); truncated {
			return cut + "..."
		}
		return bio
	}

	title := "Professional"
	switch e := c.Employment; {
	case e.Current != nil && e.Current.Position != "":
		title = e.Current.Position
	case e.Ideal != nil && e.Ideal.Position != "":
		title = e.Ideal.Position
	}

	skills := "various skills"
	if len(c.SkillTags) > 0 {
		skills = strings.Join(c.SkillTags[:min(3, len(c.SkillTags))], ", ")
	}

	return "An experienced " + title + " with expertise in " + skills +
		". Brings a strong track record of delivering results and contributing to team success."
}
