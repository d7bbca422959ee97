package ollama

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompt is a parsed prompt template. Missing keys render as zero values.
type Prompt struct {
	tpl *template.Template
}

func ParsePrompt(text string) (*Prompt, error) {
	tpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt: %w", err)
	}
	return &Prompt{tpl: tpl}, nil
}

func (p *Prompt) Render(data any) (string, error) {
	var sb strings.Builder
	if err := p.tpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}
