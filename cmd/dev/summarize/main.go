package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/garnizeh/talentmail/internal/ai"
	"github.com/garnizeh/talentmail/internal/config"
	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/pkg/ollama"
)

const (
	uri   = "http://localhost:11434"
	model = "deepseek-r1:1.5b"
)

var sample = models.Candidate{
	CandidateID: 1,
	FirstName:   "Sam",
	LastName:    "Carter",
	Summary:     "Site manager with a strong record on commercial fit-outs.",
	SkillTags:   []string{"site management", "health and safety", "scheduling"},
	Employment: models.Employment{
		Current: &models.Position{Position: "Site Manager", Employer: "Northbuild", Start: &models.DateRef{Date: "2019-03"}},
		History: []models.Position{
			{Position: "Assistant Site Manager", Employer: "Keystone", Start: &models.DateRef{Date: "2014-06"}, End: &models.DateRef{Date: "2019-02"}},
		},
	},
}

func main() {
	base := flag.String("url", uri, "Ollama base URL")
	name := flag.String("model", model, "model name")
	flag.Parse()

	ctx := context.Background()

	client, err := ollama.NewDefaultClient(config.OllamaConfig{BaseURL: *base, Timeout: time.Minute})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	installed, err := client.Models(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("installed:", installed)

	engine, err := ai.NewEngine(ctx, client, config.EngineConfig{Model: *name, Timeout: time.Minute})
	if err != nil {
		log.Fatal(err)
	}

	resp, err := engine.Generate(ctx, sample)
	if err != nil {
		log.Printf("generate failed: %v", err)
		fmt.Println("fallback:", ai.Fallback(sample))
		return
	}
	fmt.Println("summary:", resp.Summary)
	fmt.Println("raw:", resp.Raw)
}
