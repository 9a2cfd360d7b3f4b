package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/huddle/pkg/models"
)

// KeywordCatalog is the intent vocabulary and its keyword table.
type KeywordCatalog struct {
	// Categories is the closed set of categories a classification may return.
	Categories []string `yaml:"categories"`
	// Keywords maps a lowercase keyword to one category.
	Keywords map[string]string `yaml:"keywords"`
}

type agentsFile struct {
	Agents []models.Agent `yaml:"agents"`
}

type providersFile struct {
	Providers []models.Provider `yaml:"providers"`
}

// LoadAgents reads an agent catalog. An empty path returns DefaultAgents.
func LoadAgents(path string) ([]models.Agent, error) {
	if path == "" {
		return DefaultAgents(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents file %s: %w", path, err)
	}
	if len(f.Agents) == 0 {
		return nil, fmt.Errorf("agents file %s defines no agents", path)
	}
	return f.Agents, nil
}

// LoadKeywords reads a keyword table. An empty path returns DefaultKeywords.
func LoadKeywords(path string) (*KeywordCatalog, error) {
	if path == "" {
		return DefaultKeywords(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords file: %w", err)
	}

	var cat KeywordCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse keywords file %s: %w", path, err)
	}
	if len(cat.Categories) == 0 {
		return nil, fmt.Errorf("keywords file %s defines no categories", path)
	}
	return &cat, nil
}

// LoadProviders reads a provider directory seed file.
func LoadProviders(path string) ([]models.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var f providersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", path, err)
	}
	return f.Providers, nil
}

// DefaultAgents returns the built-in company roster.
func DefaultAgents() []models.Agent {
	return []models.Agent{
		{
			ID:           "ceo",
			Name:         "Morgan",
			Role:         "ceo",
			Capabilities: []string{"coordination", "standup", "prioritization"},
			Persona:      "You run the company's meetings. Keep discussion moving, assign owners, and summarize decisions in a few sentences.",
		},
		{
			ID:           "planner",
			Name:         "Riley",
			Role:         "planner",
			Capabilities: []string{"planning", "scheduling", "booking", "event"},
			Persona:      "You plan events and logistics. Break requests into concrete next steps with dates.",
		},
		{
			ID:           "finance",
			Name:         "Sam",
			Role:         "finance",
			Capabilities: []string{"budget", "invoice", "payment", "quote"},
			Persona:      "You own budgets and quotes. Be precise about amounts and flag anything over budget.",
		},
		{
			ID:           "support",
			Name:         "Jordan",
			Role:         "support",
			Capabilities: []string{"customer", "complaint", "refund", "escalation"},
			Persona:      "You handle customer issues. Be calm and specific about what happens next.",
		},
	}
}

// DefaultKeywords returns the built-in service vocabulary.
func DefaultKeywords() *KeywordCatalog {
	return &KeywordCatalog{
		Categories: []string{
			"plumber", "electrician", "florist", "caterer", "photographer",
			"cleaner", "mover", "venue", "dj", "handyman",
		},
		Keywords: map[string]string{
			"plumber":       "plumber",
			"plumbing":      "plumber",
			"pipe":          "plumber",
			"leak":          "plumber",
			"drain":         "plumber",
			"toilet":        "plumber",
			"electrician":   "electrician",
			"electrical":    "electrician",
			"wiring":        "electrician",
			"outlet":        "electrician",
			"florist":       "florist",
			"flower":        "florist",
			"bouquet":       "florist",
			"caterer":       "caterer",
			"catering":      "caterer",
			"food":          "caterer",
			"photographer":  "photographer",
			"photo":         "photographer",
			"photography":   "photographer",
			"cleaner":       "cleaner",
			"cleaning":      "cleaner",
			"maid":          "cleaner",
			"mover":         "mover",
			"moving":        "mover",
			"venue":         "venue",
			"hall":          "venue",
			"dj":            "dj",
			"music":         "dj",
			"handyman":      "handyman",
			"repair":        "handyman",
			"wedding venue": "venue",
		},
	}
}
