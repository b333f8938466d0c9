// Package topics loads and validates topic profiles: the per-vertical
// search queries, categories, score floor, and generation guidance the
// pipeline runs against.
package topics

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blogforge-agent/internal/config"
)

// Profile describes one topical vertical. Immutable once loaded for a run.
type Profile struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	AuthorName        string   `yaml:"author_name"`
	Queries           []string `yaml:"queries"`
	Categories        []string `yaml:"categories"`
	MinScore          float64  `yaml:"min_score"`
	ScoringGuidelines string   `yaml:"scoring_guidelines"`
	WritingGuidelines string   `yaml:"writing_guidelines"`
}

type topicsFile struct {
	Topics []Profile `yaml:"topics"`
}

// Load reads topic profiles from the configured YAML file. A missing file
// yields a single default profile built from config; a malformed profile is
// a fatal configuration error.
func Load(cfg *config.Config, onlyIDs []string) ([]Profile, error) {
	path := cfg.Topics.File

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Profile{defaultProfile(cfg)}, nil
		}
		return nil, fmt.Errorf("reading topics file %s: %w", path, err)
	}

	var file topicsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing topics file %s: %w", path, err)
	}
	if len(file.Topics) == 0 {
		return []Profile{defaultProfile(cfg)}, nil
	}

	seen := make(map[string]bool)
	profiles := make([]Profile, 0, len(file.Topics))
	for i := range file.Topics {
		p, err := normalize(file.Topics[i], cfg)
		if err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate topic id: %s", p.ID)
		}
		seen[p.ID] = true
		profiles = append(profiles, p)
	}

	if len(onlyIDs) > 0 {
		profiles = filterByID(profiles, onlyIDs)
	}
	if len(profiles) == 0 {
		return []Profile{defaultProfile(cfg)}, nil
	}
	return profiles, nil
}

func normalize(p Profile, cfg *config.Config) (Profile, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return p, fmt.Errorf("topic missing 'id'")
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.ID
	}
	queries := p.Queries[:0]
	for _, q := range p.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	p.Queries = queries
	if len(p.Queries) == 0 {
		return p, fmt.Errorf("topic %q has no queries", p.ID)
	}
	if p.MinScore <= 0 {
		p.MinScore = cfg.Scoring.MinUsabilityScore
	}
	return p, nil
}

func filterByID(profiles []Profile, ids []string) []Profile {
	allowed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = true
		}
	}
	out := profiles[:0]
	for _, p := range profiles {
		if allowed[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func defaultProfile(cfg *config.Config) Profile {
	return Profile{
		ID:       "general",
		Name:     "General",
		Queries:  []string{"news"},
		MinScore: cfg.Scoring.MinUsabilityScore,
	}
}
