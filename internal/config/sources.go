package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jobsync/internal/model"
)

// SourcesFile is the optional YAML override named by SOURCES_FILE:
//
//	enabled:  [LinkedIn, Remotive, Naukri]
//	keywords: [data analyst, sql]
//	priority: [Naukri, LinkedIn]
//	exclude:  [unpaid, commission only]
//
// Empty lists leave the environment values untouched.
type SourcesFile struct {
	Enabled  []string `yaml:"enabled"`
	Keywords []string `yaml:"keywords"`
	Priority []string `yaml:"priority"`
	Exclude  []string `yaml:"exclude"`
}

func (c *Config) applySourcesFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("SOURCES_FILE: %w", err)
	}
	var f SourcesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("SOURCES_FILE %s: %w", path, err)
	}

	if len(f.Enabled) > 0 {
		enabled, err := parseSources(f.Enabled)
		if err != nil {
			return fmt.Errorf("SOURCES_FILE enabled: %w", err)
		}
		c.Enabled = inRegistryOrder(enabled)
	}
	if len(f.Priority) > 0 {
		prio, err := parseSources(f.Priority)
		if err != nil {
			return fmt.Errorf("SOURCES_FILE priority: %w", err)
		}
		c.Priority = completePriority(prio)
	}
	if len(f.Keywords) > 0 {
		c.Keywords = f.Keywords
	}
	if len(f.Exclude) > 0 {
		c.ExcludeTerms = append(c.ExcludeTerms, f.Exclude...)
	}
	return nil
}

func parseSources(names []string) ([]model.Source, error) {
	out := make([]model.Source, 0, len(names))
	for _, n := range names {
		src, err := model.ParseSource(n)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func inRegistryOrder(set []model.Source) []model.Source {
	want := make(map[model.Source]bool, len(set))
	for _, s := range set {
		want[s] = true
	}
	var out []model.Source
	for _, s := range model.AllSources {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

// completePriority appends any source missing from prio in registry order so
// every source has a rank.
func completePriority(prio []model.Source) []model.Source {
	seen := make(map[model.Source]bool, len(prio))
	var out []model.Source
	for _, s := range prio {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range model.AllSources {
		if !seen[s] {
			out = append(out, s)
		}
	}
	return out
}
