package source

import (
	"context"
	"log/slog"
	"strings"

	"jobsync/internal/model"
)

// ContainsRedFlag returns true if any red flag term appears (case-insensitive)
// anywhere in the combined title + company + description text.
func ContainsRedFlag(title, company, description string, redFlags []string) bool {
	if len(redFlags) == 0 {
		return false
	}
	combined := strings.ToLower(title + " " + company + " " + description)
	for _, flag := range redFlags {
		if flag == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(flag)) {
			return true
		}
	}
	return false
}

// MatchesKeyword reports whether title contains any of keywords. An empty
// keyword list matches everything.
func MatchesKeyword(title string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	t := strings.ToLower(title)
	for _, k := range keywords {
		if k != "" && strings.Contains(t, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

type excluding struct {
	Adapter
	terms []string
}

// WithExclusions wraps a so that postings matching any red-flag term are
// dropped before they reach the orchestrator.
func WithExclusions(a Adapter, terms []string) Adapter {
	return &excluding{Adapter: a, terms: terms}
}

func (e *excluding) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	raw, err := e.Adapter.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	kept := raw[:0]
	for _, rp := range raw {
		if ContainsRedFlag(rp.Title, rp.Company, rp.Description, e.terms) {
			continue
		}
		kept = append(kept, rp)
	}
	if dropped := len(raw) - len(kept); dropped > 0 {
		slog.Info("red-flag filter", "source", e.Name(), "dropped", dropped)
	}
	return kept, nil
}
