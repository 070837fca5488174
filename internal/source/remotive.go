package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobsync/internal/model"
)

const remotiveAPIURL = "https://remotive.com/api/remote-jobs"

// remotiveCategories are fetched in turn; "" is the unfiltered feed.
var remotiveCategories = []string{"", "data", "analyst", "business"}

// Remotive reads the public remote-jobs API. The feed is not keyword
// searchable so titles are matched against the configured keywords locally.
type Remotive struct {
	APIURL   string
	keywords []string
	client   *Client
}

func NewRemotive(opts Options) *Remotive {
	return &Remotive{
		APIURL:   remotiveAPIURL,
		keywords: opts.Keywords,
		client:   NewClient(opts.RPS, http.Header{"Accept": {"application/json"}}),
	}
}

func (r *Remotive) Name() model.Source { return model.SourceRemotive }

type remotiveResponse struct {
	Jobs []remotiveJob `json:"jobs"`
}

type remotiveJob struct {
	Title           string   `json:"title"`
	CompanyName     string   `json:"company_name"`
	URL             string   `json:"url"`
	Salary          string   `json:"salary"`
	Description     string   `json:"description"`
	PublicationDate string   `json:"publication_date"`
	Tags            []string `json:"tags"`
	Location        string   `json:"candidate_required_location"`
}

func (r *Remotive) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	return runSearches(ctx, r.Name(), remotiveCategories, r.fetchCategory)
}

func (r *Remotive) fetchCategory(ctx context.Context, category string) ([]model.RawPosting, error) {
	p := url.Values{}
	p.Set("limit", "50")
	if category != "" {
		p.Set("category", category)
	}
	body, err := r.client.Get(ctx, r.APIURL+"?"+p.Encode())
	if err != nil {
		return nil, err
	}

	var resp remotiveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	now := time.Now()
	out := make([]model.RawPosting, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		if strings.TrimSpace(j.Title) == "" || !MatchesKeyword(j.Title, r.keywords) {
			continue
		}
		location := "Remote"
		if j.Location != "" && !strings.EqualFold(j.Location, "worldwide") {
			location = "Remote - " + j.Location
		}
		out = append(out, model.RawPosting{
			Source:      model.SourceRemotive,
			Title:       collapse(j.Title),
			Company:     orDefault(j.CompanyName, fallbackCompany),
			Location:    location,
			Experience:  "0-3 years",
			Salary:      strings.TrimSpace(j.Salary),
			Description: truncate(stripHTML(j.Description)),
			Skills:      strings.Join(j.Tags, ", "),
			SourceURL:   "https://remotive.com/remote-jobs",
			ApplyURL:    j.URL,
			PostedAt:    parsePostedAt(j.PublicationDate, now),
			IsRemote:    true,
		})
	}
	return out, nil
}
