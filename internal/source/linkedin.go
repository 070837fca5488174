package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobsync/internal/model"
)

const (
	linkedinSearchURL = "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"
	linkedinBaseURL   = "https://www.linkedin.com"
	linkedinGeoIndia  = "102713980"
	linkedinPerPage   = 20
)

// LinkedIn reads the public guest job-search endpoint, which returns bare
// <li> job cards without authentication.
type LinkedIn struct {
	SearchURL string
	keywords  []string
	client    *Client
}

// NewLinkedIn builds the adapter for the configured keywords.
func NewLinkedIn(opts Options) *LinkedIn {
	h := http.Header{}
	h.Set("Referer", "https://www.linkedin.com/jobs/search")
	return &LinkedIn{
		SearchURL: linkedinSearchURL,
		keywords:  opts.Keywords,
		client:    NewClient(opts.RPS, h),
	}
}

func (l *LinkedIn) Name() model.Source { return model.SourceLinkedIn }

func (l *LinkedIn) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	return runSearches(ctx, l.Name(), l.searchURLs(), l.fetchPage)
}

// searchURLs yields one entry-level India search per keyword plus a
// remote-only (f_WT=2) search for the first keyword.
func (l *LinkedIn) searchURLs() []string {
	var out []string
	for i, kw := range l.keywords {
		p := url.Values{}
		p.Set("keywords", kw)
		p.Set("location", "India")
		p.Set("geoId", linkedinGeoIndia)
		p.Set("f_E", "1,2,3")
		p.Set("sortBy", "DD")
		p.Set("start", "0")
		out = append(out, l.SearchURL+"?"+p.Encode())
		if i == 0 {
			p.Set("f_WT", "2")
			out = append(out, l.SearchURL+"?"+p.Encode())
		}
	}
	return out
}

func (l *LinkedIn) fetchPage(ctx context.Context, searchURL string) ([]model.RawPosting, error) {
	doc, err := l.client.Document(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	remoteSearch := strings.Contains(searchURL, "f_WT=2")
	now := time.Now()

	var out []model.RawPosting
	doc.Find("li").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= linkedinPerPage {
			return false
		}
		title := strings.TrimSpace(s.Find(".base-search-card__title").First().Text())
		company := strings.TrimSpace(s.Find(".base-search-card__subtitle").First().Text())
		location := strings.TrimSpace(s.Find(".job-search-card__location").First().Text())
		if title == "" || company == "" {
			return true
		}

		dateText, ok := s.Find("time").Attr("datetime")
		if !ok {
			dateText = s.Find(".job-search-card__listdate").Text()
		}
		href, _ := s.Find("a.base-card__full-link").Attr("href")
		if href == "" {
			href, _ = s.Find("a").First().Attr("href")
		}

		out = append(out, model.RawPosting{
			Source:     model.SourceLinkedIn,
			Title:      collapse(title),
			Company:    collapse(company),
			Location:   orDefault(collapse(location), defaultLocation),
			Experience: "0-3 years",
			SourceURL:  linkedinBaseURL + "/jobs/search/?keywords=analyst&location=India",
			ApplyURL:   absolute(linkedinBaseURL, href),
			PostedAt:   parsePostedAt(dateText, now),
			IsRemote:   remoteText(location) || remoteSearch,
		})
		return true
	})
	return out, nil
}
