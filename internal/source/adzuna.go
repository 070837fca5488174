package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobsync/internal/model"
)

const (
	adzunaAPIURL    = "https://api.adzuna.com/v1/api/jobs"
	adzunaSiteURL   = "https://www.adzuna.in"
	adzunaPageSize  = 20
	adzunaMaxPages  = 2 // max 40 results per keyword
	adzunaMaxDays   = 7
	adzunaPerScrape = 15
)

// Adzuna uses the official API when AppID and AppKey are set and falls back
// to scraping the public search page otherwise.
type Adzuna struct {
	APIURL   string
	SiteURL  string
	AppID    string
	AppKey   string
	Country  string // "in", "gb", "us", …
	keywords []string
	client   *Client
}

// NewAdzuna constructs the adapter with a shared HTTP client.
func NewAdzuna(opts Options) *Adzuna {
	country := opts.AdzunaCountry
	if country == "" {
		country = "in"
	}
	return &Adzuna{
		APIURL:   adzunaAPIURL,
		SiteURL:  adzunaSiteURL,
		AppID:    opts.AdzunaAppID,
		AppKey:   opts.AdzunaAppKey,
		Country:  country,
		keywords: opts.Keywords,
		client:   NewClient(opts.RPS, http.Header{"Accept": {"application/json, text/html, */*"}}),
	}
}

func (a *Adzuna) Name() model.Source { return model.SourceAdzuna }

func (a *Adzuna) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	if a.AppID == "" || a.AppKey == "" {
		slog.Debug("ADZUNA_APP_ID / ADZUNA_APP_KEY not set, scraping search page")
		return runSearches(ctx, a.Name(), a.keywords, a.scrapeKeyword)
	}
	return runSearches(ctx, a.Name(), a.keywords, a.fetchKeyword)
}

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Company     adzunaLabel    `json:"company"`
	Location    adzunaLabel    `json:"location"`
	Category    adzunaCategory `json:"category"`
	SalaryMin   float64        `json:"salary_min"`
	SalaryMax   float64        `json:"salary_max"`
	RedirectURL string         `json:"redirect_url"`
	Created     string         `json:"created"`
}

type adzunaLabel struct {
	DisplayName string `json:"display_name"`
}

type adzunaCategory struct {
	Label string `json:"label"`
}

// fetchKeyword pages through the API until a short page or adzunaMaxPages.
func (a *Adzuna) fetchKeyword(ctx context.Context, keyword string) ([]model.RawPosting, error) {
	var out []model.RawPosting
	for page := 1; page <= adzunaMaxPages; page++ {
		batch, err := a.fetchPage(ctx, keyword, page)
		if err != nil {
			if len(out) > 0 {
				slog.Warn("adzuna page failed, keeping earlier pages", "keyword", keyword, "page", page, "err", err)
				return out, nil
			}
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		out = append(out, batch...)
		if len(batch) < adzunaPageSize {
			break
		}
	}
	return out, nil
}

func (a *Adzuna) fetchPage(ctx context.Context, keyword string, page int) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.APIURL, a.Country, page)

	params := url.Values{}
	params.Set("app_id", a.AppID)
	params.Set("app_key", a.AppKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("what", keyword)
	params.Set("max_days_old", strconv.Itoa(adzunaMaxDays))
	params.Set("sort_by", "date")
	params.Set("content-type", "application/json")

	body, err := a.client.Get(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var apiResp adzunaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	now := time.Now()
	out := make([]model.RawPosting, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		location := orDefault(r.Location.DisplayName, defaultLocation)
		out = append(out, model.RawPosting{
			Source:      model.SourceAdzuna,
			Title:       collapse(stripHTML(r.Title)),
			Company:     orDefault(r.Company.DisplayName, fallbackCompany),
			Location:    location,
			Experience:  "0-3 years",
			Salary:      formatSalary(r.SalaryMin, r.SalaryMax),
			Description: truncate(stripHTML(r.Description)),
			SourceURL:   a.SiteURL + "/jobs/search?q=" + url.QueryEscape(keyword),
			ApplyURL:    r.RedirectURL,
			PostedAt:    parsePostedAt(r.Created, now),
			IsRemote:    remoteText(location) || remoteText(r.Category.Label),
		})
	}
	return out, nil
}

// formatSalary renders a rupee range in thousands, e.g. "₹300K - ₹450K".
func formatSalary(low, high float64) string {
	if low <= 0 {
		return ""
	}
	lo := int(math.Round(low / 1000))
	if high <= 0 || high == low {
		return fmt.Sprintf("₹%dK", lo)
	}
	return fmt.Sprintf("₹%dK - ₹%dK", lo, int(math.Round(high/1000)))
}

func (a *Adzuna) scrapeKeyword(ctx context.Context, keyword string) ([]model.RawPosting, error) {
	p := url.Values{}
	p.Set("q", keyword)
	p.Set("w", "india")
	p.Set("days_old", strconv.Itoa(adzunaMaxDays))
	p.Set("sort", "date")
	pageURL := a.SiteURL + "/search?" + p.Encode()

	doc, err := a.client.Document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var out []model.RawPosting
	doc.Find(`[data-cy="result"], article.result, div.result`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= adzunaPerScrape {
			return false
		}
		link := s.Find("h2 a, h3 a").First()
		title := collapse(link.Text())
		if title == "" {
			title = collapse(s.Find(".result-title").First().Text())
		}
		if title == "" {
			return true
		}
		location := collapse(s.Find(`.result-location, [data-cy="location"]`).First().Text())
		href, _ := link.Attr("href")

		out = append(out, model.RawPosting{
			Source:      model.SourceAdzuna,
			Title:       title,
			Company:     orDefault(collapse(s.Find(`.result-company, [data-cy="company"]`).First().Text()), fallbackCompany),
			Location:    orDefault(location, defaultLocation),
			Experience:  "0-3 years",
			Salary:      collapse(s.Find(`.result-salary, [data-cy="salary"]`).First().Text()),
			Description: truncate(collapse(s.Find(".result-description, .description").First().Text())),
			SourceURL:   pageURL,
			ApplyURL:    absolute(a.SiteURL, href),
			IsRemote:    remoteText(location),
		})
		return true
	})
	return out, nil
}
