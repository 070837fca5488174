package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobsync/internal/model"
)

const (
	indeedSearchURL = "https://in.indeed.com/jobs"
	indeedBaseURL   = "https://in.indeed.com"
	indeedPerPage   = 15
)

// indeedRemoteFilter is Indeed's "remote" attribute id.
const indeedRemoteFilter = "032b3046-06a3-4876-8dfd-474eb5e7ed11"

// Indeed scrapes the India search results page.
type Indeed struct {
	SearchURL string
	BaseURL   string
	keywords  []string
	client    *Client
}

func NewIndeed(opts Options) *Indeed {
	return &Indeed{
		SearchURL: indeedSearchURL,
		BaseURL:   indeedBaseURL,
		keywords:  opts.Keywords,
		client:    NewClient(opts.RPS, nil),
	}
}

func (ind *Indeed) Name() model.Source { return model.SourceIndeed }

func (ind *Indeed) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	var pages []string
	for i, kw := range ind.keywords {
		p := url.Values{}
		p.Set("q", kw)
		p.Set("l", "India")
		p.Set("fromage", "7")
		p.Set("sort", "date")
		pages = append(pages, ind.SearchURL+"?"+p.Encode())
		if i == 0 {
			p.Set("q", kw+" remote")
			p.Del("l")
			p.Set("remotejob", indeedRemoteFilter)
			pages = append(pages, ind.SearchURL+"?"+p.Encode())
		}
	}
	return runSearches(ctx, ind.Name(), pages, ind.fetchPage)
}

func (ind *Indeed) fetchPage(ctx context.Context, pageURL string) ([]model.RawPosting, error) {
	doc, err := ind.client.Document(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	remoteSearch := strings.Contains(pageURL, "remotejob=")
	now := time.Now()

	var out []model.RawPosting
	doc.Find("div.job_seen_beacon, .jobsearch-SerpJobCard").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= indeedPerPage {
			return false
		}
		title := collapse(s.Find("h2.jobTitle span[title]").First().Text())
		if title == "" {
			title = collapse(s.Find(`h2.jobTitle a span, [data-testid="job-title"], .title a`).First().Text())
		}
		company := collapse(s.Find(`[data-testid="company-name"], .companyName, .company`).First().Text())
		if title == "" || company == "" {
			return true
		}
		location := collapse(s.Find(`[data-testid="text-location"], .companyLocation`).First().Text())

		apply := ""
		jk, ok := s.Attr("data-jk")
		if !ok {
			jk, ok = s.Find("a[data-jk]").Attr("data-jk")
		}
		if ok && jk != "" {
			apply = ind.BaseURL + "/viewjob?jk=" + url.QueryEscape(jk)
		} else {
			href, _ := s.Find("h2.jobTitle a, a.jcs-JobTitle").First().Attr("href")
			apply = absolute(ind.BaseURL, href)
		}

		out = append(out, model.RawPosting{
			Source:      model.SourceIndeed,
			Title:       title,
			Company:     company,
			Location:    orDefault(location, defaultLocation),
			Experience:  "0-3 years",
			Salary:      collapse(s.Find(`[data-testid="attribute_snippet_testid"], .salarySnippet, .salary-snippet`).First().Text()),
			Description: truncate(collapse(s.Find(`.job-snippet, [data-testid="job-snippet"]`).Text())),
			SourceURL:   pageURL,
			ApplyURL:    apply,
			PostedAt:    parsePostedAt(collapse(s.Find(`.date, [data-testid="myJobsStateDate"]`).First().Text()), now),
			IsRemote:    remoteText(location) || remoteSearch,
		})
		return true
	})
	return out, nil
}
