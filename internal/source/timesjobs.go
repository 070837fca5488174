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
	timesjobsSearchURL = "https://www.timesjobs.com/candidate/job-search.html"
	timesjobsBaseURL   = "https://www.timesjobs.com"
	timesjobsPerPage   = 20
	timesjobsMaxSkills = 5
)

// TimesJobs scrapes the candidate search page. The site serves an
// incomplete certificate chain, so its client skips verification.
type TimesJobs struct {
	SearchURL string
	keywords  []string
	client    *Client
}

func NewTimesJobs(opts Options) *TimesJobs {
	return &TimesJobs{
		SearchURL: timesjobsSearchURL,
		keywords:  opts.Keywords,
		client:    NewClient(opts.RPS, nil, withInsecureTLS()),
	}
}

func (tj *TimesJobs) Name() model.Source { return model.SourceTimesJobs }

func (tj *TimesJobs) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	var pages []string
	for _, kw := range tj.keywords {
		p := url.Values{}
		p.Set("searchType", "personalizedSearch")
		p.Set("from", "submit")
		p.Set("searchTextSrc", "ft")
		p.Set("searchTextText", kw)
		p.Set("txtKeywords", kw)
		p.Set("txtLocation", "")
		p.Set("pDate", "I")
		p.Set("sequence", "1")
		p.Set("startPage", "1")
		pages = append(pages, tj.SearchURL+"?"+p.Encode())
	}
	return runSearches(ctx, tj.Name(), pages, tj.fetchPage)
}

func (tj *TimesJobs) fetchPage(ctx context.Context, pageURL string) ([]model.RawPosting, error) {
	doc, err := tj.client.Document(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	var out []model.RawPosting
	doc.Find("li.clearfix.job-bx").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= timesjobsPerPage {
			return false
		}
		link := s.Find("h2 a").First()
		title := collapse(link.Text())
		if title == "" {
			title = collapse(s.Find(".job-title a").Text())
		}
		if title == "" {
			return true
		}

		company := collapse(s.Find(".joblist-comp-name").Text())
		if company == "" {
			company = collapse(s.Find(".comp-name").Text())
		}

		var skills []string
		s.Find(".srp-skills li").Each(func(_ int, t *goquery.Selection) {
			if v := collapse(t.Text()); v != "" {
				skills = append(skills, v)
			}
		})
		location := collapse(s.Find(".job-location").First().Text())
		if location == "" && len(skills) > 0 {
			location = skills[len(skills)-1]
		}
		location = orDefault(location, defaultLocation)
		if len(skills) > timesjobsMaxSkills {
			skills = skills[:timesjobsMaxSkills]
		}
		href, _ := link.Attr("href")

		out = append(out, model.RawPosting{
			Source:      model.SourceTimesJobs,
			Title:       title,
			Company:     orDefault(company, fallbackCompany),
			Location:    location,
			Experience:  orDefault(collapse(s.Find(".srp-exp").Text()), "0-3 years"),
			Salary:      collapse(s.Find(".salary").Text()),
			Description: truncate(collapse(s.Find(".list-job-dtl").Text())),
			Skills:      strings.Join(skills, ", "),
			SourceURL:   pageURL,
			ApplyURL:    absolute(timesjobsBaseURL, href),
			PostedAt:    parsePostedAt(collapse(s.Find(".job-post-day").Text()), now),
			IsRemote:    remoteText(location),
		})
		return true
	})
	return out, nil
}
