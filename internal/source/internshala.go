package source

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobsync/internal/model"
)

const (
	internshalaBaseURL = "https://internshala.com"
	internshalaPerPage = 15
)

// Internshala scrapes the fresher job listing pages, one per keyword slug,
// plus a work-from-home page for the first keyword.
type Internshala struct {
	BaseURL  string
	keywords []string
	client   *Client
}

func NewInternshala(opts Options) *Internshala {
	return &Internshala{
		BaseURL:  internshalaBaseURL,
		keywords: opts.Keywords,
		client:   NewClient(opts.RPS, http.Header{"Referer": {"https://internshala.com/"}}),
	}
}

func (in *Internshala) Name() model.Source { return model.SourceInternshala }

func (in *Internshala) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	var pages []string
	for i, kw := range in.keywords {
		pages = append(pages, in.BaseURL+"/jobs/"+slug(kw)+"-jobs/")
		if i == 0 {
			pages = append(pages, in.BaseURL+"/jobs/work-from-home-"+slug(kw)+"-jobs/")
		}
	}
	return runSearches(ctx, in.Name(), pages, in.fetchPage)
}

func (in *Internshala) fetchPage(ctx context.Context, pageURL string) ([]model.RawPosting, error) {
	doc, err := in.client.Document(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	wfhPage := strings.Contains(pageURL, "work-from-home")
	now := time.Now()

	var out []model.RawPosting
	doc.Find(".individual_internship, .internship-item-main").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= internshalaPerPage {
			return false
		}
		titleSel := s.Find(".job-title-href, .heading_4_5 a, h3 a").First()
		title := collapse(titleSel.Text())
		if title == "" {
			title = collapse(s.Find(`[data-analytics="profile_title"]`).Text())
		}
		if title == "" {
			return true
		}
		company := collapse(s.Find(".link_display_like_text, .company_name, .company").First().Text())
		location := collapse(s.Find(".location_link, .locations span, .location").First().Text())

		var skills []string
		s.Find(".round_tabs span").Each(func(_ int, t *goquery.Selection) {
			if v := collapse(t.Text()); v != "" {
				skills = append(skills, v)
			}
		})
		href, _ := titleSel.Attr("href")

		out = append(out, model.RawPosting{
			Source:     model.SourceInternshala,
			Title:      title,
			Company:    orDefault(company, fallbackCompany),
			Location:   orDefault(location, defaultLocation),
			Experience: "0-2 years",
			Salary:     collapse(s.Find(".stipend, .salary").First().Text()),
			Skills:     strings.Join(skills, ", "),
			SourceURL:  pageURL,
			ApplyURL:   absolute(in.BaseURL, href),
			PostedAt:   parsePostedAt(collapse(s.Find(".status-inactive, .posted_by_container").First().Text()), now),
			IsRemote:   remoteText(location) || wfhPage,
		})
		return true
	})
	return out, nil
}
