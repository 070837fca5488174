package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"jobsync/internal/model"
)

const (
	naukriSearchURL = "https://www.naukri.com/jobapi/v3/search"
	naukriBaseURL   = "https://www.naukri.com"
)

// Naukri calls the site's internal search API. Its response shape drifts
// between jobDetails, jobs and data.jobs, so it is read with gjson paths
// rather than a fixed struct.
type Naukri struct {
	SearchURL string
	keywords  []string
	client    *Client
}

func NewNaukri(opts Options) *Naukri {
	return &Naukri{
		SearchURL: naukriSearchURL,
		keywords:  opts.Keywords,
		client:    NewClient(opts.RPS, naukriHeaders()),
	}
}

func naukriHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-IN,en-US;q=0.9,en;q=0.8")
	h.Set("Referer", "https://www.naukri.com/")
	h.Set("Appid", "109")
	h.Set("Systemid", "Naukri")
	h.Set("Clientid", "d3skt0p")
	return h
}

func (n *Naukri) Name() model.Source { return model.SourceNaukri }

func (n *Naukri) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	return runSearches(ctx, n.Name(), n.keywords, n.fetchKeyword)
}

func (n *Naukri) fetchKeyword(ctx context.Context, keyword string) ([]model.RawPosting, error) {
	p := url.Values{}
	p.Set("noOfResults", "20")
	p.Set("urlType", "search_by_keyword")
	p.Set("searchType", "adv")
	p.Set("keyword", keyword)
	p.Set("k", keyword)
	p.Set("experience", "0")
	p.Set("seoKey", slug(keyword)+"-jobs")
	p.Set("src", "jobsearchDesk")
	body, err := n.client.Get(ctx, n.SearchURL+"?"+p.Encode())
	if err != nil {
		return nil, err
	}
	return parseNaukri(body, keyword, time.Now()), nil
}

func firstString(job gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := strings.TrimSpace(job.Get(p).String()); v != "" {
			return v
		}
	}
	return ""
}

// joinList renders either a JSON array or a plain string as "a, b, c".
func joinList(v gjson.Result) string {
	if !v.IsArray() {
		return strings.TrimSpace(v.String())
	}
	var parts []string
	for _, item := range v.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func parseNaukri(body []byte, keyword string, now time.Time) []model.RawPosting {
	root := gjson.ParseBytes(body)
	list := root.Get("jobDetails")
	if !list.IsArray() {
		list = root.Get("jobs")
	}
	if !list.IsArray() {
		list = root.Get("data.jobs")
	}

	var out []model.RawPosting
	list.ForEach(func(_, job gjson.Result) bool {
		title := firstString(job, "title", "jobTitle")
		if title == "" {
			return true
		}
		location := firstString(job, `placeholders.#(type=="location").label`, "location")
		location = orDefault(location, defaultLocation)

		apply := firstString(job, "jdURL")
		if apply == "" {
			apply = naukriBaseURL + job.Get("jobLink").String()
		}
		apply = absolute(naukriBaseURL, apply)

		skills := joinList(job.Get("tagsAndSkills"))
		if skills == "" {
			skills = joinList(job.Get("keySkills"))
		}
		if skills == "" {
			skills = joinList(job.Get("skills"))
		}

		out = append(out, model.RawPosting{
			Source:      model.SourceNaukri,
			Title:       collapse(title),
			Company:     orDefault(firstString(job, "companyName", "company"), fallbackCompany),
			Location:    location,
			Experience:  orDefault(firstString(job, "experienceText", `placeholders.#(type=="experience").label`, "experience"), "0-3 years"),
			Salary:      firstString(job, `placeholders.#(type=="salary").label`, "salary", "packageInLacs"),
			Description: truncate(stripHTML(firstString(job, "jobDescription", "description"))),
			Skills:      skills,
			SourceURL:   naukriBaseURL + "/" + slug(keyword) + "-jobs",
			ApplyURL:    apply,
			PostedAt:    parsePostedAt(firstString(job, "createdDate", "footerPlaceholderLabel"), now),
			IsRemote:    remoteText(location),
		})
		return true
	})
	return out
}
