package source_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsync/internal/model"
	"jobsync/internal/source"
)

var testOpts = source.Options{Keywords: []string{"data analyst"}}

func serve(t *testing.T, contentType, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// ── LinkedIn ───────────────────────────────────────────────────────────────

const linkedinHTML = `
<ul>
  <li>
    <a class="base-card__full-link" href="https://in.linkedin.com/jobs/view/123"></a>
    <h3 class="base-search-card__title">  Data Analyst  </h3>
    <h4 class="base-search-card__subtitle">Acme Analytics</h4>
    <span class="job-search-card__location">Bengaluru, Karnataka, India</span>
    <time datetime="2026-03-01">2 weeks ago</time>
  </li>
  <li>
    <h3 class="base-search-card__title">No company card</h3>
  </li>
</ul>`

func TestLinkedIn_ParsesCards(t *testing.T) {
	srv, hits := serve(t, "text/html", linkedinHTML)
	a := source.NewLinkedIn(testOpts)
	a.SearchURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	// The normal and the remote search return the same card, deduplicated
	// within the adapter.
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, hits.Load())

	p := got[0]
	assert.Equal(t, model.SourceLinkedIn, p.Source)
	assert.Equal(t, "Data Analyst", p.Title)
	assert.Equal(t, "Acme Analytics", p.Company)
	assert.Equal(t, "https://in.linkedin.com/jobs/view/123", p.ApplyURL)
	require.NotNil(t, p.PostedAt)
	assert.Equal(t, "2026-03-01", p.PostedAt.Format("2006-01-02"))
}

// ── Remotive ───────────────────────────────────────────────────────────────

const remotiveJSON = `{"jobs":[
  {"title":"Senior Data Analyst","company_name":"Globex","url":"https://remotive.com/1",
   "description":"<p>Work with <b>SQL</b></p>","publication_date":"2026-03-02T10:00:00",
   "tags":["sql","tableau"],"candidate_required_location":"Worldwide"},
  {"title":"Frontend Engineer","company_name":"Initech","url":"https://remotive.com/2"}
]}`

func TestRemotive_FiltersByKeyword(t *testing.T) {
	srv, _ := serve(t, "application/json", remotiveJSON)
	a := source.NewRemotive(testOpts)
	a.APIURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "Senior Data Analyst", p.Title)
	assert.Equal(t, "Remote", p.Location)
	assert.True(t, p.IsRemote)
	assert.Equal(t, "sql, tableau", p.Skills)
	assert.Equal(t, "Work with SQL", p.Description)
}

// ── Naukri ─────────────────────────────────────────────────────────────────

const naukriJSON = `{"jobDetails":[
  {"title":"Business Analyst","companyName":"Wayne Corp","jdURL":"/job-listings-ba-1",
   "placeholders":[{"type":"experience","label":"0-2 Yrs"},{"type":"location","label":"Remote"}],
   "tagsAndSkills":"Excel,SQL","footerPlaceholderLabel":"3 Days Ago"},
  {"jobTitle":"Data Analyst","company":"Stark","location":"Pune","keySkills":["python","sql"]},
  {"companyName":"No Title Ltd"}
]}`

func TestNaukri_ReadsVariableShape(t *testing.T) {
	srv, _ := serve(t, "application/json", naukriJSON)
	a := source.NewNaukri(testOpts)
	a.SearchURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Business Analyst", got[0].Title)
	assert.Equal(t, "Remote", got[0].Location)
	assert.True(t, got[0].IsRemote)
	assert.Equal(t, "0-2 Yrs", got[0].Experience)
	assert.Equal(t, "https://www.naukri.com/job-listings-ba-1", got[0].ApplyURL)
	assert.NotNil(t, got[0].PostedAt)

	assert.Equal(t, "Stark", got[1].Company)
	assert.Equal(t, "Pune", got[1].Location)
	assert.Equal(t, "python, sql", got[1].Skills)
	assert.False(t, got[1].IsRemote)
}

// ── Internshala ────────────────────────────────────────────────────────────

const internshalaHTML = `
<div class="individual_internship">
  <a class="job-title-href" href="/job/detail/data-analyst-1">Data Analyst</a>
  <p class="company_name">Umbrella</p>
  <p class="locations"><span>Mumbai</span></p>
  <span class="stipend">₹ 3,00,000 - 4,00,000 /year</span>
  <div class="round_tabs"><span>Excel</span><span>Power BI</span></div>
</div>`

func TestInternshala_WorkFromHomePageIsRemote(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "work-from-home") {
			_, _ = w.Write([]byte(strings.Replace(internshalaHTML, "Data Analyst", "Remote Data Analyst", 1)))
			return
		}
		_, _ = w.Write([]byte(internshalaHTML))
	}))
	defer srv.Close()

	a := source.NewInternshala(testOpts)
	a.BaseURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"/jobs/data-analyst-jobs/", "/jobs/work-from-home-data-analyst-jobs/"}, paths)

	assert.False(t, got[0].IsRemote)
	assert.Equal(t, srv.URL+"/job/detail/data-analyst-1", got[0].ApplyURL)
	assert.Equal(t, "Excel, Power BI", got[0].Skills)
	assert.True(t, got[1].IsRemote)
}

// ── TimesJobs ──────────────────────────────────────────────────────────────

const timesjobsHTML = `
<ul>
<li class="clearfix job-bx">
  <h2><a href="https://www.timesjobs.com/job-detail/1">Junior Analyst</a></h2>
  <h3 class="joblist-comp-name">Hooli</h3>
  <ul class="srp-skills"><li>sql</li><li>excel</li></ul>
  <span class="job-location">Remote / Hyderabad</span>
  <span class="job-post-day">Posted few hours ago</span>
</li>
</ul>`

func TestTimesJobs_ParsesListing(t *testing.T) {
	srv, _ := serve(t, "text/html", timesjobsHTML)
	a := source.NewTimesJobs(testOpts)
	a.SearchURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Hooli", got[0].Company)
	assert.True(t, got[0].IsRemote)
	assert.Equal(t, "sql, excel", got[0].Skills)
	assert.NotNil(t, got[0].PostedAt)
}

// ── Adzuna ─────────────────────────────────────────────────────────────────

const adzunaJSON = `{"count":1,"results":[
  {"id":"9","title":"<strong>Data</strong> Analyst","company":{"display_name":"Soylent"},
   "location":{"display_name":"Chennai"},"category":{"label":"IT Jobs"},
   "salary_min":300000,"salary_max":450000,"redirect_url":"https://adzuna.in/r/9",
   "created":"2026-03-03T08:00:00Z"}
]}`

func TestAdzuna_APIWhenCredentialsSet(t *testing.T) {
	var gotPath, gotAppID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAppID = r.URL.Query().Get("app_id")
		_, _ = w.Write([]byte(adzunaJSON))
	}))
	defer srv.Close()

	opts := testOpts
	opts.AdzunaAppID, opts.AdzunaAppKey = "id", "key"
	a := source.NewAdzuna(opts)
	a.APIURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/in/search/1", gotPath)
	assert.Equal(t, "id", gotAppID)
	assert.Equal(t, "Data Analyst", got[0].Title)
	assert.Equal(t, "₹300K - ₹450K", got[0].Salary)
}

const adzunaHTML = `
<article class="result" data-cy="result">
  <h2><a href="/details/77">Data Analyst Trainee</a></h2>
  <div class="result-company">Vandelay</div>
  <div class="result-location">Work From Home</div>
</article>`

func TestAdzuna_ScrapesWithoutCredentials(t *testing.T) {
	srv, _ := serve(t, "text/html", adzunaHTML)
	a := source.NewAdzuna(testOpts)
	a.SiteURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, srv.URL+"/details/77", got[0].ApplyURL)
	assert.True(t, got[0].IsRemote)
	assert.Nil(t, got[0].PostedAt)
}

// ── Indeed ─────────────────────────────────────────────────────────────────

const indeedHTML = `
<div class="job_seen_beacon" data-jk="abc123">
  <h2 class="jobTitle"><a><span title="Data Analyst">Data Analyst</span></a></h2>
  <span data-testid="company-name">Cyberdyne</span>
  <div data-testid="text-location">Noida, Uttar Pradesh</div>
  <div class="job-snippet">Build dashboards.</div>
</div>`

func TestIndeed_ParsesJobKey(t *testing.T) {
	srv, _ := serve(t, "text/html", indeedHTML)
	a := source.NewIndeed(testOpts)
	a.SearchURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://in.indeed.com/viewjob?jk=abc123", got[0].ApplyURL)
	assert.Equal(t, "Build dashboards.", got[0].Description)
	// Same card appears on the remote search, dedup keeps the first.
	assert.False(t, got[0].IsRemote)
}

// ── Failure handling ───────────────────────────────────────────────────────

func TestAdapter_AllSearchesFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	a := source.NewIndeed(testOpts)
	a.SearchURL = srv.URL

	_, err := a.Fetch(context.Background())
	assert.Error(t, err)
}

func TestAdapter_PartialFailureKeepsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("remotejob") != "" {
			http.Error(w, "blocked", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(indeedHTML))
	}))
	defer srv.Close()

	a := source.NewIndeed(testOpts)
	a.SearchURL = srv.URL

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAdapter_CancelledContext(t *testing.T) {
	srv, hits := serve(t, "text/html", indeedHTML)
	a := source.NewIndeed(testOpts)
	a.SearchURL = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, hits.Load())
}

func TestAdapter_GzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(gzipBytes(t, remotiveJSON))
	}))
	defer srv.Close()

	a := source.NewRemotive(testOpts)
	a.APIURL = srv.URL
	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
