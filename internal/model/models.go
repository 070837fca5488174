// Package model defines shared data structures for the aggregator.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Source names one of the job boards the aggregator knows about.
type Source string

const (
	SourceLinkedIn    Source = "LinkedIn"
	SourceRemotive    Source = "Remotive"
	SourceNaukri      Source = "Naukri"
	SourceInternshala Source = "Internshala"
	SourceTimesJobs   Source = "TimesJobs"
	SourceAdzuna      Source = "Adzuna"
	SourceIndeed      Source = "Indeed"
)

// AllSources lists every known source in registry order.
var AllSources = []Source{
	SourceLinkedIn,
	SourceRemotive,
	SourceNaukri,
	SourceInternshala,
	SourceTimesJobs,
	SourceAdzuna,
	SourceIndeed,
}

// ParseSource matches s case-insensitively against the known sources.
func ParseSource(s string) (Source, error) {
	for _, src := range AllSources {
		if strings.EqualFold(string(src), strings.TrimSpace(s)) {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// RawPosting is what a source adapter hands back for one scraped listing.
// Only Title and Company are expected to be non-empty.
type RawPosting struct {
	Source      Source
	Title       string
	Company     string
	Location    string
	Experience  string
	Salary      string
	Description string
	Skills      string
	SourceURL   string
	ApplyURL    string
	PostedAt    *time.Time
	IsRemote    bool
}

// Posting is a canonical, deduplicated job listing.
type Posting struct {
	ID          string     `json:"id" bson:"id" dynamodbav:"id"`
	Fingerprint string     `json:"job_hash" bson:"fingerprint" dynamodbav:"fingerprint"`
	Title       string     `json:"title" bson:"title" dynamodbav:"title"`
	Company     string     `json:"company" bson:"company" dynamodbav:"company"`
	Location    string     `json:"location,omitempty" bson:"location" dynamodbav:"location"`
	Experience  string     `json:"experience,omitempty" bson:"experience" dynamodbav:"experience"`
	Salary      string     `json:"salary,omitempty" bson:"salary" dynamodbav:"salary"`
	Description string     `json:"description,omitempty" bson:"description" dynamodbav:"description"`
	Skills      string     `json:"skills,omitempty" bson:"skills" dynamodbav:"skills"`
	Source      Source     `json:"source" bson:"source" dynamodbav:"source"`
	SourceURL   string     `json:"source_url,omitempty" bson:"source_url" dynamodbav:"source_url"`
	ApplyURL    string     `json:"apply_url,omitempty" bson:"apply_url" dynamodbav:"apply_url"`
	PostedAt    time.Time  `json:"posted_at" bson:"posted_at" dynamodbav:"posted_at"`
	FetchedAt   time.Time  `json:"fetched_at" bson:"fetched_at" dynamodbav:"fetched_at"`
	IsRemote    bool       `json:"is_remote" bson:"is_remote" dynamodbav:"is_remote"`
	IsNew       bool       `json:"is_new" bson:"is_new" dynamodbav:"is_new"`
	AppliedAt   *time.Time `json:"applied_at" bson:"applied_at" dynamodbav:"applied_at"`
}

// SourceResult summarises one adapter invocation within a cycle.
type SourceResult struct {
	Source  Source `json:"source"`
	Found   int    `json:"found"`
	New     int    `json:"new"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CycleState is the process-wide record of cycle timing and outcomes.
type CycleState struct {
	LastFetch   *time.Time     `json:"last_fetch"`
	NextFetch   *time.Time     `json:"next_fetch"`
	LastResults []SourceResult `json:"last_fetch_results"`
}

// Scrape log statuses.
const (
	LogStatusSuccess = "success"
	LogStatusError   = "error"
)

// ScrapeLogEntry is one append-only audit row per adapter invocation.
type ScrapeLogEntry struct {
	Source    Source    `json:"source" bson:"source" dynamodbav:"source"`
	Status    string    `json:"status" bson:"status" dynamodbav:"status"`
	JobsFound int       `json:"jobs_found" bson:"jobs_found" dynamodbav:"jobs_found"`
	JobsNew   int       `json:"jobs_new" bson:"jobs_new" dynamodbav:"jobs_new"`
	Error     *string   `json:"error" bson:"error" dynamodbav:"error"`
	ScrapedAt time.Time `json:"scraped_at" bson:"scraped_at" dynamodbav:"scraped_at"`
}

// Stats are aggregate counts over the full, unfiltered posting set.
type Stats struct {
	Total        int            `json:"total"`
	NewCount     int            `json:"new_count"`
	AppliedCount int            `json:"applied_count"`
	RemoteCount  int            `json:"remote_count"`
	BySource     map[Source]int `json:"by_source"`
}

// Keys used for CycleState persistence in the store's key/value table.
const (
	StateLastFetch        = "last_fetch"
	StateNextFetch        = "next_fetch"
	StateLastFetchResults = "last_fetch_results"
)
