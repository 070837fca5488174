package source

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxDescription  = 500
	fallbackCompany = "Company"
	defaultLocation = "India"
)

// truncate cuts s to at most maxDescription runes.
func truncate(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxDescription {
		return s
	}
	r := []rune(s)
	return string(r[:maxDescription])
}

// stripHTML returns the visible text of an HTML fragment with whitespace
// collapsed.
func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// remoteText reports whether a location string describes remote work.
func remoteText(location string) bool {
	l := strings.ToLower(location)
	return strings.Contains(l, "remote") || strings.Contains(l, "work from home")
}

// absolute resolves href against base; empty href yields "".
func absolute(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

var relativeAge = regexp.MustCompile(`(\d+)\+?\s*(minute|min|hour|hr|day|week|month)s?\s+ago`)

// parsePostedAt understands RFC 3339, plain dates and relative phrases such
// as "3 days ago" or "Just posted". Unparseable text yields nil so the
// caller falls back to the ingestion time.
func parsePostedAt(text string, now time.Time) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "02 Jan 2006", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	if ms, err := strconv.ParseInt(text, 10, 64); err == nil && ms > 1e12 {
		t := time.UnixMilli(ms).UTC()
		return &t
	}

	l := strings.ToLower(text)
	switch {
	case strings.Contains(l, "just"), strings.Contains(l, "today"), strings.Contains(l, "few hours"), strings.Contains(l, "few minutes"):
		t := now
		return &t
	case strings.Contains(l, "yesterday"):
		t := now.AddDate(0, 0, -1)
		return &t
	}

	m := relativeAge.FindStringSubmatch(l)
	if m == nil {
		return nil
	}
	n, _ := strconv.Atoi(m[1])
	var t time.Time
	switch m[2] {
	case "minute", "min":
		t = now.Add(-time.Duration(n) * time.Minute)
	case "hour", "hr":
		t = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		t = now.AddDate(0, 0, -n)
	case "week":
		t = now.AddDate(0, 0, -7*n)
	case "month":
		t = now.AddDate(0, -n, 0)
	}
	return &t
}

// slug turns a keyword into a URL path segment: "Data Analyst" -> "data-analyst".
func slug(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), "-")
}
