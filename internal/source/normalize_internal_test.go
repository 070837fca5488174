package source

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 600)
	got := truncate(long)
	if n := utf8.RuneCountInString(got); n != maxDescription {
		t.Errorf("truncate rune count = %d, want %d", n, maxDescription)
	}
	if got := truncate("  short  "); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
}

func TestParsePostedAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2026-03-01T09:30:00Z", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"3 days ago", now.AddDate(0, 0, -3)},
		{"Posted 30+ Days Ago", now.AddDate(0, 0, -30)},
		{"2 hours ago", now.Add(-2 * time.Hour)},
		{"1 week ago", now.AddDate(0, 0, -7)},
		{"Just posted", now},
		{"Today", now},
		{"1741600000000", time.UnixMilli(1741600000000).UTC()},
	}
	for _, c := range cases {
		got := parsePostedAt(c.in, now)
		if got == nil {
			t.Errorf("parsePostedAt(%q) = nil, want %v", c.in, c.want)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("parsePostedAt(%q) = %v, want %v", c.in, *got, c.want)
		}
	}

	for _, in := range []string{"", "Actively hiring", "soon"} {
		if got := parsePostedAt(in, now); got != nil {
			t.Errorf("parsePostedAt(%q) = %v, want nil", in, *got)
		}
	}
}

func TestAbsolute(t *testing.T) {
	cases := []struct{ base, href, want string }{
		{"https://internshala.com", "/job/1", "https://internshala.com/job/1"},
		{"https://internshala.com", "https://x.com/a", "https://x.com/a"},
		{"https://internshala.com", "", ""},
	}
	for _, c := range cases {
		if got := absolute(c.base, c.href); got != c.want {
			t.Errorf("absolute(%q, %q) = %q, want %q", c.base, c.href, got, c.want)
		}
	}
}

func TestRemoteText(t *testing.T) {
	for in, want := range map[string]bool{
		"Remote":               true,
		"Work From Home":       true,
		"Bengaluru (Hybrid)":   false,
		"Remote / Hyderabad":   true,
	} {
		if got := remoteText(in); got != want {
			t.Errorf("remoteText(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := slug("  Data   Analyst "); got != "data-analyst" {
		t.Errorf("slug = %q", got)
	}
}
