package source_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsync/internal/model"
	"jobsync/internal/source"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// ── ContainsRedFlag ────────────────────────────────────────────────────────

func TestContainsRedFlag(t *testing.T) {
	cases := []struct {
		title, company, desc string
		flags                []string
		want                 bool
	}{
		{"Data Analyst", "Acme", "", nil, false},
		{"Data Analyst", "Acme", "", []string{""}, false},
		{"Unpaid Data Analyst", "Acme", "", []string{"unpaid"}, true},
		{"Analyst", "MLM Corp", "", []string{"mlm"}, true},
		{"Analyst", "Acme", "commission ONLY role", []string{"commission only"}, true},
		{"Analyst", "Acme", "salaried", []string{"commission"}, false},
	}
	for _, c := range cases {
		if got := source.ContainsRedFlag(c.title, c.company, c.desc, c.flags); got != c.want {
			t.Errorf("ContainsRedFlag(%q, %q, %q, %v) = %v, want %v", c.title, c.company, c.desc, c.flags, got, c.want)
		}
	}
}

func TestMatchesKeyword(t *testing.T) {
	kw := []string{"analyst", "business intelligence"}
	assert.True(t, source.MatchesKeyword("Senior Data ANALYST", kw))
	assert.True(t, source.MatchesKeyword("Business Intelligence Lead", kw))
	assert.False(t, source.MatchesKeyword("Backend Engineer", kw))
	assert.True(t, source.MatchesKeyword("Anything", nil))
}

// ── WithExclusions ─────────────────────────────────────────────────────────

type stubAdapter struct {
	name model.Source
	out  []model.RawPosting
	err  error
}

func (s stubAdapter) Name() model.Source { return s.name }
func (s stubAdapter) Fetch(context.Context) ([]model.RawPosting, error) {
	return s.out, s.err
}

func TestWithExclusions_DropsRedFlags(t *testing.T) {
	inner := stubAdapter{name: model.SourceNaukri, out: []model.RawPosting{
		{Title: "Data Analyst", Company: "Acme"},
		{Title: "Data Analyst (unpaid)", Company: "Acme"},
	}}
	a := source.WithExclusions(inner, []string{"unpaid"})

	got, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Data Analyst", got[0].Title)
	assert.Equal(t, model.SourceNaukri, a.Name())
}

func TestWithExclusions_PassesErrorThrough(t *testing.T) {
	boom := errors.New("boom")
	a := source.WithExclusions(stubAdapter{err: boom}, []string{"x"})
	_, err := a.Fetch(context.Background())
	assert.ErrorIs(t, err, boom)
}

// ── Registry ───────────────────────────────────────────────────────────────

func TestDefault_RegistryOrder(t *testing.T) {
	reg := source.Default(source.Options{}, []model.Source{
		model.SourceIndeed, model.SourceLinkedIn, model.SourceAdzuna,
	})
	var names []model.Source
	for _, a := range reg.Adapters() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []model.Source{model.SourceLinkedIn, model.SourceAdzuna, model.SourceIndeed}, names)

	assert.NotContains(t, names, model.SourceRemotive)
}

func TestDefault_AllSeven(t *testing.T) {
	reg := source.Default(source.Options{ExcludeTerms: []string{"unpaid"}}, model.AllSources)
	require.Len(t, reg.Adapters(), 7)
	for i, a := range reg.Adapters() {
		assert.Equal(t, model.AllSources[i], a.Name())
	}
}
