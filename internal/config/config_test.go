package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsync/internal/config"
	"jobsync/internal/model"
)

func memoryEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
}

// ── Defaults ───────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	memoryEnv(t)
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "0 * * * *", cfg.CycleSchedule)
	assert.Equal(t, time.Hour, cfg.CycleInterval)
	assert.Equal(t, 2, cfg.BatchSize)
	assert.Equal(t, 3*time.Second, cfg.BatchPause)
	assert.Equal(t, 20*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "in", cfg.AdzunaCountry)
	assert.Equal(t, model.AllSources, cfg.Enabled)
	assert.Equal(t, []string{"analyst", "data analyst", "business analyst"}, cfg.Keywords)
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := config.Load()
	assert.Error(t, err)

	cfg, err := config.LoadLocal()
	require.NoError(t, err, "the local client never opens the store")
	assert.Equal(t, config.BackendPostgres, cfg.Store.Backend)
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"BATCH_SIZE":      "0",
		"BATCH_PAUSE":     "three seconds",
		"ADAPTER_TIMEOUT": "-1s",
		"SOURCE_RPS":      "fast",
		"STORE_BACKEND":   "sqlite",
		"CACHE_BACKEND":   "s3",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			memoryEnv(t)
			t.Setenv(key, val)
			if _, err := config.Load(); err == nil {
				t.Errorf("Load() with %s=%q expected error, got nil", key, val)
			}
		})
	}
}

func TestLoad_PrefixNormalised(t *testing.T) {
	memoryEnv(t)
	for in, want := range map[string]string{"api/v1/": "/api/v1", "/": "", "/jobsapi": "/jobsapi"} {
		t.Setenv("API_PREFIX", in)
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, want, cfg.APIPrefix, "API_PREFIX=%q", in)
	}
}

// ── SOURCES_FILE ───────────────────────────────────────────────────────────

func TestLoad_SourcesFile(t *testing.T) {
	memoryEnv(t)
	t.Setenv("EXCLUDE_TERMS", "unpaid")
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
enabled: [indeed, LinkedIn, naukri]
keywords: [sql analyst]
priority: [Naukri]
exclude: [commission only]
`), 0o644))
	t.Setenv("SOURCES_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []model.Source{model.SourceLinkedIn, model.SourceNaukri, model.SourceIndeed}, cfg.Enabled)
	assert.Equal(t, []string{"sql analyst"}, cfg.Keywords)
	assert.Equal(t, []string{"unpaid", "commission only"}, cfg.ExcludeTerms)
	require.Len(t, cfg.Priority, len(model.AllSources))
	assert.Equal(t, model.SourceNaukri, cfg.Priority[0])
	assert.Equal(t, model.SourceLinkedIn, cfg.Priority[1])
}

func TestLoad_SourcesFileUnknownSource(t *testing.T) {
	memoryEnv(t)
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: [Monster]\n"), 0o644))
	t.Setenv("SOURCES_FILE", path)

	_, err := config.Load()
	assert.Error(t, err)
}
