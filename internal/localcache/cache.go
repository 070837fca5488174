package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"jobsync/internal/model"
)

// Snapshot is the merged result set of one refresh.
type Snapshot struct {
	FetchedAt time.Time            `json:"fetched_at"`
	Jobs      []model.Posting      `json:"jobs"`
	Results   []model.SourceResult `json:"results"`
}

// Cache persists the snapshot and the applied map between runs. Load
// returns (nil, nil) when nothing is cached. The applied map is keyed by
// posting fingerprint.
type Cache interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
	LoadApplied(ctx context.Context) (map[string]time.Time, error)
	SaveApplied(ctx context.Context, applied map[string]time.Time) error
}

// ─── File ────────────────────────────────────────────────────────────────────

const (
	snapshotFile = "jobs.json"
	appliedFile  = "applied.json"
)

// FileCache keeps JSON files under a directory.
type FileCache struct {
	dir string
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir %s: %w", dir, err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) Load(_ context.Context) (*Snapshot, error) {
	var s Snapshot
	ok, err := c.read(snapshotFile, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (c *FileCache) Save(_ context.Context, s *Snapshot) error {
	return c.write(snapshotFile, s)
}

func (c *FileCache) LoadApplied(_ context.Context) (map[string]time.Time, error) {
	applied := map[string]time.Time{}
	if _, err := c.read(appliedFile, &applied); err != nil {
		return nil, err
	}
	return applied, nil
}

func (c *FileCache) SaveApplied(_ context.Context, applied map[string]time.Time) error {
	return c.write(appliedFile, applied)
}

func (c *FileCache) read(name string, v any) (bool, error) {
	b, err := os.ReadFile(filepath.Join(c.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// write replaces name atomically via a temp file and rename.
func (c *FileCache) write(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(c.dir, name))
}

// ─── Redis ───────────────────────────────────────────────────────────────────

// RedisCache stores the snapshot under a key that expires with the TTL,
// and the applied map under a key that never expires.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "jobsync:local"
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Load(ctx context.Context) (*Snapshot, error) {
	var s Snapshot
	ok, err := c.get(ctx, c.prefix+":jobs", &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (c *RedisCache) Save(ctx context.Context, s *Snapshot) error {
	return c.set(ctx, c.prefix+":jobs", s, c.ttl)
}

func (c *RedisCache) LoadApplied(ctx context.Context) (map[string]time.Time, error) {
	applied := map[string]time.Time{}
	if _, err := c.get(ctx, c.prefix+":applied", &applied); err != nil {
		return nil, err
	}
	return applied, nil
}

func (c *RedisCache) SaveApplied(ctx context.Context, applied map[string]time.Time) error {
	return c.set(ctx, c.prefix+":applied", applied, 0)
}

func (c *RedisCache) get(ctx context.Context, key string, v any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
