package store

import (
	"context"
	"sync"
	"time"

	"jobsync/internal/model"
)

// Memory is an in-process Store guarded by a single RWMutex. It backs tests
// and STORE_BACKEND=memory deployments.
type Memory struct {
	mu     sync.RWMutex
	byFP   map[string]*model.Posting
	idToFP map[string]string
	state  map[string]string
	logs   []model.ScrapeLogEntry
	closed bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		byFP:   make(map[string]*model.Posting),
		idToFP: make(map[string]string),
		state:  make(map[string]string),
	}
}

func (m *Memory) InsertIfAbsent(_ context.Context, p *model.Posting) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, unavailable("insert", errClosed)
	}
	if _, ok := m.byFP[p.Fingerprint]; ok {
		return false, nil
	}
	cp := *p
	cp.IsNew = true
	cp.AppliedAt = nil
	m.byFP[cp.Fingerprint] = &cp
	m.idToFP[cp.ID] = cp.Fingerprint
	return true, nil
}

func (m *Memory) ResetFreshness(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, unavailable("reset freshness", errClosed)
	}
	var n int64
	for _, p := range m.byFP {
		if p.IsNew {
			p.IsNew = false
			n++
		}
	}
	return n, nil
}

func (m *Memory) snapshot() []model.Posting {
	out := make([]model.Posting, 0, len(m.byFP))
	for _, p := range m.byFP {
		out = append(out, *p)
	}
	return out
}

func (m *Memory) Query(_ context.Context, f Filter, page, pageSize int) ([]model.Posting, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, 0, unavailable("query", errClosed)
	}
	items, total := FilterSortPage(m.snapshot(), f, page, pageSize)
	return items, total, nil
}

func (m *Memory) Stats(_ context.Context) (model.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return model.Stats{}, unavailable("stats", errClosed)
	}
	return ComputeStats(m.snapshot()), nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*model.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("get", errClosed)
	}
	fp, ok := m.idToFP[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.byFP[fp]
	return &cp, nil
}

func (m *Memory) SetApplied(_ context.Context, id string, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("set applied", errClosed)
	}
	fp, ok := m.idToFP[id]
	if !ok {
		return ErrNotFound
	}
	if at == nil {
		m.byFP[fp].AppliedAt = nil
		return nil
	}
	t := *at
	m.byFP[fp].AppliedAt = &t
	return nil
}

func (m *Memory) GetState(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, unavailable("get state", errClosed)
	}
	v, ok := m.state[key]
	return v, ok, nil
}

func (m *Memory) SetState(ctx context.Context, key, value string) error {
	return m.SetStates(ctx, map[string]string{key: value})
}

func (m *Memory) SetStates(_ context.Context, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("set state", errClosed)
	}
	for k, v := range kv {
		m.state[k] = v
	}
	return nil
}

func (m *Memory) AppendLog(_ context.Context, e model.ScrapeLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("append log", errClosed)
	}
	m.logs = append(m.logs, e)
	return nil
}

// Logs returns a copy of the audit log in append order.
func (m *Memory) Logs() []model.ScrapeLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ScrapeLogEntry, len(m.logs))
	copy(out, m.logs)
	return out
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return unavailable("ping", errClosed)
	}
	return nil
}

// Close marks the store unavailable; later calls fail with ErrUnavailable.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
