package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobsync/internal/model"
)

// LoadCycleState reads the CycleState keys. Missing keys yield zero values;
// a corrupt value is treated as missing.
func LoadCycleState(ctx context.Context, s Store) (model.CycleState, error) {
	var st model.CycleState

	last, err := loadTime(ctx, s, model.StateLastFetch)
	if err != nil {
		return st, err
	}
	next, err := loadTime(ctx, s, model.StateNextFetch)
	if err != nil {
		return st, err
	}
	st.LastFetch, st.NextFetch = last, next

	raw, ok, err := s.GetState(ctx, model.StateLastFetchResults)
	if err != nil {
		return st, err
	}
	st.LastResults = []model.SourceResult{}
	if ok && raw != "" {
		var results []model.SourceResult
		if json.Unmarshal([]byte(raw), &results) == nil {
			st.LastResults = results
		}
	}
	return st, nil
}

func loadTime(ctx context.Context, s Store, key string) (*time.Time, error) {
	raw, ok, err := s.GetState(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}

// SaveCycleState overwrites all CycleState keys in one SetStates call.
func SaveCycleState(ctx context.Context, s Store, st model.CycleState) error {
	results := st.LastResults
	if results == nil {
		results = []model.SourceResult{}
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode last results: %w", err)
	}
	kv := map[string]string{model.StateLastFetchResults: string(encoded)}
	if st.LastFetch != nil {
		kv[model.StateLastFetch] = st.LastFetch.UTC().Format(time.RFC3339Nano)
	}
	if st.NextFetch != nil {
		kv[model.StateNextFetch] = st.NextFetch.UTC().Format(time.RFC3339Nano)
	}
	return s.SetStates(ctx, kv)
}
