package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStore struct {
	fetchFunc func(ctx context.Context) (map[ProductKey]ProductRecord, error)
	calls     int
}

func (f *fakeStore) FetchCatalog(ctx context.Context) (map[ProductKey]ProductRecord, error) {
	f.calls++
	return f.fetchFunc(ctx)
}

func sampleCatalog() map[ProductKey]ProductRecord {
	return map[ProductKey]ProductRecord{
		"gitlab":  {ExternalID: "prodview-1", DisplayName: "GitLab", Vendor: "GitLab Inc."},
		"datadog": {ExternalID: "prodview-2", DisplayName: "Datadog", Vendor: "Datadog Inc."},
	}
}

func TestResolverResolve(t *testing.T) {
	t.Parallel()

	store := &fakeStore{fetchFunc: func(context.Context) (map[ProductKey]ProductRecord, error) {
		return sampleCatalog(), nil
	}}
	r := NewResolver(store, time.Minute, zap.NewNop())

	rec, err := r.Resolve(context.Background(), "gitlab")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if rec.ExternalID != "prodview-1" {
		t.Fatalf("unexpected external id: %q", rec.ExternalID)
	}

	// Second resolve within the staleness bound must not refetch.
	if _, err := r.Resolve(context.Background(), "datadog"); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("store fetched %d times, want 1", store.calls)
	}
}

func TestResolverUnknownKey(t *testing.T) {
	t.Parallel()

	store := &fakeStore{fetchFunc: func(context.Context) (map[ProductKey]ProductRecord, error) {
		return sampleCatalog(), nil
	}}
	r := NewResolver(store, time.Minute, zap.NewNop())

	_, err := r.Resolve(context.Background(), "unknown")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestResolverColdStoreFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{fetchFunc: func(context.Context) (map[ProductKey]ProductRecord, error) {
		return nil, errors.New("connection refused")
	}}
	r := NewResolver(store, time.Minute, zap.NewNop())

	_, err := r.Resolve(context.Background(), "gitlab")
	if !errors.Is(err, ErrConfigUnavailable) {
		t.Fatalf("expected ErrConfigUnavailable, got %v", err)
	}
}

func TestResolverServesStaleOnRefreshFailure(t *testing.T) {
	t.Parallel()

	healthy := true
	store := &fakeStore{fetchFunc: func(context.Context) (map[ProductKey]ProductRecord, error) {
		if !healthy {
			return nil, errors.New("connection refused")
		}
		return sampleCatalog(), nil
	}}
	// Zero TTL forces a refresh attempt on every call.
	r := NewResolver(store, 0, zap.NewNop())

	if _, err := r.Resolve(context.Background(), "gitlab"); err != nil {
		t.Fatalf("warm-up resolve failed: %v", err)
	}

	healthy = false
	rec, err := r.Resolve(context.Background(), "gitlab")
	if err != nil {
		t.Fatalf("expected stale catalog to be served, got %v", err)
	}
	if rec.ExternalID != "prodview-1" {
		t.Fatalf("unexpected external id: %q", rec.ExternalID)
	}
}

func TestResolverKeys(t *testing.T) {
	t.Parallel()

	store := &fakeStore{fetchFunc: func(context.Context) (map[ProductKey]ProductRecord, error) {
		return sampleCatalog(), nil
	}}
	r := NewResolver(store, time.Minute, zap.NewNop())

	keys, err := r.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys returned error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	seen := map[ProductKey]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["gitlab"] || !seen["datadog"] {
		t.Fatalf("unexpected key set: %v", keys)
	}
}
