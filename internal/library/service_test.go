package library

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tastematch-server/internal/offline"
)

type stubBackend struct {
	data map[string]json.RawMessage
	errs map[string]error
	hits int
}

func (b *stubBackend) Get(_ context.Context, path string) (json.RawMessage, error) {
	b.hits++
	if err, ok := b.errs[path]; ok {
		return nil, err
	}
	if raw, ok := b.data[path]; ok {
		return raw, nil
	}
	return json.RawMessage("null"), nil
}

func (b *stubBackend) Reachable(context.Context) bool { return true }

func openStore(t *testing.T) *offline.Store {
	t.Helper()
	s, err := offline.Open(filepath.Join(t.TempDir(), "offline.db"))
	if err != nil {
		t.Fatalf("open offline store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const seriesJSON = `{
	"s1": {"id": 1, "title": "Dark", "genres": ["Drama"], "ratings": {"u": 8}},
	"s2": {"id": 2, "title": "Severance", "genres": ["Mystery"]}
}`

func TestLoadDecodesAndCaches(t *testing.T) {
	backend := &stubBackend{data: map[string]json.RawMessage{
		"users/u/serien": json.RawMessage(seriesJSON),
		"users/u/movies": json.RawMessage(`[{"id": 5, "title": "Heat"}]`),
	}}
	svc := New(backend, openStore(t), nil, time.Hour)

	lib, err := svc.Load(context.Background(), "u")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(lib.Series) != 2 || len(lib.Movies) != 1 {
		t.Fatalf("got %d series / %d movies, want 2 / 1", len(lib.Series), len(lib.Movies))
	}
	if backend.hits != 2 {
		t.Fatalf("backend hits = %d, want 2", backend.hits)
	}

	// Second load is served from the offline cache.
	if _, err := svc.Load(context.Background(), "u"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if backend.hits != 2 {
		t.Fatalf("backend hits = %d after cached load, want still 2", backend.hits)
	}
}

func TestLoadServesCacheWhenBackendDown(t *testing.T) {
	store := openStore(t)
	backend := &stubBackend{data: map[string]json.RawMessage{
		"users/u/serien": json.RawMessage(seriesJSON),
		"users/u/movies": json.RawMessage(`null`),
	}}
	svc := New(backend, store, nil, time.Hour)
	if _, err := svc.Load(context.Background(), "u"); err != nil {
		t.Fatalf("warm-up load: %v", err)
	}

	backend.errs = map[string]error{
		"users/u/serien": errors.New("down"),
		"users/u/movies": errors.New("down"),
	}
	lib, err := svc.Load(context.Background(), "u")
	if err != nil {
		t.Fatalf("cached load with backend down: %v", err)
	}
	if len(lib.Series) != 2 {
		t.Fatalf("got %d series from cache, want 2", len(lib.Series))
	}
}

func TestLoadDegradesToEmptyWhenAllSourcesFail(t *testing.T) {
	backend := &stubBackend{errs: map[string]error{
		"users/u/serien": errors.New("down"),
		"users/u/movies": errors.New("down"),
	}}
	svc := New(backend, openStore(t), nil, time.Hour)

	lib, err := svc.Load(context.Background(), "u")
	if err != nil {
		t.Fatalf("load should degrade, got error: %v", err)
	}
	if !lib.Empty() {
		t.Fatalf("expected empty library, got %+v", lib)
	}
}

func TestRefreshPathReportsChanges(t *testing.T) {
	store := openStore(t)
	backend := &stubBackend{data: map[string]json.RawMessage{
		"users/u/serien": json.RawMessage(`{"a":1}`),
	}}
	svc := New(backend, store, nil, time.Hour)

	if err := store.Set("users/u/serien", json.RawMessage(`{"a":1}`), time.Hour); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	changed, err := svc.RefreshPath(context.Background(), "users/u/serien")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if changed {
		t.Fatalf("unchanged payload reported as changed")
	}

	backend.data["users/u/serien"] = json.RawMessage(`{"a":2}`)
	changed, err = svc.RefreshPath(context.Background(), "users/u/serien")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !changed {
		t.Fatalf("changed payload reported as unchanged")
	}
}
