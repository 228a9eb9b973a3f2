package testsupport

import (
	"context"
	"testing"

	"cellar/internal/config"
	"cellar/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	opts, err := store.OptionsFromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("store.OptionsFromConfig: %v", err)
	}
	s, err := store.Open(context.Background(), cfg.StoreLocation(), opts)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// CreateCleanStore opens and cleanly closes a store at the config's location,
// leaving the files a normal shutdown leaves.
func CreateCleanStore(t testing.TB, cfg *config.Config) {
	t.Helper()

	opts, err := store.OptionsFromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("store.OptionsFromConfig: %v", err)
	}
	s, err := store.Open(context.Background(), cfg.StoreLocation(), opts)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("store.Close: %v", err)
	}
}

// CrashStore fabricates an incorrectly shut down store at the config's
// location: it opens the store, writes a record, snapshots the raw files
// mid-session (transaction-log tail still pending), closes cleanly, and then
// replaces the store directory with the snapshot. The returned key names the
// record whose mutation sits in the pending log tail.
func CrashStore(t testing.TB, cfg *config.Config) string {
	t.Helper()

	const key = "crash-marker"
	ctx := context.Background()

	opts, err := store.OptionsFromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("store.OptionsFromConfig: %v", err)
	}
	s, err := store.Open(ctx, cfg.StoreLocation(), opts)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	if _, err := s.Put(ctx, key, []byte("written before the crash")); err != nil {
		t.Fatalf("store.Put: %v", err)
	}

	snapshot := t.TempDir()
	CopyDir(t, cfg.StoreLocation(), snapshot)

	if err := s.Close(); err != nil {
		t.Fatalf("store.Close: %v", err)
	}

	ReplaceDir(t, snapshot, cfg.StoreLocation())
	return key
}
