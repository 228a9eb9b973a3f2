package recovery_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"cellar/internal/recovery"
	"cellar/internal/store"
	"cellar/internal/testsupport"
)

const crashWarning = "Detected incorrectly shut down database, performing recovery.."

func TestPreflightSucceedsSilentlyWhenStoreAbsent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recorder := testsupport.NewLogRecorder()

	task := recovery.NewPreflightTask(cfg, nil, recorder.Logger())
	ok, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ok {
		t.Fatal("preflight failed for an absent store")
	}

	if records := recorder.Records(); len(records) != 0 {
		t.Fatalf("expected no log output, got %d records", len(records))
	}
	if _, err := os.Stat(cfg.StoreLocation()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("preflight must not create the store directory, stat err = %v", err)
	}
}

func TestPreflightSucceedsSilentlyOnCleanStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.CreateCleanStore(t, cfg)
	recorder := testsupport.NewLogRecorder()

	task := recovery.NewPreflightTask(cfg, nil, recorder.Logger())
	ok, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ok {
		t.Fatal("preflight failed for a cleanly closed store")
	}

	if records := recorder.Records(); len(records) != 0 {
		t.Fatalf("expected no log output, got %d records", len(records))
	}
}

func TestPreflightRecoversCrashedStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	key := testsupport.CrashStore(t, cfg)
	recorder := testsupport.NewLogRecorder()

	task := recovery.NewPreflightTask(cfg, nil, recorder.Logger())
	ok, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ok {
		t.Fatal("preflight failed to recover a crashed store")
	}

	records := recorder.Records()
	if len(records) != 1 {
		t.Fatalf("expected exactly one log record, got %d", len(records))
	}
	if records[0].Level != slog.LevelWarn {
		t.Fatalf("expected warn level, got %s", records[0].Level)
	}
	if records[0].Message != crashWarning {
		t.Fatalf("unexpected warning message %q", records[0].Message)
	}

	detector := recovery.NewDetector(nil)
	needed, err := detector.RecoveryNeeded(cfg.StoreLocation())
	if err != nil {
		t.Fatalf("RecoveryNeeded: %v", err)
	}
	if needed {
		t.Fatal("store still needs recovery after a successful preflight")
	}

	s := testsupport.MustOpenStore(t, cfg)
	record, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil {
		t.Fatalf("record %q lost during recovery", key)
	}
}

func TestPreflightSecondRunIsSilent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.CrashStore(t, cfg)

	first := recovery.NewPreflightTask(cfg, nil, testsupport.NewLogRecorder().Logger())
	if ok, err := first.Run(context.Background()); err != nil || !ok {
		t.Fatalf("first Run = (%v, %v)", ok, err)
	}

	recorder := testsupport.NewLogRecorder()
	second := recovery.NewPreflightTask(cfg, nil, recorder.Logger())
	ok, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !ok {
		t.Fatal("second preflight failed on a recovered store")
	}
	if records := recorder.Records(); len(records) != 0 {
		t.Fatalf("recovered store must pass silently, got %d records", len(records))
	}
}

func TestPreflightPropagatesEngineFault(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.CrashStore(t, cfg)

	// Hold the store lock so the recovery cycle cannot open the engine.
	lock := flock.New(filepath.Join(cfg.StoreLocation(), store.LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !locked {
		t.Fatal("could not take the store lock")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	recorder := testsupport.NewLogRecorder()
	task := recovery.NewPreflightTask(cfg, nil, recorder.Logger())
	ok, err := task.Run(context.Background())
	if ok {
		t.Fatal("preflight reported success while the engine could not open")
	}
	if !errors.Is(err, store.ErrLocked) {
		t.Fatalf("expected %v, got %v", store.ErrLocked, err)
	}
}

func TestPreflightRequiresConfiguration(t *testing.T) {
	task := recovery.NewPreflightTask(nil, nil, nil)
	if ok, err := task.Run(context.Background()); ok || err == nil {
		t.Fatalf("Run without config = (%v, %v)", ok, err)
	}

	cfg := testsupport.NewConfig(t)
	cfg.Paths.DataDir = ""
	task = recovery.NewPreflightTask(cfg, nil, nil)
	if ok, err := task.Run(context.Background()); ok || err == nil {
		t.Fatalf("Run without store location = (%v, %v)", ok, err)
	}
}
