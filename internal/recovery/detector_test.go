package recovery_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cellar/internal/recovery"
	"cellar/internal/store"
	"cellar/internal/testsupport"
)

func TestRecoveryNeededAbsentDirectory(t *testing.T) {
	detector := recovery.NewDetector(nil)

	needed, err := detector.RecoveryNeeded(filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatalf("RecoveryNeeded: %v", err)
	}
	if needed {
		t.Fatal("absent directory reported as needing recovery")
	}
}

func TestRecoveryNeededDirectoryWithoutMarker(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "backup.tar", "txlog-000000.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("unrelated"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	detector := recovery.NewDetector(nil)

	needed, err := detector.RecoveryNeeded(dir)
	if err != nil {
		t.Fatalf("RecoveryNeeded: %v", err)
	}
	if needed {
		t.Fatal("directory without a marker file reported as needing recovery")
	}

	needed, err = detector.RecoveryNeededAt(dir, 0)
	if err != nil {
		t.Fatalf("RecoveryNeededAt: %v", err)
	}
	if needed {
		t.Fatal("directory without a marker file reported as needing recovery for generation 0")
	}
}

func TestRecoveryNeededCleanStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.CreateCleanStore(t, cfg)

	detector := recovery.NewDetector(nil)

	needed, err := detector.RecoveryNeeded(cfg.StoreLocation())
	if err != nil {
		t.Fatalf("RecoveryNeeded: %v", err)
	}
	if needed {
		t.Fatal("cleanly closed store reported as needing recovery")
	}
}

func TestRecoveryNeededCrashedStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.CrashStore(t, cfg)
	location := cfg.StoreLocation()

	detector := recovery.NewDetector(nil)

	needed, err := detector.RecoveryNeeded(location)
	if err != nil {
		t.Fatalf("RecoveryNeeded: %v", err)
	}
	if !needed {
		t.Fatal("crashed store not reported as needing recovery")
	}

	version := newestSegmentVersion(t, location)
	needed, err = detector.RecoveryNeededAt(location, version)
	if err != nil {
		t.Fatalf("RecoveryNeededAt(%d): %v", version, err)
	}
	if !needed {
		t.Fatalf("crashed store not reported as needing recovery for generation %d", version)
	}

	// A generation that was never written has no pending state to inspect.
	needed, err = detector.RecoveryNeededAt(location, version+7)
	if err != nil {
		t.Fatalf("RecoveryNeededAt(%d): %v", version+7, err)
	}
	if needed {
		t.Fatal("missing log generation reported as needing recovery")
	}
}

func TestRecoveryNeededMarkerWithoutSegments(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, store.MarkerFile), nil, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	detector := recovery.NewDetector(nil)

	needed, err := detector.RecoveryNeeded(dir)
	if err != nil {
		t.Fatalf("RecoveryNeeded: %v", err)
	}
	if needed {
		t.Fatal("store without log segments reported as needing recovery")
	}
}

func TestRecoveryNeededPropagatesFaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.CreateCleanStore(t, cfg)
	location := cfg.StoreLocation()

	boom := errors.New("disk on fire")

	cases := []struct {
		name string
		fs   recovery.FileSystem
	}{
		{"stat", faultFS{FileSystem: recovery.OSFileSystem{}, statErr: boom}},
		{"readdir", faultFS{FileSystem: recovery.OSFileSystem{}, readDirErr: boom}},
		{"open", faultFS{FileSystem: recovery.OSFileSystem{}, openErr: boom}},
		{"read", faultFS{FileSystem: recovery.OSFileSystem{}, readErr: boom}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detector := recovery.NewDetector(tc.fs)

			needed, err := detector.RecoveryNeeded(location)
			if !errors.Is(err, boom) {
				t.Fatalf("expected injected fault, got %v", err)
			}
			if needed {
				t.Fatal("fault path must not report recovery needed")
			}
		})
	}
}

func newestSegmentVersion(t *testing.T, dir string) int64 {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	newest := int64(-1)
	for _, entry := range entries {
		if version, ok := store.SegmentVersion(entry.Name()); ok && version > newest {
			newest = version
		}
	}
	if newest < 0 {
		t.Fatalf("no log segments under %s", dir)
	}
	return newest
}

// faultFS passes through to the wrapped filesystem until one of its injected
// errors fires.
type faultFS struct {
	recovery.FileSystem

	statErr    error
	readDirErr error
	openErr    error
	readErr    error
}

func (f faultFS) Stat(path string) (os.FileInfo, error) {
	if f.statErr != nil {
		return nil, f.statErr
	}
	return f.FileSystem.Stat(path)
}

func (f faultFS) ReadDir(path string) ([]os.DirEntry, error) {
	if f.readDirErr != nil {
		return nil, f.readDirErr
	}
	return f.FileSystem.ReadDir(path)
}

func (f faultFS) Open(path string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.readErr != nil {
		return faultyReader{err: f.readErr}, nil
	}
	return f.FileSystem.Open(path)
}

type faultyReader struct {
	err error
}

func (r faultyReader) Read([]byte) (int, error) { return 0, r.err }

func (faultyReader) Close() error { return nil }
