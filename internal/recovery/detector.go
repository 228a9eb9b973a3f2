package recovery

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"cellar/internal/store"
)

// Detector answers whether a store directory requires recovery. It owns no
// state beyond the filesystem it reads through and computes a fresh verdict
// on every call.
type Detector struct {
	fs FileSystem
}

// NewDetector builds a detector over the given filesystem. A nil filesystem
// means the real one.
func NewDetector(fsys FileSystem) *Detector {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return &Detector{fs: fsys}
}

// RecoveryNeeded reports whether the store at storePath was left by an
// unclean shutdown. A missing directory, or a directory the engine never
// initialized as a store (no marker file), needs no recovery. I/O failures
// are returned to the caller, never treated as "no".
func (d *Detector) RecoveryNeeded(storePath string) (bool, error) {
	return d.RecoveryNeededAt(storePath, -1)
}

// RecoveryNeededAt behaves like RecoveryNeeded but inspects the
// transaction-log segment of the given generation instead of the newest one.
// A negative logVersion selects the newest generation.
func (d *Detector) RecoveryNeededAt(storePath string, logVersion int64) (bool, error) {
	if _, err := d.fs.Stat(storePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat store path: %w", err)
	}

	entries, err := d.fs.ReadDir(storePath)
	if err != nil {
		return false, fmt.Errorf("list store path: %w", err)
	}

	markerPresent := false
	var newest int64 = -1
	segmentPresent := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == store.MarkerFile {
			markerPresent = true
			continue
		}
		if version, ok := store.SegmentVersion(name); ok {
			if logVersion >= 0 {
				if version == logVersion {
					segmentPresent = true
				}
				continue
			}
			if version > newest {
				newest = version
				segmentPresent = true
			}
		}
	}

	// Without the marker this directory was never a store, whatever else it
	// holds; there is nothing to recover.
	if !markerPresent {
		return false, nil
	}

	inspect := logVersion
	if logVersion < 0 {
		inspect = newest
	}
	if !segmentPresent {
		// A store with no log of the requested generation has no pending
		// transaction state to inspect.
		return false, nil
	}

	file, err := d.fs.Open(filepath.Join(storePath, store.SegmentName(inspect)))
	if err != nil {
		return false, fmt.Errorf("open log segment: %w", err)
	}
	defer file.Close()

	pending, err := store.SegmentHasPendingEntries(file)
	if err != nil {
		return false, err
	}
	return pending, nil
}
