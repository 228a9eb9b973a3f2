package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const (
	// MarkerFile is the store's primary metadata file. Its presence under a
	// directory means the engine created a store there; its absence means the
	// directory was never a store, whatever else it contains.
	MarkerFile = "cellar.db"
	// LockFile guards the store directory against concurrent engine handles.
	LockFile = "cellar.lock"

	segmentPrefix = "txlog-"
	segmentSuffix = ".log"

	logMagic  = "cellar.txlog"
	logFormat = 1
)

type segmentHeader struct {
	Magic   string `json:"magic"`
	Format  int    `json:"format"`
	Segment int64  `json:"segment"`
}

type logEntry struct {
	Op       string `json:"op"`
	Key      string `json:"key"`
	Value    []byte `json:"value,omitempty"`
	Revision string `json:"rev"`
	TS       string `json:"ts"`
}

const (
	opPut    = "put"
	opDelete = "delete"
)

// SegmentName returns the file name of the transaction-log segment for the
// given generation.
func SegmentName(version int64) string {
	return fmt.Sprintf("%s%06d%s", segmentPrefix, version, segmentSuffix)
}

// SegmentVersion parses a segment file name and reports its generation.
func SegmentVersion(name string) (int64, bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
	if digits == "" {
		return 0, false
	}
	version, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || version < 0 {
		return 0, false
	}
	return version, true
}

// SegmentHasPendingEntries reports whether a transaction-log segment holds
// entries past its header, i.e. mutations that were never checkpointed. A
// missing or damaged header also counts as pending: the segment is not in the
// state a clean shutdown leaves behind. Read failures are returned as-is and
// never downgraded to "no pending entries".
func SegmentHasPendingEntries(r io.Reader) (bool, error) {
	reader := bufio.NewReader(r)

	headerLine, err := reader.ReadString('\n')
	if err == io.EOF {
		// Empty segment or header without trailing newline: damaged.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read segment header: %w", err)
	}

	var header segmentHeader
	if jsonErr := json.Unmarshal([]byte(headerLine), &header); jsonErr != nil {
		return true, nil
	}
	if header.Magic != logMagic || header.Format != logFormat {
		return true, nil
	}

	for {
		b, err := reader.ReadByte()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("read segment tail: %w", err)
		}
		if !unicode.IsSpace(rune(b)) {
			return true, nil
		}
	}
}

// txnLog manages the active transaction-log segment of one open store.
type txnLog struct {
	dir       string
	version   int64
	file      *os.File
	headerLen int64
	size      int64
}

// openTxnLog opens (or creates) the newest log segment under dir and returns
// the pending entries that must be replayed into SQLite. Older generations
// left behind by an interrupted rotation were checkpointed before the
// rotation started, so they are removed rather than replayed.
func openTxnLog(dir string) (*txnLog, []logEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("list store directory: %w", err)
	}

	var versions []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if version, ok := SegmentVersion(entry.Name()); ok {
			versions = append(versions, version)
		}
	}

	if len(versions) == 0 {
		log, err := createSegment(dir, 0)
		if err != nil {
			return nil, nil, err
		}
		return log, nil, nil
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	active := versions[len(versions)-1]
	for _, stale := range versions[:len(versions)-1] {
		if err := os.Remove(filepath.Join(dir, SegmentName(stale))); err != nil {
			return nil, nil, fmt.Errorf("remove stale segment %d: %w", stale, err)
		}
	}

	path := filepath.Join(dir, SegmentName(active))
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open segment %d: %w", active, err)
	}

	log := &txnLog{dir: dir, version: active, file: file}
	pending, err := log.load()
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	return log, pending, nil
}

func createSegment(dir string, version int64) (*txnLog, error) {
	path := filepath.Join(dir, SegmentName(version))
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create segment %d: %w", version, err)
	}

	header, err := json.Marshal(segmentHeader{Magic: logMagic, Format: logFormat, Segment: version})
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("marshal segment header: %w", err)
	}
	header = append(header, '\n')
	if _, err := file.Write(header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write segment header: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("sync segment header: %w", err)
	}

	headerLen := int64(len(header))
	return &txnLog{dir: dir, version: version, file: file, headerLen: headerLen, size: headerLen}, nil
}

// load parses the segment from the start, records the header length, and
// returns the pending entries. A torn trailing line (the usual crash
// artifact) is discarded. A damaged header causes the segment to be rewritten
// fresh; there is nothing trustworthy to replay from it.
func (l *txnLog) load() ([]logEntry, error) {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek segment: %w", err)
	}

	reader := bufio.NewReader(l.file)
	headerLine, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read segment header: %w", err)
	}

	var header segmentHeader
	headerOK := err == nil &&
		json.Unmarshal([]byte(headerLine), &header) == nil &&
		header.Magic == logMagic && header.Format == logFormat

	if !headerOK {
		if err := l.rewriteHeader(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	l.headerLen = int64(len(headerLine))
	l.size = l.headerLen

	var pending []logEntry
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// No trailing newline: torn write from a crash, ignore.
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read segment entry: %w", err)
		}
		var entry logEntry
		if json.Unmarshal([]byte(strings.TrimRight(line, "\n")), &entry) != nil {
			break
		}
		pending = append(pending, entry)
		l.size += int64(len(line))
	}

	// Position the write offset after the last intact entry so appends land
	// past everything we are about to replay.
	if _, err := l.file.Seek(l.size, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek segment end: %w", err)
	}
	return pending, nil
}

func (l *txnLog) rewriteHeader() error {
	header, err := json.Marshal(segmentHeader{Magic: logMagic, Format: logFormat, Segment: l.version})
	if err != nil {
		return fmt.Errorf("marshal segment header: %w", err)
	}
	header = append(header, '\n')

	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("reset segment: %w", err)
	}
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek segment: %w", err)
	}
	if _, err := l.file.Write(header); err != nil {
		return fmt.Errorf("rewrite segment header: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync segment header: %w", err)
	}
	l.headerLen = int64(len(header))
	l.size = l.headerLen
	return nil
}

// append durably records one entry in the active segment.
func (l *txnLog) append(entry logEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log entry: %w", err)
	}
	l.size += int64(len(line))
	return nil
}

// checkpoint discards the checkpointed entries. The segment is normally
// truncated back to its header in place; once it has grown past maxBytes the
// log rotates to the next generation instead, so the directory never
// accumulates an unbounded tail.
func (l *txnLog) checkpoint(maxBytes int64) error {
	if maxBytes > 0 && l.size > maxBytes {
		return l.rotate()
	}
	if l.size == l.headerLen {
		return nil
	}
	if err := l.file.Truncate(l.headerLen); err != nil {
		return fmt.Errorf("truncate segment: %w", err)
	}
	if _, err := l.file.Seek(l.headerLen, io.SeekStart); err != nil {
		return fmt.Errorf("seek segment: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync segment: %w", err)
	}
	l.size = l.headerLen
	return nil
}

func (l *txnLog) rotate() error {
	next, err := createSegment(l.dir, l.version+1)
	if err != nil {
		return err
	}

	oldPath := filepath.Join(l.dir, SegmentName(l.version))
	if err := l.file.Close(); err != nil {
		_ = next.file.Close()
		return fmt.Errorf("close segment %d: %w", l.version, err)
	}
	if err := os.Remove(oldPath); err != nil {
		_ = next.file.Close()
		return fmt.Errorf("remove segment %d: %w", l.version, err)
	}

	l.version = next.version
	l.file = next.file
	l.headerLen = next.headerLen
	l.size = next.size
	return nil
}

func (l *txnLog) pendingBytes() int64 {
	return l.size - l.headerLen
}

func (l *txnLog) close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
