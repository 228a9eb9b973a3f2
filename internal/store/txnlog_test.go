package store_test

import (
	"errors"
	"strings"
	"testing"

	"cellar/internal/store"
)

const segmentHeaderLine = `{"magic":"cellar.txlog","format":1,"segment":0}` + "\n"

func TestSegmentName(t *testing.T) {
	if got := store.SegmentName(0); got != "txlog-000000.log" {
		t.Fatalf("SegmentName(0) = %q", got)
	}
	if got := store.SegmentName(42); got != "txlog-000042.log" {
		t.Fatalf("SegmentName(42) = %q", got)
	}
}

func TestSegmentVersion(t *testing.T) {
	cases := []struct {
		name    string
		version int64
		ok      bool
	}{
		{"txlog-000000.log", 0, true},
		{"txlog-000042.log", 42, true},
		{"txlog-1000042.log", 1000042, true},
		{"txlog-.log", 0, false},
		{"txlog-abc.log", 0, false},
		{"txlog-000001.txt", 0, false},
		{"cellar.db", 0, false},
		{"txlog-000001.log.bak", 0, false},
	}
	for _, tc := range cases {
		version, ok := store.SegmentVersion(tc.name)
		if ok != tc.ok || version != tc.version {
			t.Errorf("SegmentVersion(%q) = (%d, %v), want (%d, %v)", tc.name, version, ok, tc.version, tc.ok)
		}
	}
}

func TestSegmentHasPendingEntries(t *testing.T) {
	cases := []struct {
		name    string
		content string
		pending bool
	}{
		{"header only", segmentHeaderLine, false},
		{"header and trailing whitespace", segmentHeaderLine + "\n  \n", false},
		{"header and entry", segmentHeaderLine + `{"op":"put","key":"a","rev":"r1","ts":"now"}` + "\n", true},
		{"header and torn entry", segmentHeaderLine + `{"op":"put","key`, true},
		{"empty file", "", true},
		{"header without newline", strings.TrimSuffix(segmentHeaderLine, "\n"), true},
		{"garbage header", "not json at all\n", true},
		{"wrong magic", `{"magic":"other.log","format":1,"segment":0}` + "\n", true},
		{"wrong format", `{"magic":"cellar.txlog","format":9,"segment":0}` + "\n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pending, err := store.SegmentHasPendingEntries(strings.NewReader(tc.content))
			if err != nil {
				t.Fatalf("SegmentHasPendingEntries: %v", err)
			}
			if pending != tc.pending {
				t.Fatalf("pending = %v, want %v", pending, tc.pending)
			}
		})
	}
}

func TestSegmentHasPendingEntriesPropagatesReadFault(t *testing.T) {
	boom := errors.New("bad sector")

	pending, err := store.SegmentHasPendingEntries(faultyReader{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}
	if pending {
		t.Fatal("fault path must not report pending entries")
	}
}

type faultyReader struct {
	err error
}

func (r faultyReader) Read([]byte) (int, error) { return 0, r.err }
