package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"cellar/internal/logging"
)

// Store is an open handle on a cellar store directory.
type Store struct {
	db     *sql.DB
	dir    string
	lock   *flock.Flock
	logger *slog.Logger

	segmentMax int64

	mu     sync.Mutex
	log    *txnLog
	closed bool
}

// Open connects to the store at location, creating it on first use. Opening
// replays any pending transaction-log tail into SQLite before returning, so a
// successfully opened store is always consistent.
//
// The engine takes an exclusive flock on the directory for the lifetime of
// the handle; opening a locked store fails with ErrLocked instead of
// blocking.
func Open(ctx context.Context, location string, opts Options) (*Store, error) {
	if location == "" {
		return nil, errors.New("store location is required")
	}

	tuning := opts.Tuning
	if tuning == (Tuning{}) {
		tuning = DefaultTuning()
	}
	tuning, err := tuning.WithEnv(opts.Env)
	if err != nil {
		return nil, err
	}
	if err := tuning.validate(); err != nil {
		return nil, err
	}

	logger := logging.NewComponentLogger(opts.Logger, "store")

	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	lock := flock.New(filepath.Join(location, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, location)
	}

	db, err := sql.Open("sqlite", filepath.Join(location, MarkerFile))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open store database: %w", err)
	}

	s := &Store{
		db:         db,
		dir:        location,
		lock:       lock,
		logger:     logger,
		segmentMax: tuning.SegmentMaxBytes,
	}

	if err := s.applyPragmas(ctx, tuning); err != nil {
		s.release()
		return nil, err
	}
	if err := s.initSchema(ctx); err != nil {
		s.release()
		return nil, err
	}

	log, pending, err := openTxnLog(location)
	if err != nil {
		s.release()
		return nil, err
	}
	s.log = log

	if len(pending) > 0 {
		if err := s.replay(ctx, pending); err != nil {
			_ = s.log.close()
			s.release()
			return nil, err
		}
		logger.Info("replayed pending transaction log entries",
			logging.Int("entries", len(pending)),
			logging.Int64("segment", log.version),
			logging.String(logging.FieldStorePath, location))
	}

	if err := s.checkpointLocked(ctx); err != nil {
		_ = s.log.close()
		s.release()
		return nil, err
	}

	return s, nil
}

// Recover opens and then cleanly closes the store at location. Opening
// replays any pending transaction-log entries as a side effect, so a
// successful call leaves the store in the state a clean shutdown would have.
// The handle is released on every path, including when replay fails.
func Recover(ctx context.Context, location string, opts Options) error {
	s, err := Open(ctx, location, opts)
	if err != nil {
		return err
	}
	return s.Close()
}

func (s *Store) applyPragmas(ctx context.Context, tuning Tuning) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", tuning.BusyTimeoutMS),
		fmt.Sprintf("PRAGMA cache_size=-%d", tuning.CacheSizeKiB),
		fmt.Sprintf("PRAGMA synchronous=%s", tuning.Synchronous),
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// replay applies pending log entries to SQLite in one transaction. Entries
// are revision-keyed upserts and deletes, so re-applying work that already
// reached the database before the crash is harmless.
func (s *Store) replay(ctx context.Context, pending []logEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replay tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range pending {
		if err := applyEntry(ctx, tx, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replay: %w", err)
	}
	return nil
}

func applyEntry(ctx context.Context, tx *sql.Tx, entry logEntry) error {
	switch entry.Op {
	case opPut:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO records (key, value, revision, updated_at) VALUES (?, ?, ?, ?)
             ON CONFLICT(key) DO UPDATE SET
                 value = excluded.value,
                 revision = excluded.revision,
                 updated_at = excluded.updated_at`,
			entry.Key, entry.Value, entry.Revision, entry.TS,
		)
		if err != nil {
			return fmt.Errorf("replay put %q: %w", entry.Key, err)
		}
	case opDelete:
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, entry.Key); err != nil {
			return fmt.Errorf("replay delete %q: %w", entry.Key, err)
		}
	default:
		return fmt.Errorf("replay: unknown op %q", entry.Op)
	}
	return nil
}

// Checkpoint flushes the SQLite WAL and discards the checkpointed
// transaction-log tail, rotating the segment when it has outgrown the
// configured cap.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.checkpointLocked(ctx)
}

func (s *Store) checkpointLocked(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	if err := s.log.checkpoint(s.segmentMax); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES ('last_checkpoint_at', ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record checkpoint time: %w", err)
	}
	return nil
}

// Close checkpoints the store and releases the database, log segment, and
// directory lock. It is safe to call more than once.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	checkpointErr := s.checkpointLocked(context.Background())
	logErr := s.log.close()
	dbErr := s.db.Close()
	lockErr := s.lock.Unlock()

	return errors.Join(checkpointErr, logErr, dbErr, lockErr)
}

// Location returns the store directory this handle is bound to.
func (s *Store) Location() string {
	return s.dir
}

// release tears down partially constructed handles during a failed Open.
func (s *Store) release() {
	_ = s.db.Close()
	_ = s.lock.Unlock()
}
