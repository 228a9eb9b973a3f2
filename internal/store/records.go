package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Put writes a record, assigning it a fresh revision. The mutation is
// appended to the transaction log before it reaches SQLite.
func (s *Store) Put(ctx context.Context, key string, value []byte) (*Record, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("record key cannot be empty")
	}

	now := time.Now().UTC()
	entry := logEntry{
		Op:       opPut,
		Key:      key,
		Value:    value,
		Revision: uuid.NewString(),
		TS:       now.Format(time.RFC3339Nano),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	if err := s.log.append(entry); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (key, value, revision, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
             value = excluded.value,
             revision = excluded.revision,
             updated_at = excluded.updated_at`,
		entry.Key, entry.Value, entry.Revision, entry.TS,
	)
	if err != nil {
		return nil, fmt.Errorf("put record: %w", err)
	}

	return &Record{Key: key, Value: value, Revision: entry.Revision, UpdatedAt: now}, nil
}

// Get fetches a record by key. A missing key returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, revision, updated_at FROM records WHERE key = ?`, key)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// Delete removes a record by key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("record key cannot be empty")
	}

	entry := logEntry{
		Op:       opDelete,
		Key:      key,
		Revision: uuid.NewString(),
		TS:       time.Now().UTC().Format(time.RFC3339Nano),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	if err := s.log.append(entry); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns all records ordered by key.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, revision, updated_at FROM records ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats aggregates store state for diagnostic output.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`)
	if err := row.Scan(&stats.Records); err != nil {
		return Stats{}, fmt.Errorf("count records: %w", err)
	}

	var checkpointAt sql.NullString
	row = s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'last_checkpoint_at'`)
	if err := row.Scan(&checkpointAt); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Stats{}, fmt.Errorf("read checkpoint time: %w", err)
	}
	if checkpointAt.Valid {
		if parsed, err := time.Parse(time.RFC3339Nano, checkpointAt.String); err == nil {
			stats.LastCheckpointAt = parsed
		}
	}

	s.mu.Lock()
	if !s.closed {
		stats.ActiveSegment = s.log.version
		stats.PendingLogBytes = s.log.pendingBytes()
	}
	s.mu.Unlock()

	return stats, nil
}

// CheckHealth verifies the store files are present and the database passes an
// integrity check.
func (s *Store) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{Path: s.dir}

	if _, err := os.Stat(filepath.Join(s.dir, MarkerFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		health.Error = err.Error()
		return health, fmt.Errorf("stat store database: %w", err)
	}
	health.DatabaseExists = true

	var integrity string
	row := s.db.QueryRowContext(ctx, "PRAGMA integrity_check")
	if err := row.Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityOK = strings.EqualFold(integrity, "ok")

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`)
	if err := row.Scan(&health.Records); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count records: %w", err)
	}
	return health, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		key        string
		value      []byte
		revision   string
		updatedRaw string
	)
	if err := scanner.Scan(&key, &value, &revision, &updatedRaw); err != nil {
		return nil, err
	}

	record := &Record{Key: key, Value: value, Revision: revision}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}
