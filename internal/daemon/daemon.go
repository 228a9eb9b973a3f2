package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"cellar/internal/config"
	"cellar/internal/logging"
	"cellar/internal/store"
)

// Daemon owns the running services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	runID    string
	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	RunID         string
	StoreLocation string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := filepath.Join(cfg.Paths.LogDir, "cellard.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		runID:    uuid.NewString(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, starts the API server, and launches the
// background checkpoint loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return errors.New("another cellard instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	go d.checkpointLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("cellar daemon started",
		logging.String("run_id", d.runID),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldStorePath, d.store.Location()))
	return nil
}

// checkpointLoop periodically flushes the store so the transaction-log tail
// stays short and a crash replays little work.
func (d *Daemon) checkpointLoop(ctx context.Context) {
	defer close(d.done)

	interval := time.Duration(d.cfg.Store.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.store.Checkpoint(ctx); err != nil {
				d.logger.Warn("background checkpoint failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "checkpoint_failed"),
					logging.String(logging.FieldErrorHint, "check disk space and store directory permissions"),
					logging.String(logging.FieldImpact, "crash recovery will replay a longer log tail"))
			}
		}
	}
}

// Stop stops background processing and releases the daemon lock. The store
// handle itself is closed by the caller that opened it.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
	}
	d.api.stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("cellar daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status reports daemon runtime information.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		RunID:         d.runID,
		StoreLocation: d.store.Location(),
		LockFilePath:  d.lockPath,
	}
}

// APIAddr returns the bound API listener address, or empty when the API is
// disabled or not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}
