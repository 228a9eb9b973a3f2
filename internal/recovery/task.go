package recovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"

	"cellar/internal/config"
	"cellar/internal/logging"
	"cellar/internal/store"
)

// recoveryWarning is the single log line the task emits when it finds a
// crashed store. Operators and tests match on it literally.
const recoveryWarning = "Detected incorrectly shut down database, performing recovery.."

// ErrRecoveryIncomplete means the open/close cycle ran but the detector
// still reports pending transaction state. The store must not serve traffic.
var ErrRecoveryIncomplete = errors.New("store still requires recovery after recovery run")

// PreflightTask is the one-shot startup step that ensures the configured
// store is consistent before the daemon opens it. Config and the environment
// override map are fixed at construction and never mutated.
type PreflightTask struct {
	cfg      *config.Config
	env      map[string]string
	logger   *slog.Logger
	detector *Detector
}

// NewPreflightTask builds the task. The env map is copied; later changes by
// the caller are not observed.
func NewPreflightTask(cfg *config.Config, env map[string]string, logger *slog.Logger) *PreflightTask {
	return &PreflightTask{
		cfg:      cfg,
		env:      maps.Clone(env),
		logger:   logging.NewComponentLogger(logger, "preflight"),
		detector: NewDetector(nil),
	}
}

// Run executes the preflight check. It returns true when the store needs no
// recovery or was recovered successfully, and false plus the fault otherwise.
// It emits at most one log event and at most one engine open/close cycle per
// invocation.
func (t *PreflightTask) Run(ctx context.Context) (bool, error) {
	if t.cfg == nil {
		return false, errors.New("preflight: config is required")
	}
	location := t.cfg.StoreLocation()
	if location == "" {
		return false, errors.New("preflight: store location is not configured")
	}

	if _, err := os.Stat(location); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// No store yet; the engine will create one when it first opens.
			return true, nil
		}
		return false, fmt.Errorf("preflight: stat store location: %w", err)
	}

	needed, err := t.detector.RecoveryNeeded(location)
	if err != nil {
		return false, err
	}
	if !needed {
		return true, nil
	}

	t.logger.Warn(recoveryWarning,
		logging.String(logging.FieldEventType, "store_recovery_started"),
		logging.String(logging.FieldStorePath, location))

	// The warning above is the task's only log output; the engine handle
	// used for the recovery cycle stays silent.
	opts, err := store.OptionsFromConfig(t.cfg, t.env, nil)
	if err != nil {
		return false, err
	}
	if err := store.Recover(ctx, location, opts); err != nil {
		return false, err
	}

	needed, err = t.detector.RecoveryNeeded(location)
	if err != nil {
		return false, err
	}
	if needed {
		return false, fmt.Errorf("%w: %s", ErrRecoveryIncomplete, location)
	}
	return true, nil
}
