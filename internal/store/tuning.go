package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"cellar/internal/config"
)

// Tuning holds the engine parameters an operator may override per store.
type Tuning struct {
	BusyTimeoutMS   int    `toml:"busy_timeout_ms"`
	CacheSizeKiB    int    `toml:"cache_size_kib"`
	Synchronous     string `toml:"synchronous"`
	SegmentMaxBytes int64  `toml:"segment_max_bytes"`
}

// DefaultTuning returns the engine defaults.
func DefaultTuning() Tuning {
	return Tuning{
		BusyTimeoutMS:   5000,
		CacheSizeKiB:    2048,
		Synchronous:     "normal",
		SegmentMaxBytes: 4 << 20,
	}
}

// LoadTuning reads a tuning-parameters file over the provided base values.
// An empty path or a missing file is not an error; the base is returned
// unchanged.
func LoadTuning(path string, base Tuning) (Tuning, error) {
	if strings.TrimSpace(path) == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}

	tuning := base
	if err := toml.Unmarshal(data, &tuning); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	return tuning, nil
}

// WithEnv merges string overrides over the tuning values. Keys match the TOML
// field names. Unknown keys are ignored so callers can pass a shared
// environment map; malformed values for known keys are errors.
func (t Tuning) WithEnv(env map[string]string) (Tuning, error) {
	merged := t
	for key, value := range env {
		value = strings.TrimSpace(value)
		switch key {
		case "busy_timeout_ms":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Tuning{}, fmt.Errorf("tuning override %s: %w", key, err)
			}
			merged.BusyTimeoutMS = n
		case "cache_size_kib":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Tuning{}, fmt.Errorf("tuning override %s: %w", key, err)
			}
			merged.CacheSizeKiB = n
		case "synchronous":
			merged.Synchronous = strings.ToLower(value)
		case "segment_max_bytes":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Tuning{}, fmt.Errorf("tuning override %s: %w", key, err)
			}
			merged.SegmentMaxBytes = n
		}
	}
	return merged, nil
}

func (t Tuning) validate() error {
	switch t.Synchronous {
	case "off", "normal", "full", "extra":
	default:
		return fmt.Errorf("tuning: synchronous must be off, normal, full, or extra, got %q", t.Synchronous)
	}
	if t.BusyTimeoutMS < 0 {
		return fmt.Errorf("tuning: busy_timeout_ms must not be negative, got %d", t.BusyTimeoutMS)
	}
	if t.CacheSizeKiB <= 0 {
		return fmt.Errorf("tuning: cache_size_kib must be positive, got %d", t.CacheSizeKiB)
	}
	return nil
}

// EnvPrefix marks process environment variables that override engine tuning
// parameters, e.g. CELLAR_STORE_BUSY_TIMEOUT_MS=250.
const EnvPrefix = "CELLAR_STORE_"

// EnvOverrides extracts tuning overrides from a process environment list.
// Variable names after the prefix are lower-cased to match the tuning keys.
func EnvOverrides(environ []string) map[string]string {
	overrides := make(map[string]string)
	for _, pair := range environ {
		if !strings.HasPrefix(pair, EnvPrefix) {
			continue
		}
		name, value, ok := strings.Cut(strings.TrimPrefix(pair, EnvPrefix), "=")
		if !ok || name == "" {
			continue
		}
		overrides[strings.ToLower(name)] = value
	}
	return overrides
}

// Options carries everything Open needs besides the store location.
type Options struct {
	Tuning Tuning
	// Env is merged over Tuning at open time. The map is treated as
	// immutable; the engine never writes to it.
	Env    map[string]string
	Logger *slog.Logger
}

// OptionsFromConfig resolves engine options the standard way: engine defaults,
// overlaid by the config file, the optional tuning file, and finally the
// environment override map.
func OptionsFromConfig(cfg *config.Config, env map[string]string, logger *slog.Logger) (Options, error) {
	base := DefaultTuning()
	if cfg != nil && cfg.Store.SegmentMaxBytes > 0 {
		base.SegmentMaxBytes = cfg.Store.SegmentMaxBytes
	}

	tuningFile := ""
	if cfg != nil {
		tuningFile = cfg.Store.TuningFile
	}
	tuning, err := LoadTuning(tuningFile, base)
	if err != nil {
		return Options{}, err
	}

	return Options{Tuning: tuning, Env: env, Logger: logger}, nil
}
