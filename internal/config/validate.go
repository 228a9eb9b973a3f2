package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return errors.New("config: paths.data_dir is required")
	}
	if c.Store.CheckpointInterval <= 0 {
		return fmt.Errorf("config: store.checkpoint_interval must be positive, got %d", c.Store.CheckpointInterval)
	}
	if c.Store.SegmentMaxBytes < 4096 {
		return fmt.Errorf("config: store.segment_max_bytes must be at least 4096, got %d", c.Store.SegmentMaxBytes)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
