package config

import "strings"

// normalize expands and absolutizes path fields and trims string values.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandTrimmed(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandTrimmed(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Store.TuningFile, err = expandTrimmed(c.Store.TuningFile); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandTrimmed(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	return expandPath(trimmed)
}
