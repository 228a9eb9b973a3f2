// Package config loads, validates, and normalizes the cellar configuration
// file.
//
// Configuration lives in a TOML file (default ~/.config/cellar/config.toml)
// and is decoded over repository defaults, so a missing file or missing keys
// fall back to usable values. All path fields are tilde-expanded and made
// absolute during normalization.
//
// The [paths] data_dir value is the store location; everything that opens or
// inspects the store resolves it through Config.StoreLocation so the rule for
// "where the store lives" exists in exactly one place.
package config
