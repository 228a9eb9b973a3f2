package main

import (
	"os"

	"cellar/internal/store"
)

// storeEnvOverrides harvests CELLAR_STORE_* tuning overrides from the
// process environment.
func storeEnvOverrides() map[string]string {
	return store.EnvOverrides(os.Environ())
}
