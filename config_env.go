//go:build !appcore_embedded

package appcore

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// loadEnv overrides cfg from the process environment, or from environ when
// it is non-nil. Unset variables keep the current field values.
func loadEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}
