package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable named in the Config env tags,
// e.g. IBCOL_FILE_REF_SECRET.
const EnvPrefix = "IBCOL_"

// parseEnv overlays IBCOL_* environment variables. Unset variables leave the
// current value untouched; list values are comma separated.
func parseEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
