// Package appconfig loads cmd/idgen's service configuration from a TOML
// file with environment variable overrides.
//
// Grounded on internal/util/init.go (InitConfig) and the teacher's
// now-repurposed pkg/config/config.go shape (a typed struct unmarshaled
// out of a koanf instance).
package appconfig

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// Config is cmd/idgen's full service configuration.
type Config struct {
	Dispenser struct {
		PauseOnStart bool `koanf:"pause_on_start"`
	} `koanf:"dispenser"`

	Metrics struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`

	Health struct {
		Addr string `koanf:"addr"`
	} `koanf:"health"`

	Events struct {
		Enabled bool   `koanf:"enabled"`
		URL     string `koanf:"url"`
		Subject string `koanf:"subject"`
	} `koanf:"events"`

	Registry struct {
		Enabled bool   `koanf:"enabled"`
		Path    string `koanf:"path"`
	} `koanf:"registry"`

	Dedupe struct {
		Enabled bool   `koanf:"enabled"`
		DSN     string `koanf:"dsn"`
	} `koanf:"dedupe"`

	Stream struct {
		Enabled bool   `koanf:"enabled"`
		Addr    string `koanf:"addr"`
	} `koanf:"stream"`

	Logging struct {
		Level string `koanf:"level"`
	} `koanf:"logging"`
}

// Load reads configPath (TOML) and then overlays environment variables,
// e.g. EVENTS_URL overrides events.url. It returns both the raw koanf
// instance (obslog.UpdateLevel reads "logging.level" straight from it)
// and the typed Config.
func Load(logger *zerolog.Logger, configPath string) (*koanf.Koanf, *Config, error) {
	ko := koanf.New(".")

	if err := ko.Load(file.Provider(configPath), toml.Parser()); err != nil {
		return nil, nil, fmt.Errorf("appconfig: load %s: %w", configPath, err)
	}

	if err := ko.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}), nil); err != nil {
		logger.Warn().Err(err).Msg("failed to load environment variable overrides")
	}

	var cfg Config
	if err := ko.Unmarshal("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("appconfig: unmarshal: %w", err)
	}

	logger.Info().Str("config_file", configPath).Msg("configuration loaded successfully")

	return ko, &cfg, nil
}
