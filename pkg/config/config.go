package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	AuthModeFirebase = "firebase"
	AuthModeInsecure = "insecure"
)

// Config holds the server settings read from the environment.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://pyramid.db"`

	AuthMode          string `env:"AUTH_MODE" envDefault:"firebase"`
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	FirebaseAPIKey    string `env:"FIREBASE_API_KEY"`

	// FirebaseCredentialsFile is a service account file, preferred over the API key.
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`

	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`

	AirInitialSeconds int `env:"AIR_INITIAL_SECONDS" envDefault:"1800"`

	RoomTimeout       time.Duration `env:"ROOM_TIMEOUT" envDefault:"30m"`
	CollectorInterval time.Duration `env:"COLLECTOR_INTERVAL" envDefault:"5m"`
	BroadcastInterval time.Duration `env:"BROADCAST_INTERVAL" envDefault:"50ms"`

	RitualPollAttempts uint          `env:"RITUAL_POLL_ATTEMPTS" envDefault:"12"`
	RitualPollInterval time.Duration `env:"RITUAL_POLL_INTERVAL" envDefault:"250ms"`
}

// Load parses the environment variables carrying the PYRAMID_ prefix.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "PYRAMID_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that env tags cannot express.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeFirebase:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("PYRAMID_FIREBASE_PROJECT_ID must be set when auth mode is %s", AuthModeFirebase)
		}
	case AuthModeInsecure:
	default:
		return fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
	if c.AirInitialSeconds <= 0 {
		return fmt.Errorf("initial air must be positive, got %d", c.AirInitialSeconds)
	}
	if c.RoomTimeout <= 0 || c.CollectorInterval <= 0 || c.BroadcastInterval <= 0 {
		return fmt.Errorf("timeouts and intervals must be positive")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("both TLS cert and key files must be set")
	}
	return nil
}

// TLSEnabled reports whether both TLS files are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
