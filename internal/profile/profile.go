package profile

import (
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the widget runtime configuration. It is read once at startup
// (flags > environment > .env) and injected into every component; no
// component re-reads globals after construction.
type Profile struct {
	// StoreID identifies the merchant tenant the widget is configured for.
	// Required; without it the runtime starts in Disabled mode.
	StoreID string

	// APIURL is the base URL of the backend chat/recovery API.
	APIURL string

	// PrimaryColor drives the computed theme variables (hex, e.g. "#4f46e5").
	PrimaryColor string

	// Position of the widget launcher, "left" or "right".
	Position string

	// Data is the directory holding the local session database.
	Data string

	// DSN overrides the derived sqlite path when set.
	DSN string

	// MetricsAddr, when non-empty, exposes a Prometheus scrape endpoint.
	MetricsAddr string

	Mode    string
	Version string

	// MinVersion is the oldest runtime version the host's embed snippet
	// supports. When the running build is older, the runtime logs an
	// upgrade warning at startup.
	MinVersion string

	// RetryBaseDelay is the unit of the API client's linear backoff.
	RetryBaseDelay time.Duration

	// RecoveryInterval is the cart-recovery poll period.
	RecoveryInterval time.Duration

	// RecoveryInitialDelay is the wait before the first recovery poll.
	RecoveryInitialDelay time.Duration

	// Disabled is set when required configuration is missing. A disabled
	// profile keeps the process alive but no backend calls are made.
	Disabled bool
}

const (
	defaultAPIURL               = "https://api.reva.chat/api/v1"
	defaultPrimaryColor         = "#4f46e5"
	defaultRetryBaseDelay       = 500 * time.Millisecond
	defaultRecoveryInterval     = 30 * time.Second
	defaultRecoveryInitialDelay = 5 * time.Second
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultDuration returns environment variable value as seconds or default value.
func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables. Values already
// set (e.g. from flags) are kept.
func (p *Profile) FromEnv() {
	if p.StoreID == "" {
		p.StoreID = getEnvOrDefault("REVA_STORE_ID", "")
	}
	if p.APIURL == "" {
		p.APIURL = getEnvOrDefault("REVA_API_URL", defaultAPIURL)
	}
	if p.PrimaryColor == "" {
		p.PrimaryColor = getEnvOrDefault("REVA_PRIMARY_COLOR", defaultPrimaryColor)
	}
	if p.Position == "" {
		p.Position = getEnvOrDefault("REVA_POSITION", "right")
	}
	if p.MetricsAddr == "" {
		p.MetricsAddr = getEnvOrDefault("REVA_METRICS_ADDR", "")
	}
	if p.MinVersion == "" {
		p.MinVersion = getEnvOrDefault("REVA_MIN_VERSION", "")
	}
	if p.RetryBaseDelay == 0 {
		p.RetryBaseDelay = getEnvOrDefaultDuration("REVA_RETRY_BASE_DELAY_SECONDS", defaultRetryBaseDelay)
	}
	if p.RecoveryInterval == 0 {
		p.RecoveryInterval = getEnvOrDefaultDuration("REVA_RECOVERY_INTERVAL_SECONDS", defaultRecoveryInterval)
	}
	if p.RecoveryInitialDelay == 0 {
		p.RecoveryInitialDelay = getEnvOrDefaultDuration("REVA_RECOVERY_INITIAL_DELAY_SECONDS", defaultRecoveryInitialDelay)
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and checks it is usable. A missing store
// id does not fail validation: the widget must never crash the host, so it
// logs a warning and flips Disabled instead.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.StoreID == "" {
		slog.Warn("store id is not configured, widget is disabled", "hint", "set REVA_STORE_ID or --store-id")
		p.Disabled = true
	}

	if _, err := url.Parse(p.APIURL); err != nil {
		return errors.Wrapf(err, "invalid api url %q", p.APIURL)
	}
	p.APIURL = strings.TrimRight(p.APIURL, "/")

	if p.Position != "left" && p.Position != "right" {
		slog.Warn("unknown widget position, using default: right", "position", p.Position)
		p.Position = "right"
	}

	if p.Data == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			p.Data = filepath.Join(dir, "reva-widget")
		} else {
			p.Data = "."
		}
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		if mkErr := os.MkdirAll(p.Data, 0o750); mkErr == nil {
			dataDir, err = checkDataDir(p.Data)
		}
	}
	if err == nil {
		p.Data = dataDir
	}

	if p.DSN == "" {
		p.DSN = filepath.Join(p.Data, "reva_widget.db")
	}
	return nil
}
