package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	PortalPort string
	LogLevel   string

	BackendURL               string
	BackendTimeout           time.Duration
	BackendValidateResponses bool
	BackendRetryMaxAttempts  int
	BackendBreakerEnabled    bool

	StorageURLRoot string
	StoragePath    string

	PollInterval       time.Duration
	PollRequestTimeout time.Duration
	NotificationTTL    time.Duration
	ScreenIdleTTL      time.Duration
	MaxUploadBytes     int64

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration

	NATSURL     string
	NATSSubject string

	HistoryDSN   string
	HistoryLimit int

	MetricsEnabled      bool
	NotifierMetricsPort string
}

var defaults = map[string]any{
	"portal_port": "3000",
	"log_level":   "info",

	"backend_url":                "http://127.0.0.1:8000",
	"backend_timeout":            "30s",
	"backend_validate_responses": true,
	"backend_retry_max_attempts": 1,
	"backend_breaker_enabled":    true,

	"storage_url_root": "/storage",
	"storage_path":     "./public/storage",

	"poll_interval":        "2s",
	"poll_request_timeout": "10s",
	"notification_ttl":     "8s",
	"screen_idle_ttl":      "30m",
	"max_upload_bytes":     int64(100 << 20),

	"api_rate_limit_rps":    20.0,
	"api_rate_limit_burst":  40,
	"api_max_in_flight":     64,
	"api_backpressure_wait": "250ms",

	"nats_url":     "",
	"nats_subject": "packages.events",

	"history_dsn":   "",
	"history_limit": 50,

	"metrics_enabled":       true,
	"notifier_metrics_port": "9090",
}

// Load reads configuration from the environment. Unset or empty variables
// fall back to defaults.
func Load() Config {
	return load(newViper())
}

// LoadWithFlags layers flags from fs over the environment. A flag named
// backend-url overrides BACKEND_URL when it is set on the command line.
func LoadWithFlags(fs *pflag.FlagSet) Config {
	v := newViper()
	if fs != nil {
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; known {
				_ = v.BindPFlag(key, f)
			}
		})
	}
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

func load(v *viper.Viper) Config {
	return Config{
		PortalPort: v.GetString("portal_port"),
		LogLevel:   v.GetString("log_level"),

		BackendURL:               strings.TrimRight(v.GetString("backend_url"), "/"),
		BackendTimeout:           v.GetDuration("backend_timeout"),
		BackendValidateResponses: v.GetBool("backend_validate_responses"),
		BackendRetryMaxAttempts:  v.GetInt("backend_retry_max_attempts"),
		BackendBreakerEnabled:    v.GetBool("backend_breaker_enabled"),

		StorageURLRoot: v.GetString("storage_url_root"),
		StoragePath:    v.GetString("storage_path"),

		PollInterval:       v.GetDuration("poll_interval"),
		PollRequestTimeout: v.GetDuration("poll_request_timeout"),
		NotificationTTL:    v.GetDuration("notification_ttl"),
		ScreenIdleTTL:      v.GetDuration("screen_idle_ttl"),
		MaxUploadBytes:     v.GetInt64("max_upload_bytes"),

		APIRateLimitRPS:     v.GetFloat64("api_rate_limit_rps"),
		APIRateLimitBurst:   v.GetInt("api_rate_limit_burst"),
		APIMaxInFlight:      v.GetInt("api_max_in_flight"),
		APIBackpressureWait: v.GetDuration("api_backpressure_wait"),

		NATSURL:     v.GetString("nats_url"),
		NATSSubject: v.GetString("nats_subject"),

		HistoryDSN:   v.GetString("history_dsn"),
		HistoryLimit: v.GetInt("history_limit"),

		MetricsEnabled:      v.GetBool("metrics_enabled"),
		NotifierMetricsPort: v.GetString("notifier_metrics_port"),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL))
	}
	if !strings.HasPrefix(c.StorageURLRoot, "/") {
		errs = append(errs, fmt.Errorf("STORAGE_URL_ROOT must start with /, got %q", c.StorageURLRoot))
	}
	if c.PortalPort == "" {
		errs = append(errs, errors.New("PORTAL_PORT must not be empty"))
	}

	for name, d := range map[string]time.Duration{
		"BACKEND_TIMEOUT":       c.BackendTimeout,
		"POLL_INTERVAL":         c.PollInterval,
		"POLL_REQUEST_TIMEOUT":  c.PollRequestTimeout,
		"NOTIFICATION_TTL":      c.NotificationTTL,
		"SCREEN_IDLE_TTL":       c.ScreenIdleTTL,
		"API_BACKPRESSURE_WAIT": c.APIBackpressureWait,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration", name))
		}
	}
	for name, n := range map[string]int64{
		"BACKEND_RETRY_MAX_ATTEMPTS": int64(c.BackendRetryMaxAttempts),
		"MAX_UPLOAD_BYTES":           c.MaxUploadBytes,
		"API_RATE_LIMIT_BURST":       int64(c.APIRateLimitBurst),
		"API_MAX_IN_FLIGHT":          int64(c.APIMaxInFlight),
		"HISTORY_LIMIT":              int64(c.HistoryLimit),
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.APIRateLimitRPS <= 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT_RPS must be positive"))
	}
	return errors.Join(errs...)
}
