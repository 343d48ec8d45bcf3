// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// GoogleAPIKey enables the Google Maps collaborators. When empty the
	// service runs against the simulated offline collaborators.
	GoogleAPIKey string `koanf:"google_api_key"`

	// Offline forces the simulated collaborators even when a key is present.
	Offline bool `koanf:"offline"`

	// PlaceType is the Places type filter used for discovery, e.g. "bar".
	PlaceType string `koanf:"place_type"`

	// TravelMode is the Directions mode used for legs, e.g. "walking".
	TravelMode string `koanf:"travel_mode"`

	// DefaultLatitude and DefaultLongitude are the fallback origin when no
	// position is available.
	DefaultLatitude  float64 `koanf:"default_latitude"`
	DefaultLongitude float64 `koanf:"default_longitude"`

	// Discovery defaults applied when a request omits them.
	DefaultRadiusMeters float64 `koanf:"default_radius_meters"`
	DefaultLimit        int     `koanf:"default_limit"`
	DefaultPriceMin     int     `koanf:"default_price_min"`
	DefaultPriceMax     int     `koanf:"default_price_max"`

	// CollaboratorTimeoutMS bounds every outbound discovery/routing/geocoding call.
	CollaboratorTimeoutMS int `koanf:"collaborator_timeout_ms"`

	// MailboxSize bounds each planning session's command mailbox.
	MailboxSize int `koanf:"mailbox_size"`

	// MaxSessions caps concurrently live planning sessions.
	MaxSessions int `koanf:"max_sessions"`

	// SessionIdleTTLSeconds closes sessions untouched for this long.
	SessionIdleTTLSeconds int `koanf:"session_idle_ttl_seconds"`

	// CleanupIntervalSeconds is how often idle sessions are swept.
	CleanupIntervalSeconds int `koanf:"cleanup_interval_seconds"`

	// DedupeSize bounds the idempotency-key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// OutboundQPS limits calls to the Google web services.
	OutboundQPS float64 `koanf:"outbound_qps"`

	// Circuit breaker tuning for Google collaborators.
	BreakerFailureRate   float64 `koanf:"breaker_failure_rate"`
	BreakerMinRequests   int     `koanf:"breaker_min_requests"`
	BreakerWindowSeconds int     `koanf:"breaker_window_seconds"`
	BreakerDelaySeconds  int     `koanf:"breaker_delay_seconds"`

	// SimLatencyMinMS and SimLatencyMaxMS bound the simulated collaborator latency.
	SimLatencyMinMS int `koanf:"sim_latency_min_ms"`
	SimLatencyMaxMS int `koanf:"sim_latency_max_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		PlaceType:              "bar",
		TravelMode:             "walking",
		DefaultLatitude:        39.9566,
		DefaultLongitude:       -75.1899,
		DefaultRadiusMeters:    1609,
		DefaultLimit:           5,
		DefaultPriceMin:        1,
		DefaultPriceMax:        4,
		CollaboratorTimeoutMS:  10_000,
		MailboxSize:            64,
		MaxSessions:            10_000,
		SessionIdleTTLSeconds:  1800,
		CleanupIntervalSeconds: 60,
		DedupeSize:             50_000,
		OutboundQPS:            20,
		BreakerFailureRate:     0.6,
		BreakerMinRequests:     5,
		BreakerWindowSeconds:   10,
		BreakerDelaySeconds:    30,
		SimLatencyMinMS:        20,
		SimLatencyMaxMS:        60,
	}
}

// UseGoogle reports whether the Google Maps collaborators should be wired.
func (c *Config) UseGoogle() bool {
	return c.GoogleAPIKey != "" && !c.Offline
}
