package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every server-level option plus the per-resource hook tuning map.
type Config struct {
	Server ServerConfig          `koanf:"server"`
	Cache  CacheConfig           `koanf:"cache"`
	GHL    GHLConfig             `koanf:"ghl"`
	Hooks  map[string]HookTuning `koanf:"hooks"`
}

// ServerConfig collects the bootstrap knobs for the HTTP surface.
type ServerConfig struct {
	Listen   ListenConfig  `koanf:"listen"`
	Logging  LoggingConfig `koanf:"logging"`
	Timeouts TimeoutConfig `koanf:"timeouts"`
}

// TimeoutConfig bounds the listener's patience, as duration strings.
type TimeoutConfig struct {
	ReadHeader string `koanf:"readHeader"`
	Idle       string `koanf:"idle"`
	// Shutdown is the drain budget granted to in-flight requests when the
	// process stops.
	Shutdown string `koanf:"shutdown"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig tunes the query engine instance built at startup.
type CacheConfig struct {
	// GracePeriod is how long zero-subscriber entries survive before
	// eviction, as a duration string ("30s", "2m").
	GracePeriod string         `koanf:"gracePeriod"`
	Snapshot    SnapshotConfig `koanf:"snapshot"`
}

// SnapshotConfig selects the optional L2 seed store.
type SnapshotConfig struct {
	Backend string       `koanf:"backend"` // none, memory, or valkey
	TTL     string       `koanf:"ttl"`
	Valkey  ValkeyConfig `koanf:"valkey"`
}

type ValkeyConfig struct {
	Address  string          `koanf:"address"`
	Username string          `koanf:"username"`
	Password string          `koanf:"password"`
	DB       int             `koanf:"db"`
	TLS      ValkeyTLSConfig `koanf:"tls"`
}

type ValkeyTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// GHLConfig points the platform client at the CRM API.
type GHLConfig struct {
	BaseURL    string `koanf:"baseUrl"`
	Token      string `koanf:"token"`
	APIVersion string `koanf:"apiVersion"`
	Timeout    string `koanf:"timeout"`
	// LocationID is the default sub-account used when a request does not
	// name one explicitly.
	LocationID string `koanf:"locationId"`
}

// HookTuning is the per-resource overrides operators can hot-reload: polling
// cadence and an on/off switch per hook family.
type HookTuning struct {
	RefetchInterval string `koanf:"refetchInterval"`
	Enabled         *bool  `koanf:"enabled"` // nil = true (default)
}

// Interval parses the refetch interval, returning 0 (no polling) when the
// string is empty or invalid.
func (t HookTuning) Interval() time.Duration {
	if t.RefetchInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(t.RefetchInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// IsEnabled resolves the tri-state flag with its documented default.
func (t HookTuning) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// ReadHeaderDuration parses the header read timeout, falling back to 10s.
func (t TimeoutConfig) ReadHeaderDuration() time.Duration {
	return durationOr(t.ReadHeader, 10*time.Second)
}

// IdleDuration parses the keep-alive idle timeout, falling back to 2m.
func (t TimeoutConfig) IdleDuration() time.Duration {
	return durationOr(t.Idle, 2*time.Minute)
}

// ShutdownDuration parses the graceful drain budget, falling back to 5s.
func (t TimeoutConfig) ShutdownDuration() time.Duration {
	return durationOr(t.Shutdown, 5*time.Second)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GraceDuration parses the eviction grace period, falling back to 30s.
func (c CacheConfig) GraceDuration() time.Duration {
	if c.GracePeriod == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.GracePeriod)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// TTLDuration parses the snapshot TTL, falling back to 5m.
func (s SnapshotConfig) TTLDuration() time.Duration {
	if s.TTL == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(s.TTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// TimeoutDuration parses the client timeout, falling back to 15s.
func (g GHLConfig) TimeoutDuration() time.Duration {
	if g.Timeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// DefaultConfig returns the baseline every load starts from.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:   ListenConfig{Address: "0.0.0.0", Port: 8080},
			Logging:  LoggingConfig{Level: "info", Format: "json"},
			Timeouts: TimeoutConfig{ReadHeader: "10s", Idle: "2m", Shutdown: "5s"},
		},
		Cache: CacheConfig{
			GracePeriod: "30s",
			Snapshot:    SnapshotConfig{Backend: "none", TTL: "5m"},
		},
		GHL: GHLConfig{
			BaseURL:    "https://services.leadconnectorhq.com",
			APIVersion: "2021-07-28",
			Timeout:    "15s",
		},
		Hooks: map[string]HookTuning{},
	}
}

// Validate rejects configurations the runtime cannot honor.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Listen.Port < 0 || c.Server.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: listen port %d out of range", c.Server.Listen.Port))
	}
	switch strings.ToLower(strings.TrimSpace(c.Cache.Snapshot.Backend)) {
	case "", "none", "memory", "valkey":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported snapshot backend %q", c.Cache.Snapshot.Backend))
	}
	if c.Cache.Snapshot.Backend == "valkey" && c.Cache.Snapshot.Valkey.Address == "" {
		errs = append(errs, errors.New("config: valkey snapshot backend requires an address"))
	}
	for name, raw := range map[string]string{
		"readHeader": c.Server.Timeouts.ReadHeader,
		"idle":       c.Server.Timeouts.Idle,
		"shutdown":   c.Server.Timeouts.Shutdown,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			errs = append(errs, fmt.Errorf("config: server timeout %s: %w", name, err))
		}
	}
	if c.Cache.GracePeriod != "" {
		if _, err := time.ParseDuration(c.Cache.GracePeriod); err != nil {
			errs = append(errs, fmt.Errorf("config: cache gracePeriod: %w", err))
		}
	}
	if c.Cache.Snapshot.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.Snapshot.TTL); err != nil {
			errs = append(errs, fmt.Errorf("config: snapshot ttl: %w", err))
		}
	}
	if c.GHL.Timeout != "" {
		if _, err := time.ParseDuration(c.GHL.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("config: ghl timeout: %w", err))
		}
	}
	if strings.TrimSpace(c.GHL.BaseURL) == "" {
		errs = append(errs, errors.New("config: ghl baseUrl required"))
	}
	for name, tuning := range c.Hooks {
		if tuning.RefetchInterval == "" {
			continue
		}
		if _, err := time.ParseDuration(tuning.RefetchInterval); err != nil {
			errs = append(errs, fmt.Errorf("config: hook %s refetchInterval: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
