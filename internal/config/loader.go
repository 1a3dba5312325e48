package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file >
// default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract
// before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot using the documented precedence
// rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"server.timeouts.readheader":       "server.timeouts.readHeader",
			"cache.graceperiod":                "cache.gracePeriod",
			"cache.snapshot.valkey.tls.cafile": "cache.snapshot.valkey.tls.caFile",
			"ghl.baseurl":                      "ghl.baseUrl",
			"ghl.apiversion":                   "ghl.apiVersion",
			"ghl.locationid":                   "ghl.locationId",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path (GHL__BASE_URL ->
			// ghl.baseurl); single underscores collapse inside a segment.
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(strings.ReplaceAll(key, "_", ""))
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			return lower
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.Hooks == nil {
		cfg.Hooks = map[string]HookTuning{}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return kjson.Parser()
	default:
		return yaml.Parser()
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap
// provider. Hook tunings have no defaults; the map stays empty until a file
// or env supplies entries.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":  cfg.Server.Logging.Level,
				"format": cfg.Server.Logging.Format,
			},
			"timeouts": map[string]any{
				"readHeader": cfg.Server.Timeouts.ReadHeader,
				"idle":       cfg.Server.Timeouts.Idle,
				"shutdown":   cfg.Server.Timeouts.Shutdown,
			},
		},
		"cache": map[string]any{
			"gracePeriod": cfg.Cache.GracePeriod,
			"snapshot": map[string]any{
				"backend": cfg.Cache.Snapshot.Backend,
				"ttl":     cfg.Cache.Snapshot.TTL,
				"valkey": map[string]any{
					"address":  cfg.Cache.Snapshot.Valkey.Address,
					"username": cfg.Cache.Snapshot.Valkey.Username,
					"password": cfg.Cache.Snapshot.Valkey.Password,
					"db":       cfg.Cache.Snapshot.Valkey.DB,
					"tls": map[string]any{
						"enabled": cfg.Cache.Snapshot.Valkey.TLS.Enabled,
						"caFile":  cfg.Cache.Snapshot.Valkey.TLS.CAFile,
					},
				},
			},
		},
		"ghl": map[string]any{
			"baseUrl":    cfg.GHL.BaseURL,
			"token":      cfg.GHL.Token,
			"apiVersion": cfg.GHL.APIVersion,
			"timeout":    cfg.GHL.Timeout,
			"locationId": cfg.GHL.LocationID,
		},
	}
}
