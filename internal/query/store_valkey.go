package query

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

type ValkeyTLSConfig struct {
	Enabled bool
	CAFile  string
}

type ValkeyConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      ValkeyTLSConfig
}

type valkeySnapshots struct {
	client valkey.Client
}

// NewValkeySnapshots connects a Valkey-backed snapshot store and verifies the
// server is reachable before handing it to the cache.
func NewValkeySnapshots(cfg ValkeyConfig) (SnapshotStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("query: valkey address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("query: read valkey ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("query: valkey ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("query: valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("query: valkey ping: %w", err)
	}

	return &valkeySnapshots{client: client}, nil
}

func (s *valkeySnapshots) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query: valkey get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return nil, false, fmt.Errorf("query: valkey get bytes: %w", err)
	}
	return payload, true, nil
}

func (s *valkeySnapshots) Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cmd := s.client.B().Set().Key(key).Value(string(payload)).Px(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("query: valkey set: %w", err)
	}
	return nil
}

func (s *valkeySnapshots) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return nil
	}
	// The exact key plus everything under it; the separator in the match
	// pattern keeps "contacts" from sweeping up "contactsArchive".
	if err := s.client.Do(ctx, s.client.B().Del().Key(prefix).Build()).Error(); err != nil && !errors.Is(err, valkey.Nil) {
		return fmt.Errorf("query: valkey del: %w", err)
	}
	pattern := escapeMatch(prefix) + keySep + "*"
	var cursor uint64
	for {
		resp := s.client.Do(ctx, s.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return fmt.Errorf("query: valkey scan: %w", err)
		}
		if len(entry.Elements) > 0 {
			if err := s.client.Do(ctx, s.client.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return fmt.Errorf("query: valkey del batch: %w", err)
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

func (s *valkeySnapshots) Close(context.Context) error {
	s.client.Close()
	return nil
}

// escapeMatch quotes glob metacharacters so key segments carrying *, ?, [ or
// \ match literally in the SCAN pattern.
func escapeMatch(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
