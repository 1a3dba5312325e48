package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHookTuningInterval(t *testing.T) {
	require.Equal(t, time.Duration(0), HookTuning{}.Interval())
	require.Equal(t, 15*time.Second, HookTuning{RefetchInterval: "15s"}.Interval())
	require.Equal(t, time.Duration(0), HookTuning{RefetchInterval: "soon"}.Interval())
	require.Equal(t, time.Duration(0), HookTuning{RefetchInterval: "-5s"}.Interval())
}

func TestHookTuningIsEnabled(t *testing.T) {
	enabled := true
	disabled := false
	require.True(t, HookTuning{}.IsEnabled())
	require.True(t, HookTuning{Enabled: &enabled}.IsEnabled())
	require.False(t, HookTuning{Enabled: &disabled}.IsEnabled())
}

func TestDurationFallbacks(t *testing.T) {
	require.Equal(t, 30*time.Second, CacheConfig{}.GraceDuration())
	require.Equal(t, 2*time.Minute, CacheConfig{GracePeriod: "2m"}.GraceDuration())
	require.Equal(t, 30*time.Second, CacheConfig{GracePeriod: "bogus"}.GraceDuration())

	require.Equal(t, 5*time.Minute, SnapshotConfig{}.TTLDuration())
	require.Equal(t, time.Hour, SnapshotConfig{TTL: "1h"}.TTLDuration())

	require.Equal(t, 15*time.Second, GHLConfig{}.TimeoutDuration())
	require.Equal(t, 3*time.Second, GHLConfig{Timeout: "3s"}.TimeoutDuration())

	require.Equal(t, 10*time.Second, TimeoutConfig{}.ReadHeaderDuration())
	require.Equal(t, 2*time.Minute, TimeoutConfig{}.IdleDuration())
	require.Equal(t, 5*time.Second, TimeoutConfig{}.ShutdownDuration())
	require.Equal(t, 20*time.Second, TimeoutConfig{Shutdown: "20s"}.ShutdownDuration())
	require.Equal(t, 5*time.Second, TimeoutConfig{Shutdown: "-1s"}.ShutdownDuration())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.Server.Listen.Port = 70000
	require.ErrorContains(t, bad.Validate(), "listen port")

	bad = DefaultConfig()
	bad.Cache.Snapshot.Backend = "memcached"
	require.ErrorContains(t, bad.Validate(), "snapshot backend")

	bad = DefaultConfig()
	bad.Cache.Snapshot.Backend = "valkey"
	require.ErrorContains(t, bad.Validate(), "requires an address")

	bad = DefaultConfig()
	bad.Cache.GracePeriod = "sometime"
	require.ErrorContains(t, bad.Validate(), "gracePeriod")

	bad = DefaultConfig()
	bad.Server.Timeouts.Shutdown = "whenever"
	require.ErrorContains(t, bad.Validate(), "server timeout shutdown")

	bad = DefaultConfig()
	bad.GHL.BaseURL = " "
	require.ErrorContains(t, bad.Validate(), "baseUrl")

	bad = DefaultConfig()
	bad.Hooks = map[string]HookTuning{"contacts": {RefetchInterval: "often"}}
	require.ErrorContains(t, bad.Validate(), "refetchInterval")
}
