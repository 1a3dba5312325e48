package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmv4/ghlkit/internal/config"
	"github.com/jmv4/ghlkit/internal/ghl"
)

func TestBuildSnapshotStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if store := buildSnapshotStore(logger, config.SnapshotConfig{Backend: "none"}); store != nil {
		t.Fatalf("expected no store for backend none")
	}
	if store := buildSnapshotStore(logger, config.SnapshotConfig{}); store != nil {
		t.Fatalf("expected no store for empty backend")
	}
	if store := buildSnapshotStore(logger, config.SnapshotConfig{Backend: "memory", TTL: "1m"}); store == nil {
		t.Fatalf("expected memory store")
	}
	if store := buildSnapshotStore(logger, config.SnapshotConfig{Backend: "memcached"}); store != nil {
		t.Fatalf("unsupported backend should fall back to none")
	}
	// An unreachable valkey must not block startup.
	cfg := config.SnapshotConfig{Backend: "valkey"}
	cfg.Valkey.Address = "127.0.0.1:1"
	if store := buildSnapshotStore(logger, cfg); store != nil {
		t.Fatalf("unreachable valkey should fall back to none")
	}
}

func TestChangedResources(t *testing.T) {
	disabled := false
	before := map[string]config.HookTuning{
		"contacts": {RefetchInterval: "30s"},
		"messages": {},
	}
	after := map[string]config.HookTuning{
		"contacts":      {RefetchInterval: "5s"},
		"opportunities": {Enabled: &disabled},
	}

	got := changedResources(before, after)
	names := map[string]bool{}
	for _, prefix := range got {
		names[prefix.String()] = true
	}
	if len(got) != 3 || !names["contacts"] || !names["opportunities"] || !names["messages"] {
		t.Fatalf("unexpected prefixes: %v", got)
	}

	if got := changedResources(before, before); len(got) != 0 {
		t.Fatalf("identical tunings should change nothing, got %v", got)
	}
}

func TestHookTuningConversion(t *testing.T) {
	disabled := false
	src := map[string]config.HookTuning{
		"contacts": {RefetchInterval: "30s"},
		"messages": {Enabled: &disabled, RefetchInterval: "bogus"},
	}

	got := hookTuning(src)
	if len(got) != 2 {
		t.Fatalf("unexpected tuning map: %#v", got)
	}
	if got["contacts"] != (ghl.Tuning{RefetchInterval: 30 * time.Second}) {
		t.Fatalf("contacts tuning: %#v", got["contacts"])
	}
	if got["messages"].RefetchInterval != 0 {
		t.Fatalf("invalid interval should parse to zero: %#v", got["messages"])
	}
	if got["messages"].Enabled == nil || *got["messages"].Enabled {
		t.Fatalf("enabled flag lost: %#v", got["messages"])
	}
}
