package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jmv4/ghlkit/internal/config"
)

func TestNewRequiresHandler(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil); err == nil {
		t.Fatalf("expected error without handler")
	}
}

func TestNewAppliesConfiguredTimeouts(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Timeouts = config.TimeoutConfig{ReadHeader: "3s", Idle: "45s"}

	srv, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := srv.httpServer.ReadHeaderTimeout; got != 3*time.Second {
		t.Fatalf("read header timeout: %v", got)
	}
	if got := srv.httpServer.IdleTimeout; got != 45*time.Second {
		t.Fatalf("idle timeout: %v", got)
	}
}

func TestRunShutsDownOnContextCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Listen.Address = "127.0.0.1"
	cfg.Server.Listen.Port = 0

	srv, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
