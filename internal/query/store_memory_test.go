package query

import (
	"context"
	"testing"
	"time"
)

func TestMemorySnapshotsRoundTrip(t *testing.T) {
	store := NewMemorySnapshots(time.Minute)
	ctx := context.Background()

	key := K("contacts", "loc_1").String()
	if err := store.Store(ctx, key, []byte(`{"n":1}`), time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}

	payload, ok, err := store.Lookup(ctx, key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatalf("expected hit")
	}
	if string(payload) != `{"n":1}` {
		t.Fatalf("unexpected payload: %s", payload)
	}

	_, ok, err = store.Lookup(ctx, K("contacts", "loc_2").String())
	if err != nil {
		t.Fatalf("lookup miss: %v", err)
	}
	if ok {
		t.Fatalf("expected miss for unknown key")
	}

	if err := store.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMemorySnapshotsExpiry(t *testing.T) {
	store := NewMemorySnapshots(time.Minute)
	ctx := context.Background()

	key := K("contacts", "loc_1").String()
	if err := store.Store(ctx, key, []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("store: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := store.Lookup(ctx, key); ok {
		t.Fatalf("expected snapshot to expire")
	}
}

func TestMemorySnapshotsDeletePrefix(t *testing.T) {
	store := NewMemorySnapshots(time.Minute)
	ctx := context.Background()

	exact := K("contacts").String()
	child := K("contacts", "loc_1", "smith").String()
	sibling := K("contactsarchive").String()
	other := K("messages", "conv_1").String()
	for _, key := range []string{exact, child, sibling, other} {
		if err := store.Store(ctx, key, []byte("v"), time.Minute); err != nil {
			t.Fatalf("store %s: %v", key, err)
		}
	}

	if err := store.DeletePrefix(ctx, K("contacts").String()); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}

	if _, ok, _ := store.Lookup(ctx, exact); ok {
		t.Fatalf("exact match survived purge")
	}
	if _, ok, _ := store.Lookup(ctx, child); ok {
		t.Fatalf("child key survived purge")
	}
	if _, ok, _ := store.Lookup(ctx, sibling); !ok {
		t.Fatalf("sibling key purged despite diverging segment")
	}
	if _, ok, _ := store.Lookup(ctx, other); !ok {
		t.Fatalf("unrelated key purged")
	}

	if err := store.DeletePrefix(ctx, ""); err != nil {
		t.Fatalf("empty prefix: %v", err)
	}
	if _, ok, _ := store.Lookup(ctx, other); !ok {
		t.Fatalf("empty prefix wiped the store")
	}
}
