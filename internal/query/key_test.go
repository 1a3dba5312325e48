package query

import "testing"

func TestKeyCoercion(t *testing.T) {
	key := K("contacts", "loc_1", 3, true)
	want := Key{"contacts", "loc_1", "3", "true"}
	if !key.Equal(want) {
		t.Fatalf("unexpected key: %#v", key)
	}
}

func TestKeyEqualOrderSensitive(t *testing.T) {
	if K("a", "b").Equal(K("b", "a")) {
		t.Fatalf("expected order to matter")
	}
	if K("a", "b").Equal(K("a", "b", "c")) {
		t.Fatalf("expected length to matter")
	}
	if !K("a", "b").Equal(K("a", "b")) {
		t.Fatalf("expected identical keys to compare equal")
	}
}

func TestKeyHasPrefix(t *testing.T) {
	key := K("contacts", "loc_1", "smith", 1)

	if !key.HasPrefix(K("contacts")) {
		t.Fatalf("expected single-segment prefix to match")
	}
	if !key.HasPrefix(K("contacts", "loc_1")) {
		t.Fatalf("expected two-segment prefix to match")
	}
	if !key.HasPrefix(key) {
		t.Fatalf("expected key to be its own prefix")
	}
	if key.HasPrefix(K("contacts", "loc_2")) {
		t.Fatalf("unexpected match on diverging segment")
	}
	if key.HasPrefix(K("contacts", "loc_1", "smith", 1, "extra")) {
		t.Fatalf("unexpected match on longer prefix")
	}
	if key.HasPrefix(Key{}) {
		t.Fatalf("empty prefix must match nothing")
	}
}

func TestKeyStringUnambiguous(t *testing.T) {
	// Segment boundaries must survive canonicalization: ["ab","c"] and
	// ["a","bc"] are different keys.
	if K("ab", "c").String() == K("a", "bc").String() {
		t.Fatalf("canonical form lost segment boundaries")
	}
}
