package query

import (
	"fmt"
	"strings"
)

// keySep joins segments into the canonical map key. The unit separator keeps
// segment boundaries unambiguous no matter what the segments contain.
const keySep = "\x1f"

// Key identifies a cached query result as an ordered sequence of segments.
// Two keys are equal iff their segment sequences match element-wise after
// string coercion; ordering is significant.
type Key []string

// K coerces the given segments into a Key. Non-string segments are rendered
// with fmt.Sprint so hooks can mix IDs, page numbers, and flags freely.
func K(segments ...any) Key {
	k := make(Key, 0, len(segments))
	for _, seg := range segments {
		switch v := seg.(type) {
		case string:
			k = append(k, v)
		case fmt.Stringer:
			k = append(k, v.String())
		default:
			k = append(k, fmt.Sprint(v))
		}
	}
	return k
}

// Equal reports element-wise equality.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether k starts with prefix, compared segment-wise. An
// empty prefix matches nothing so a zero-value invalidation target cannot
// wipe the whole cache by accident.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) == 0 || len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// String returns the canonical form used for the cache map and the snapshot
// store.
func (k Key) String() string {
	return strings.Join(k, keySep)
}
