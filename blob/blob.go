// Package blob provides a zero-copy byte-slice view used as the key type
// for the name, package, and directory hash indices.
package blob

import "bytes"

// A Blob is a read-only view over a byte slice. It never copies the
// underlying bytes, so callers must not mutate a slice after wrapping it
// unless they own every Blob built from it.
type Blob []byte

// Of wraps s as a Blob without copying.
func Of(s []byte) Blob { return Blob(s) }

// FromString wraps s as a Blob. Go strings are immutable, so this is
// always safe to keep around.
func FromString(s string) Blob { return Blob(s) }

// String returns a copy of the blob's bytes as a string.
func (b Blob) String() string { return string(b) }

// Equal reports whether b and other have identical contents.
func (b Blob) Equal(other Blob) bool { return bytes.Equal(b, other) }

// Clone returns a Blob backed by a fresh copy of b's bytes, safe to keep
// past the lifetime of the slice b was built from.
func (b Blob) Clone() Blob {
	out := make(Blob, len(b))
	copy(out, b)
	return out
}
