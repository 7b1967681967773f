package blob

import "encoding/binary"

// Hash mixes b into a 64-bit value for use as a hash table bucket index.
// Any blob of 8 or more bytes takes a fast path that just reads its first
// machine word, per the rationale in the hash index design: a
// cryptographic digest is already uniform, so re-mixing it buys nothing.
// Names and paths of 8 or more bytes take that path too.
func Hash(b Blob) uint64 {
	if len(b) >= 8 {
		return binary.LittleEndian.Uint64(b[:8])
	}
	// keys shorter than 8 bytes get an FNV-1a fold.
	var h uint64 = 1469598103934665603
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}
