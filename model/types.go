// Package model defines the entities spec.md's data model names: Name,
// Package, Directory, File, Script, and Repository, plus the small
// dynamic-array types the database façade threads them through. Grounded
// on items/types.go's Item/Blob/Version shape, widened to the richer
// package-manager graph of §3.
package model

import "github.com/ndlib/pkgdb/blob"

// HashAlgo tags which digest algorithm produced a Checksum, so the FDB can
// carry either side by side (see SPEC_FULL.md's checksum-algorithm-tag
// supplement).
type HashAlgo uint8

const (
	AlgoNone HashAlgo = iota
	AlgoSHA256
	AlgoBLAKE3
)

func (a HashAlgo) String() string {
	switch a {
	case AlgoSHA256:
		return "sha256"
	case AlgoBLAKE3:
		return "blake3"
	default:
		return "none"
	}
}

// ParseHashAlgo maps a wire tag name back to a HashAlgo.
func ParseHashAlgo(s string) HashAlgo {
	switch s {
	case "sha256":
		return AlgoSHA256
	case "blake3":
		return AlgoBLAKE3
	default:
		return AlgoNone
	}
}

// Checksum is a fixed-width content digest, algorithm-tagged.
type Checksum struct {
	Algo   HashAlgo
	Digest blob.Blob
}

// Valid reports whether the checksum carries an actual digest.
func (c Checksum) Valid() bool { return c.Algo != AlgoNone && len(c.Digest) > 0 }

// Equal reports whether c and other are the same algorithm and digest.
func (c Checksum) Equal(other Checksum) bool {
	return c.Algo == other.Algo && c.Digest.Equal(other.Digest)
}

// Key returns the value used to index packages by content address: the
// raw digest bytes, algorithm included so sha256 and blake3 packages never
// collide even if truncated digests happened to share bytes.
func (c Checksum) Key() string {
	return c.Algo.String() + ":" + c.Digest.String()
}

// PackageState is the small state machine §1 and §4.G drive per package.
type PackageState int

const (
	StateAvailable PackageState = iota
	StateInstall
)

// Dependency is one entry of a package's dependency list: a name and an
// opaque constraint string. Constraint satisfaction is the solver's job
// (out of scope, §1); the core only stores and round-trips it.
type Dependency struct {
	Name       string
	Constraint string
}

// Directory flag bits.
type DirFlags uint32

const (
	// DirProtected marks a directory whose files must never be silently
	// overwritten on upgrade (§3, §4.D, §4.G).
	DirProtected DirFlags = 1 << iota
)

// MaxRepos bounds the repository bitmask width (§3, §4.H).
const MaxRepos = 32
