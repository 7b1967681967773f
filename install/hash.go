package install

import (
	"crypto/sha256"
	"hash"
	"io"

	"github.com/zeebo/blake3"

	"github.com/ndlib/pkgdb/model"
)

// Hasher is the §1 external "hash_init/update/finalize" collaborator: the
// core only needs to drive a streaming digest and compare it against a
// declared Checksum, never the primitive itself. Two implementations ship
// so an installed database can carry either algorithm's packages
// side by side (see SPEC_FULL.md's checksum-algorithm-tag supplement).
type Hasher interface {
	Algo() model.HashAlgo
	New() hash.Hash
}

type sha256Hasher struct{}

func (sha256Hasher) Algo() model.HashAlgo { return model.AlgoSHA256 }
func (sha256Hasher) New() hash.Hash       { return sha256.New() }

type blake3Hasher struct{}

func (blake3Hasher) Algo() model.HashAlgo { return model.AlgoBLAKE3 }
func (blake3Hasher) New() hash.Hash       { return blake3.New() }

// SHA256 and BLAKE3 are the two stock Hashers. SHA256 is the default used
// when a package's Checksum does not specify an algorithm; BLAKE3 gives
// zeebo/blake3 a concrete home in the checksum-verification path.
var (
	SHA256 Hasher = sha256Hasher{}
	BLAKE3 Hasher = blake3Hasher{}
)

// HasherFor returns the stock Hasher matching algo, defaulting to SHA256.
func HasherFor(algo model.HashAlgo) Hasher {
	if algo == model.AlgoBLAKE3 {
		return BLAKE3
	}
	return SHA256
}

// checksumStream drains r through hasher, returning the resulting
// Checksum. Used both for verifying the archive stream's overall checksum
// (§4.G step 7/9) and for checking an on-disk file before protected-file
// diversion (§4.G).
func checksumStream(r io.Reader, hasher Hasher) (model.Checksum, error) {
	h := hasher.New()
	if _, err := io.Copy(h, r); err != nil {
		return model.Checksum{}, err
	}
	return model.Checksum{Algo: hasher.Algo(), Digest: h.Sum(nil)}, nil
}

// ChecksumStream is the exported form of checksumStream, used by
// cmd/pkgutil's verify command to recompute an installed file's digest
// against whichever algorithm it was originally stored with.
func ChecksumStream(r io.Reader, algo model.HashAlgo) (model.Checksum, error) {
	return checksumStream(r, HasherFor(algo))
}
