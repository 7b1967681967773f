// Package scriptstore implements the script blob reader/writer of
// spec.md §4.F: a concatenation of {checksum, type, size} headers each
// followed by size bytes of payload, keyed by package checksum, plus the
// small runner interface §4.G invokes scripts through.
//
// Grounded on store/store.go's Store interface shape for the binary blob
// itself; the runner has no fitting library anywhere in the example
// corpus (see DESIGN.md), so it is the one ambient concern built directly
// on os/exec.
package scriptstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os/exec"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/model"
)

const headerSize = 32 + 4 + 4 // digest + type + size, fixed digest width below

// digestWidth is the on-disk width of every stored checksum, regardless
// of which HashAlgo produced it; shorter digests are zero-padded, and the
// algorithm itself travels in the header's type field low byte (the kind
// sits in the bits above it) so a
// mixed sha256/blake3 store stays self-describing.
const digestWidth = 32

type header struct {
	digest [digestWidth]byte
	algo   model.HashAlgo
	kind   model.ScriptKind
	size   uint32
}

func (h header) checksum() model.Checksum {
	return model.Checksum{Algo: h.algo, Digest: append([]byte(nil), h.digest[:]...)}
}

func writeHeader(w io.Writer, sum model.Checksum, kind model.ScriptKind, size int) error {
	var buf [headerSize]byte
	copy(buf[:digestWidth], sum.Digest)
	binary.BigEndian.PutUint32(buf[digestWidth:digestWidth+4], uint32(kind)<<8|uint32(sum.Algo))
	binary.BigEndian.PutUint32(buf[digestWidth+4:], uint32(size))
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) (header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return header{}, err
	}
	var h header
	copy(h.digest[:], buf[:digestWidth])
	tagged := binary.BigEndian.Uint32(buf[digestWidth : digestWidth+4])
	h.kind = model.ScriptKind(tagged >> 8)
	h.algo = model.HashAlgo(tagged & 0xff)
	h.size = binary.BigEndian.Uint32(buf[digestWidth+4:])
	return h, nil
}

// PackageLookup resolves a package by content checksum while reading a
// script store, mirroring the FDB Loader's checksum-keyed registry.
type PackageLookup interface {
	ByChecksum(model.Checksum) (*model.Package, bool)
}

// Read parses the concatenated script blob from r, appending each script
// to the package its header's checksum resolves to via lookup. Unknown
// checksums have their payload skipped, per §4.F.
func Read(r io.Reader, lookup PackageLookup) error {
	br := bufio.NewReader(r)
	for {
		h, err := readHeader(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errs.Wrap(errs.KindIO, err, "reading script store header")
		}
		pkg, ok := lookup.ByChecksum(h.checksum())
		if !ok {
			if _, err := io.CopyN(io.Discard, br, int64(h.size)); err != nil {
				return errs.Wrap(errs.KindIO, err, "skipping unknown script payload")
			}
			continue
		}
		payload := make([]byte, h.size)
		if _, err := io.ReadFull(br, payload); err != nil {
			return errs.Wrap(errs.KindIO, err, "reading script payload")
		}
		pkg.AddScript(&model.Script{Kind: h.kind, Bytes: payload})
	}
}

// Write serializes every script owned by every package in packages, in
// package then script order.
func Write(w io.Writer, packages []*model.Package) error {
	for _, pkg := range packages {
		for _, s := range pkg.Scripts {
			if err := writeHeader(w, pkg.Checksum, s.Kind, len(s.Bytes)); err != nil {
				return errs.Wrap(errs.KindIO, err, "writing script store header")
			}
			if _, err := w.Write(s.Bytes); err != nil {
				return errs.Wrap(errs.KindIO, err, "writing script payload")
			}
		}
	}
	return nil
}

// Runner invokes a script's bytes against a root filesystem, per §4.G /
// Design Notes §9's "small external process runner interface".
type Runner interface {
	Run(ctx context.Context, kind model.ScriptKind, payload []byte, rootDir string) (exitCode int, err error)
}

// ExecRunner runs scripts by writing them to a temp file under rootDir
// and exec'ing them with rootDir as the working directory, matching how
// apk-tools' pre/post hooks are invoked relative to the installation
// target.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, kind model.ScriptKind, payload []byte, rootDir string) (int, error) {
	tmp, err := writeTempScript(rootDir, payload)
	if err != nil {
		return -1, errs.Wrap(errs.KindIO, err, "staging script")
	}
	defer removeTempScript(tmp)

	cmd := exec.CommandContext(ctx, tmp)
	cmd.Dir = rootDir // the script runs with the installation root as its cwd, §4.G step 1
	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode(), errs.Wrap(errs.KindScriptFailure, err, kind.String()+" script failed")
	}
	return -1, errs.Wrap(errs.KindScriptFailure, err, kind.String()+" script could not run")
}
