package install

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ndlib/pkgdb/model"
)

// unlinkAt removes path relative to rootFd, ignoring errors: purge (§4.G
// step 2) is best-effort on disk the same way dirtable's rmdir is —
// the in-memory graph is the source of truth until the FDB is rewritten.
func unlinkAt(rootFd int, path string) {
	unix.Unlinkat(rootFd, path, 0)
}

// extractRegularFile creates (or truncates) relPath under rootFd, copies
// payload into it, and applies mode/uid/gid, matching the *at-family
// discipline Design Notes §9 asks for instead of a global chdir.
func extractRegularFile(rootFd int, relPath string, mode, uid, gid uint32, payload io.Reader) error {
	fd, err := unix.Openat(rootFd, relPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode&07777)
	if err != nil {
		return err
	}
	f := os.NewFile(uintptr(fd), relPath)
	if _, err := io.Copy(f, payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := unix.Fchownat(rootFd, relPath, int(uid), int(gid), unix.AT_SYMLINK_NOFOLLOW); err != nil && err != unix.EPERM {
		return err
	}
	return nil
}

// readFileChecksum hashes the file already on disk at relPath, returning
// ok=false if it does not exist. Used by protected-file diversion (§4.G)
// to compare against the previously stored checksum.
func readFileChecksum(rootFd int, relPath string, hasher Hasher) (model.Checksum, bool) {
	fd, err := unix.Openat(rootFd, relPath, os.O_RDONLY, 0)
	if err != nil {
		return model.Checksum{}, false
	}
	f := os.NewFile(uintptr(fd), relPath)
	defer f.Close()
	sum, err := checksumStream(f, hasher)
	if err != nil {
		return model.Checksum{}, false
	}
	return sum, true
}
