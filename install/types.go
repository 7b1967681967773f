package install

import (
	"context"
	"io"

	"github.com/ndlib/pkgdb/model"
)

// ArchiveEntry is one entry's metadata as yielded by an ArchiveIterator:
// the §1 external "iterate_entries(stream) -> (metadata, payload_stream)"
// collaborator's metadata half.
type ArchiveEntry struct {
	Name     string
	IsDir    bool
	Mode     uint32 // permission bits only (low 12 bits); type bits excluded, IsDir carries that instead
	UID, GID uint32
	Size     int64
	Checksum model.Checksum // the archive's own declared checksum for this entry, if any
}

// ArchiveIterator yields archive entries one at a time. Next returns
// io.EOF (with a zero ArchiveEntry and nil reader) once exhausted. The
// returned reader is only valid until the next Next call and yields
// exactly entry.Size bytes.
type ArchiveIterator interface {
	Next() (ArchiveEntry, io.Reader, error)
}

// StreamOpener opens the byte stream for a package, resolving
// pkg.FromFilename or a repository URL per §4.G step 4. Checksum
// primitives and network fetch proper are external collaborators (§1);
// this is the seam between them and the install engine.
type StreamOpener interface {
	Open(ctx context.Context, pkg *model.Package, repoURL string) (io.ReadCloser, error)
}

// Registry is what Engine needs from the database façade: file/directory
// bookkeeping and the installed-packages list, without importing the
// façade package itself (which imports install).
type Registry interface {
	// Dir interns path without any disk mutation.
	Dir(path string) *model.Directory
	// RefDir/UnrefDir delegate to the directory table, mutating disk
	// when createOnDisk is set on Ref.
	RefDir(d *model.Directory, createOnDisk bool) error
	UnrefDir(d *model.Directory)

	// GetOrCreateFile returns the File at dir/filename, creating an
	// unowned one if this is the first time this path is seen (§3 file
	// uniqueness invariant: at most one File per (dir, filename)).
	GetOrCreateFile(dir *model.Directory, filename string) *model.File
	// AttachOwner detaches file from any previous owner (without
	// decrementing the files counter) and attaches it to pkg, appending to
	// pkg's owned-files list. A file that had no owner increments the
	// files counter.
	AttachOwner(file *model.File, pkg *model.Package)

	// DecFiles is called once per file purge (§4.G step 2); the matching
	// increment happens inside AttachOwner when an unowned file gains an
	// owner.
	DecFiles()

	// AppendInstalled adds pkg to installed.packages (state INSTALL)
	// and increments the package counter (§4.G step 8).
	AppendInstalled(pkg *model.Package)
	// RemoveInstalled removes pkg from installed.packages, resets its
	// state to AVAILABLE, and decrements the package counter (§4.G
	// step 2 purge).
	RemoveInstalled(pkg *model.Package)

	// RootDir is the filesystem path the install root was opened from,
	// used by the script runner (which needs a working directory, not a
	// descriptor); file access goes through RootFd.
	RootDir() string
	// RootFd is the already-open root directory file descriptor used
	// for every *at-family syscall the engine issues, per Design Notes
	// §9's "explicit root descriptor instead of chdir".
	RootFd() int
}
