// Package install implements the §4.G install engine: the state machine
// that walks an archive stream's entries and applies them to the
// database's directory/file/package graph, plus the purge half of
// removal and the pre/post script sequencing around both.
//
// Grounded on transaction/transaction.go's begin/commit shape for the
// overall apply-then-finalize flow, widened to the file-ownership
// transfer semantics of §3/§4.G that bendo's blob transactions have no
// analogue for.
package install

import (
	"context"
	cryptorand "crypto/rand"
	"io"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/ilist"
	"github.com/ndlib/pkgdb/model"
)

// Engine drives install(old_pkg?, new_pkg?) against a Registry.
type Engine struct {
	Registry Registry
	Opener   StreamOpener
	Runner   Runner
	Hasher   Hasher // used to verify the archive stream's overall checksum; defaults to SHA256 if nil

	// LastID is the correlation id stamped on the most recent Install
	// call, so the façade can log it alongside whatever warning or error
	// that call produced and grep one install's script output, conflict
	// errors, and checksum-mismatch warning together.
	LastID ulid.ULID

	// LastChecksumMismatch is set by the most recent Install call when
	// the archive stream's computed checksum differed from the
	// package's declared one (§4.G step 9, §7 ChecksumMismatch: a
	// warning, not a fatal error). The façade logs it after Install
	// returns; Engine itself never escalates it.
	LastChecksumMismatch bool
}

// Runner invokes one script payload against the install root. Defined
// here (rather than imported from scriptstore) so install has no
// dependency on scriptstore; the façade wires scriptstore.ExecRunner in.
type Runner interface {
	Run(ctx context.Context, kind model.ScriptKind, payload []byte, rootDir string) (exitCode int, err error)
}

func (e *Engine) hasher() Hasher {
	if e.Hasher != nil {
		return e.Hasher
	}
	return SHA256
}

// Install implements §4.G's install(old_pkg?, new_pkg?). Exactly one of
// old, new may be nil (a pure removal or a pure install); both present
// means an upgrade.
func (e *Engine) Install(ctx context.Context, old, newPkg *model.Package, repoURL string) error {
	e.LastID = ulid.MustNew(ulid.Timestamp(time.Now()), cryptorand.Reader)
	e.LastChecksumMismatch = false

	if old != nil && newPkg == nil {
		if err := e.runScript(ctx, old, model.ScriptPreDeinstall); err != nil {
			return err
		}
		e.purge(old)
		if err := e.runScript(ctx, old, model.ScriptPostDeinstall); err != nil {
			return err
		}
		return nil
	}
	if old != nil && newPkg != nil {
		e.purge(old)
	}

	stream, err := e.Opener.Open(ctx, newPkg, repoURL)
	if err != nil {
		return errs.Wrap(errs.KindIO, err, "opening package stream for "+newPkg.NameString())
	}
	defer stream.Close()

	preScript := model.ScriptPreInstall
	postScript := model.ScriptPostInstall
	if old != nil {
		preScript = model.ScriptPreUpgrade
		postScript = model.ScriptPostUpgrade
	}

	ctxInstall := &installContext{
		reg:     e.Registry,
		pkg:     newPkg,
		script:  preScript,
		runner:  e.Runner,
		rootDir: e.Registry.RootDir(),
	}

	h := e.hasher().New()
	tee := io.TeeReader(stream, writerFunc(func(p []byte) (int, error) { return h.Write(p) }))

	iter, err := newTarGzIterator(tee)
	if err != nil {
		return errs.Wrap(errs.KindParse, err, "opening archive iterator for "+newPkg.NameString())
	}
	for {
		entry, payload, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.Wrap(errs.KindParse, err, "reading archive entry for "+newPkg.NameString())
		}
		if err := ctxInstall.installEntry(ctx, entry, payload); err != nil {
			return err
		}
	}

	// drain anything the iterator left unread so the checksum covers the
	// whole stream, not just the bytes the tar reader consumed.
	io.Copy(io.Discard, tee)

	computed := model.Checksum{Algo: e.hasher().Algo(), Digest: h.Sum(nil)}

	e.Registry.AppendInstalled(newPkg)

	if newPkg.Checksum.Valid() && !computed.Equal(newPkg.Checksum) {
		e.LastChecksumMismatch = true // non-fatal per §4.G step 9; façade logs it
	}

	if err := e.runScript(ctx, newPkg, postScript); err != nil {
		return err
	}
	return nil
}

// purge implements §4.G step 2's purge(old_pkg): detach and remove every
// file old_pkg owns, unref its directories, and reset its state. Unlike
// old.Files (the owner's list), f.Dir.Files is left untouched — matching
// original_source/src/database.c's apk_db_purge_pkg, which only unlinks
// from pkg_files_list, never dir_files_list. The File object, and its
// place in its directory's list, survives with Owner reset to nil so a
// later reinstall at the same path (GetOrCreateFile's cache hit) finds a
// still-live DirHandle instead of one already recycled by ilist's
// free-list into an unrelated file.
func (e *Engine) purge(old *model.Package) {
	var handles []ilist.Handle
	old.Files.Each(func(h ilist.Handle, f *model.File) { handles = append(handles, h) })
	for _, h := range handles {
		f := old.Files.Value(h)
		if f == nil {
			continue
		}
		f.Owner = nil
		dir := f.Dir
		old.Files.Remove(h)
		if dir != nil {
			unlinkAt(e.Registry.RootFd(), f.Path())
			e.Registry.UnrefDir(dir)
		}
		e.Registry.DecFiles()
	}
	e.Registry.RemoveInstalled(old)
}

func (e *Engine) runScript(ctx context.Context, pkg *model.Package, kind model.ScriptKind) error {
	s := pkg.Script(kind)
	if s == nil {
		return nil
	}
	code, err := e.Runner.Run(ctx, kind, s.Bytes, e.Registry.RootDir())
	if err != nil {
		return errs.Wrapf(errs.KindScriptFailure, err, "[%s] %s script for %s exited %d", e.LastID, kind, pkg.NameString(), code)
	}
	return nil
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// scriptTarget classifies an archive entry name per §4.G's three classes.
type scriptTarget struct {
	recognized bool
	kind       model.ScriptKind
}

// classifyEntry implements §4.G's three script classes. For the APK-1.0
// var/db/apk/<name>/<version>/<kind> form, pkgName/pkgVersion must match
// the package currently being installed — original_source/src/database.c's
// apk_db_install_archive_entry strncmp's both segments against pkg->name
// and pkg->version and ignores the entry (returns 0) on any mismatch,
// before ever mapping <kind>. Without this check a foreign
// var/db/apk/<other>/<other>/post-install entry bundled inside a
// package's own archive would be accepted and run as that package's
// script.
func classifyEntry(name, pkgName, pkgVersion string) (isScript bool, target scriptTarget) {
	name = strings.TrimPrefix(name, "./")
	base := path.Base(name)
	if strings.HasPrefix(base, ".") && !strings.Contains(name, "/") {
		if base == ".INSTALL" {
			return true, scriptTarget{recognized: true, kind: model.ScriptGeneric}
		}
		return true, scriptTarget{recognized: false}
	}
	const apkv1Prefix = "var/db/apk/"
	if strings.HasPrefix(name, apkv1Prefix) {
		rest := strings.TrimPrefix(name, apkv1Prefix)
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) == 3 && parts[0] == pkgName && parts[1] == pkgVersion {
			kind := model.ScriptKindFromAPKv1(parts[2])
			if kind != model.ScriptInvalid {
				return true, scriptTarget{recognized: true, kind: kind}
			}
		}
		return true, scriptTarget{recognized: false}
	}
	return false, scriptTarget{}
}
