package install

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/model"
)

// installContext binds the state install_entry (§4.G) threads across one
// package's worth of archive entries: which pre-phase script to fire
// eagerly, and a one-slot directory memo mirroring the source's
// last-seen-directory cache.
type installContext struct {
	reg     Registry
	pkg     *model.Package
	script  model.ScriptKind
	runner  Runner
	rootDir string

	dirCachePath string
	dirCacheDir  *model.Directory
}

func (c *installContext) dirFor(dirPath string) *model.Directory {
	if dirPath == c.dirCachePath && c.dirCacheDir != nil {
		return c.dirCacheDir
	}
	d := c.reg.Dir(dirPath)
	c.dirCachePath, c.dirCacheDir = dirPath, d
	return d
}

// installEntry implements §4.G's install_entry(entry, stream).
func (c *installContext) installEntry(ctx context.Context, entry ArchiveEntry, payload io.Reader) error {
	name := strings.TrimPrefix(entry.Name, "./")
	name = strings.TrimSuffix(name, "/")

	if isScript, target := classifyEntry(entry.Name, c.pkg.NameString(), c.pkg.Version); isScript {
		if !target.recognized {
			return nil
		}
		data, err := io.ReadAll(payload)
		if err != nil {
			return errs.Wrap(errs.KindIO, err, "reading script payload for "+name)
		}
		s := &model.Script{Kind: target.kind, Bytes: data}
		c.pkg.AddScript(s)
		if target.kind == model.ScriptGeneric || target.kind == c.script {
			code, err := c.runner.Run(ctx, target.kind, data, c.rootDir)
			if err != nil {
				return errs.Wrapf(errs.KindScriptFailure, err, "%s script exited %d", target.kind, code)
			}
		}
		return nil
	}

	if entry.IsDir {
		d := c.dirFor(name)
		d.Mode = entry.Mode & 07777
		d.UID = entry.UID
		d.GID = entry.GID
		return nil
	}

	return c.installRegularFile(name, entry, payload)
}

func (c *installContext) installRegularFile(name string, entry ArchiveEntry, payload io.Reader) error {
	dirName := path.Dir(name)
	if dirName == "." {
		dirName = ""
	}
	filename := path.Base(name)
	dir := c.dirFor(dirName)

	file := c.reg.GetOrCreateFile(dir, filename)

	if file.Owner != nil && file.Owner.NameString() != c.pkg.NameString() && file.Owner.NameString() != "busybox" {
		return errs.New(errs.KindConflict, name+" is already owned by "+file.Owner.NameString())
	}

	if err := c.reg.RefDir(dir, true); err != nil {
		return errs.Wrap(errs.KindIO, err, "refing directory for "+name)
	}
	c.reg.AttachOwner(file, c.pkg)

	if strings.HasPrefix(filename, ".keep_") {
		return nil
	}

	target := name
	if dir.Protected() && file.Checksum.Valid() {
		if onDisk, ok := readFileChecksum(c.reg.RootFd(), name, HasherFor(file.Checksum.Algo)); ok && !onDisk.Equal(file.Checksum) {
			target = name + ".apk-new"
		}
	}

	if err := extractRegularFile(c.reg.RootFd(), target, entry.Mode, entry.UID, entry.GID, payload); err != nil {
		return errs.Wrap(errs.KindIO, err, "extracting "+target)
	}

	file.Checksum = entry.Checksum
	return nil
}
