package pkgdb

import (
	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/model"
)

// AddPkg implements §4.E's db.add_pkg: look up by content checksum; if
// absent, assign an id and register pkg as a new available Package; if
// present, OR the repository bits into the existing instance and discard
// pkg. Shared by the FDB loader (fdb.Loader) and PkgAddFile; the script
// store looks packages up through ByChecksum instead.
func (db *Database) AddPkg(pkg *model.Package) (canonical *model.Package, duplicate bool) {
	key := pkg.Checksum.Key()
	if existing, ok := db.packages.Get(key); ok {
		existing.Repos |= pkg.Repos
		return existing, true
	}

	pkg.ID = db.nextPkgID
	db.nextPkgID++
	db.packages.Insert(key, pkg)

	name, ok := db.names.Get(pkg.NameString())
	if !ok {
		name = &model.Name{Name: pkg.NameString()}
		db.names.Insert(pkg.NameString(), name)
	}
	pkg.Name = name
	name.AddVersion(pkg)

	if pkg.State == model.StateInstall {
		// reached only while parsing the installed database itself
		// (fdb.Reader sets State before calling AddPkg, §4.E); this
		// preserves on-disk FDB order in installed.packages.
		db.installed = append(db.installed, pkg)
	}

	return pkg, false
}

// ByChecksum implements scriptstore.PackageLookup.
func (db *Database) ByChecksum(c model.Checksum) (*model.Package, bool) {
	return db.packages.Get(c.Key())
}

// Dir implements install.Registry / fdb.Loader: intern path without any
// disk mutation (§4.D "get(path)").
func (db *Database) Dir(path string) *model.Directory {
	return db.dirs.Get(path)
}

// RefDir implements install.Registry, delegating to the directory table
// (§4.D "ref(dir, create_on_disk)").
func (db *Database) RefDir(d *model.Directory, createOnDisk bool) error {
	if err := db.dirs.Ref(d, createOnDisk); err != nil {
		return errs.Wrap(errs.KindIO, err, "creating directory "+d.Dirname)
	}
	return nil
}

// UnrefDir implements install.Registry (§4.D "unref(dir)").
func (db *Database) UnrefDir(d *model.Directory) {
	db.dirs.Unref(d)
}

// GetOrCreateFile implements install.Registry: at most one File per
// (dir, filename) (§3 file-uniqueness invariant).
func (db *Database) GetOrCreateFile(dir *model.Directory, filename string) *model.File {
	key := fileKey(dir.Dirname, filename)
	if f, ok := db.files.Get(key); ok {
		return f
	}
	f := &model.File{Filename: filename, Dir: dir}
	f.DirHandle = dir.Files.PushBack(f)
	db.files.Insert(key, f)
	return f
}

func fileKey(dirname, filename string) string {
	return dirname + "\x00" + filename
}

// SetOwner implements fdb.Loader: attach a File named filename inside dir
// to pkg while loading the FDB, with no disk mutation (the directories
// are assumed to already exist on disk when loading the installed
// database, §4.E). Unlike install.Engine's entry path, which refs a
// directory explicitly before calling AttachOwner, this is the only
// caller of SetOwner, so it refs here directly (without creating
// anything on disk) to rebuild §8 invariant 1's refcount == owned-file
// count from a cold read of the FDB.
func (db *Database) SetOwner(dir *model.Directory, filename string, pkg *model.Package) *model.File {
	f := db.GetOrCreateFile(dir, filename)
	db.AttachOwner(f, pkg)
	db.dirs.Ref(dir, false)
	return f
}

// AttachOwner implements install.Registry (§4.G "set_owner"): detach file
// from any previous owner without decrementing the files counter, then
// attach it to pkg. The counter is bumped each time a file transitions
// from unowned to owned, including a reinstall after purge (§3 invariant 3).
func (db *Database) AttachOwner(file *model.File, pkg *model.Package) {
	if file.Owner == nil {
		db.filesCount++
	} else {
		file.Owner.Files.Remove(file.OwnerHandle)
	}
	file.Owner = pkg
	file.OwnerHandle = pkg.Files.PushBack(file)
}

// DecFiles implements install.Registry: called once per purged file
// (§4.G step 2), the counter's matching increment lives in AttachOwner.
func (db *Database) DecFiles() {
	db.filesCount--
}

// AppendInstalled implements install.Registry (§4.G step 8): mark pkg
// INSTALL and append it to installed.packages.
func (db *Database) AppendInstalled(pkg *model.Package) {
	pkg.State = model.StateInstall
	db.installed = append(db.installed, pkg)
}

// RemoveInstalled implements install.Registry (§4.G step 2 purge): reset
// pkg to AVAILABLE and drop it from installed.packages.
func (db *Database) RemoveInstalled(pkg *model.Package) {
	pkg.State = model.StateAvailable
	for i, p := range db.installed {
		if p == pkg {
			db.installed = append(db.installed[:i], db.installed[i+1:]...)
			break
		}
	}
}
