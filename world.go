package pkgdb

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/fdb"
	"github.com/ndlib/pkgdb/model"
)

// parseDependencyTokens splits a space-separated dependency line into
// Dependency values, the same token grammar the FDB 'D' field and the
// world file share (both round-trip through apk_deps_format /
// apk_deps_parse in original_source/src/database.c).
func parseDependencyTokens(line string) []model.Dependency {
	var deps []model.Dependency
	for _, tok := range strings.Fields(line) {
		deps = append(deps, splitDependencyToken(tok))
	}
	return deps
}

func splitDependencyToken(tok string) model.Dependency {
	for i, c := range tok {
		switch c {
		case '=', '>', '<', '~':
			return model.Dependency{Name: tok[:i], Constraint: tok[i:]}
		}
	}
	return model.Dependency{Name: tok}
}

func formatDependencyTokens(deps []model.Dependency) string {
	toks := make([]string, len(deps))
	for i, d := range deps {
		toks[i] = d.Name + d.Constraint
	}
	return strings.Join(toks, " ")
}

// AddWorld appends dep to the user-declared world set (SPEC_FULL.md
// Supplemental features / spec.md Open Question 4: "whether user
// add/del mutates it ... must be specified by the CLI layer" — resolved
// here as the only two façade entry points that mutate world).
func (db *Database) AddWorld(dep model.Dependency) {
	for _, d := range db.world {
		if d.Name == dep.Name {
			return
		}
	}
	db.world = append(db.world, dep)
}

// DelWorld removes the dependency named name from world, if present.
func (db *Database) DelWorld(name string) {
	out := db.world[:0]
	for _, d := range db.world {
		if d.Name != name {
			out = append(out, d)
		}
	}
	db.world = out
}

func (db *Database) readWorld() error {
	data, err := os.ReadFile(db.rootPath + "/var/lib/apk/world")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.KindIO, err, "reading var/lib/apk/world")
	}
	db.world = parseDependencyTokens(string(data))
	return nil
}

func (db *Database) writeWorld() error {
	line := formatDependencyTokens(db.world) + "\n"
	path := db.rootPath + "/var/lib/apk/world"
	if err := os.WriteFile(path, []byte(line), 0600); err != nil {
		return errs.Wrap(errs.KindIO, err, "writing var/lib/apk/world")
	}
	return nil
}

// pkginfoLoader captures a single package record while reusing fdb's
// field-letter parser for a .PKGINFO control entry, per §4.E's "index
// fields (handled by a package-info parser shared with repository
// indexes)" — .PKGINFO is a third consumer of that same shared grammar.
type pkginfoLoader struct{ pkg *model.Package }

func (l *pkginfoLoader) Dir(path string) *model.Directory { return &model.Directory{Dirname: path} }
func (l *pkginfoLoader) SetOwner(dir *model.Directory, filename string, pkg *model.Package) *model.File {
	return &model.File{Filename: filename, Dir: dir, Owner: pkg}
}
func (l *pkginfoLoader) AddPkg(pkg *model.Package) (*model.Package, bool) {
	l.pkg = pkg
	return pkg, false
}

// extractPkgInfo reads path as a gzip+tar .apk archive and parses its
// .PKGINFO control entry into a Package, leaving FromFilename set so the
// install engine's stream opener (§4.G step 4) reads straight from disk.
func extractPkgInfo(path string) (*model.Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "opening "+path)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, err, "opening gzip stream for "+path)
	}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, errs.New(errs.KindParse, path+" has no .PKGINFO entry")
		}
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "reading "+path)
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if name != ".PKGINFO" {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, err, "reading .PKGINFO from "+path)
		}
		loader := &pkginfoLoader{}
		if err := fdb.NewReader(loader).Load(bytes.NewReader(data), 0); err != nil {
			return nil, err
		}
		if loader.pkg == nil {
			return nil, errs.New(errs.KindParse, path+": empty .PKGINFO")
		}
		loader.pkg.Repos = 0 // the repo-0 bit picked up by Load's finish() is meaningless for a local file
		loader.pkg.FromFilename = path
		return loader.pkg, nil
	}
}

// PkgAddFile implements §6's pkg_add_file(path) handler: it registers the
// package described by a local .apk file's control data as available, so
// it can be installed directly from disk without a repository.
func (db *Database) PkgAddFile(path string) (*model.Package, error) {
	pkg, err := extractPkgInfo(path)
	if err != nil {
		return nil, err
	}
	canonical, _ := db.AddPkg(pkg)
	return canonical, nil
}
