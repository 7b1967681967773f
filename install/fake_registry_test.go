package install

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/ndlib/pkgdb/model"
)

// fakeRegistry is a minimal in-memory Registry good enough to exercise
// Engine without pulling in dirtable/hashindex: those packages have their
// own tests, this one only needs to prove Engine drives the Registry
// seam correctly.
type fakeRegistry struct {
	rootDir   string
	rootFd    int
	dirs      map[string]*model.Directory
	files     map[string]*model.File
	installed []*model.Package
	filesN    int
}

func newFakeRegistry(rootDir string, rootFd int) *fakeRegistry {
	return &fakeRegistry{
		rootDir: rootDir,
		rootFd:  rootFd,
		dirs:    map[string]*model.Directory{"": {Dirname: ""}},
		files:   map[string]*model.File{},
	}
}

func (r *fakeRegistry) Dir(path string) *model.Directory {
	if d, ok := r.dirs[path]; ok {
		return d
	}
	d := &model.Directory{Dirname: path}
	r.dirs[path] = d
	return d
}

func (r *fakeRegistry) RefDir(d *model.Directory, createOnDisk bool) error {
	d.Refs++
	if createOnDisk && d.Dirname != "" {
		if err := unix.Mkdirat(r.rootFd, d.Dirname, 0755); err != nil && err != unix.EEXIST {
			return err
		}
	}
	return nil
}

func (r *fakeRegistry) UnrefDir(d *model.Directory) {
	d.Refs--
}

func (r *fakeRegistry) GetOrCreateFile(dir *model.Directory, filename string) *model.File {
	key := dir.Dirname + "/" + filename
	if f, ok := r.files[key]; ok {
		return f
	}
	f := &model.File{Filename: filename, Dir: dir}
	f.DirHandle = dir.Files.PushBack(f)
	r.files[key] = f
	return f
}

func (r *fakeRegistry) AttachOwner(file *model.File, pkg *model.Package) {
	if file.Owner == nil {
		r.filesN++
	} else {
		file.Owner.Files.Remove(file.OwnerHandle)
	}
	file.Owner = pkg
	file.OwnerHandle = pkg.Files.PushBack(file)
}

func (r *fakeRegistry) DecFiles() { r.filesN-- }

func (r *fakeRegistry) AppendInstalled(pkg *model.Package) {
	pkg.State = model.StateInstall
	r.installed = append(r.installed, pkg)
}

func (r *fakeRegistry) RemoveInstalled(pkg *model.Package) {
	pkg.State = model.StateAvailable
	for i, p := range r.installed {
		if p == pkg {
			r.installed = append(r.installed[:i], r.installed[i+1:]...)
			break
		}
	}
}

func (r *fakeRegistry) RootDir() string { return r.rootDir }
func (r *fakeRegistry) RootFd() int     { return r.rootFd }

type fakeRunner struct {
	calls []model.ScriptKind
	exit  int
	err   error
}

func (f *fakeRunner) Run(_ context.Context, kind model.ScriptKind, payload []byte, rootDir string) (int, error) {
	f.calls = append(f.calls, kind)
	return f.exit, f.err
}
