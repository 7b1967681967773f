package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/model"
)

type fixtureEntry struct {
	name    string
	isDir   bool
	mode    int64
	content string
}

func buildArchive(t *testing.T, entries []fixtureEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode}
		if e.isDir {
			hdr.Typeflag = tar.TypeDir
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.content))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader(%s): %v", e.name, err)
		}
		if !e.isDir {
			if _, err := tw.Write([]byte(e.content)); err != nil {
				t.Fatalf("Write(%s): %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip Close: %v", err)
	}
	return buf.Bytes()
}

type fakeOpener struct {
	data []byte
	err  error
}

func (o *fakeOpener) Open(ctx context.Context, pkg *model.Package, repoURL string) (io.ReadCloser, error) {
	if o.err != nil {
		return nil, o.err
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func openRoot(t *testing.T) (string, int) {
	t.Helper()
	root := t.TempDir()
	fd, err := unix.Open(root, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		t.Fatalf("open root: %v", err)
	}
	t.Cleanup(func() { unix.Close(fd) })
	return root, fd
}

func newPackage(name, version string) *model.Package {
	n := &model.Name{Name: name}
	p := &model.Package{Name: n, Version: version}
	n.Packages = append(n.Packages, p)
	return p
}

func TestInstallFreshExtractsFilesAndRunsPostInstall(t *testing.T) {
	root, fd := openRoot(t)
	reg := newFakeRegistry(root, fd)
	data := buildArchive(t, []fixtureEntry{
		{name: "usr/", isDir: true, mode: 0755},
		{name: "usr/hello.txt", content: "hi there", mode: 0644},
		{name: "var/db/apk/greet/1.0/post-install", content: "#!/bin/sh\n", mode: 0755},
	})

	pkg := newPackage("greet", "1.0")
	runner := &fakeRunner{exit: 0}
	e := &Engine{Registry: reg, Opener: &fakeOpener{data: data}, Runner: runner}

	if err := e.Install(context.Background(), nil, pkg, ""); err != nil {
		t.Fatalf("Install: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "usr/hello.txt"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(got) != "hi there" {
		t.Fatalf("content = %q, want %q", got, "hi there")
	}

	if len(pkg.Scripts) != 1 || pkg.Scripts[0].Kind != model.ScriptPostInstall {
		t.Fatalf("expected one post-install script recorded, got %+v", pkg.Scripts)
	}
	if len(runner.calls) != 1 || runner.calls[0] != model.ScriptPostInstall {
		t.Fatalf("expected post-install to run once, got %v", runner.calls)
	}
	if pkg.State != model.StateInstall {
		t.Fatalf("expected package state INSTALL, got %v", pkg.State)
	}

	f := reg.files["usr/hello.txt"]
	if f == nil || f.Owner != pkg {
		t.Fatalf("expected usr/hello.txt owned by pkg, got %+v", f)
	}
}

func TestInstallConflictAbortsForDifferentOwner(t *testing.T) {
	root, fd := openRoot(t)
	reg := newFakeRegistry(root, fd)
	runner := &fakeRunner{}

	pkgA := newPackage("alpha", "1.0")
	dataA := buildArchive(t, []fixtureEntry{{name: "bin/tool", content: "a", mode: 0755}})
	if err := (&Engine{Registry: reg, Opener: &fakeOpener{data: dataA}, Runner: runner}).
		Install(context.Background(), nil, pkgA, ""); err != nil {
		t.Fatalf("installing pkgA: %v", err)
	}

	pkgB := newPackage("beta", "1.0")
	dataB := buildArchive(t, []fixtureEntry{{name: "bin/tool", content: "b", mode: 0755}})
	err := (&Engine{Registry: reg, Opener: &fakeOpener{data: dataB}, Runner: runner}).
		Install(context.Background(), nil, pkgB, "")
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("expected KindConflict, got %v", err)
	}
}

func TestInstallBusyboxGrandfathered(t *testing.T) {
	root, fd := openRoot(t)
	reg := newFakeRegistry(root, fd)
	runner := &fakeRunner{}

	busybox := newPackage("busybox", "1.0")
	data := buildArchive(t, []fixtureEntry{{name: "bin/tool", content: "bb", mode: 0755}})
	if err := (&Engine{Registry: reg, Opener: &fakeOpener{data: data}, Runner: runner}).
		Install(context.Background(), nil, busybox, ""); err != nil {
		t.Fatalf("installing busybox: %v", err)
	}

	real := newPackage("tool-pkg", "1.0")
	data2 := buildArchive(t, []fixtureEntry{{name: "bin/tool", content: "real", mode: 0755}})
	if err := (&Engine{Registry: reg, Opener: &fakeOpener{data: data2}, Runner: runner}).
		Install(context.Background(), nil, real, ""); err != nil {
		t.Fatalf("expected busybox-owned file to be silently taken over, got: %v", err)
	}
	if reg.files["bin/tool"].Owner != real {
		t.Fatalf("expected tool-pkg to now own bin/tool")
	}
}

func TestInstallProtectedFileDiversion(t *testing.T) {
	root, fd := openRoot(t)
	reg := newFakeRegistry(root, fd)
	runner := &fakeRunner{}

	dir := reg.Dir("etc")
	dir.SetProtected(true)
	if err := unix.Mkdirat(fd, "etc", 0755); err != nil {
		t.Fatalf("mkdir etc: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "etc/conf"), []byte("user-edited"), 0644); err != nil {
		t.Fatalf("seeding edited file: %v", err)
	}

	owner := newPackage("base", "1.0")
	file := reg.GetOrCreateFile(dir, "conf")
	reg.AttachOwner(file, owner)
	file.Checksum = model.Checksum{Algo: model.AlgoSHA256, Digest: bytes.Repeat([]byte{0x01}, 32)}

	data := buildArchive(t, []fixtureEntry{{name: "etc/conf", content: "new-default", mode: 0644}})
	if err := (&Engine{Registry: reg, Opener: &fakeOpener{data: data}, Runner: runner}).
		Install(context.Background(), nil, owner, ""); err != nil {
		t.Fatalf("Install: %v", err)
	}

	original, err := os.ReadFile(filepath.Join(root, "etc/conf"))
	if err != nil {
		t.Fatalf("reading original: %v", err)
	}
	if string(original) != "user-edited" {
		t.Fatalf("protected file was overwritten: %q", original)
	}
	diverted, err := os.ReadFile(filepath.Join(root, "etc/conf.apk-new"))
	if err != nil {
		t.Fatalf("expected diverted .apk-new file: %v", err)
	}
	if string(diverted) != "new-default" {
		t.Fatalf("diverted content = %q", diverted)
	}
}

func TestInstallChecksumMismatchIsWarningNotFailure(t *testing.T) {
	root, fd := openRoot(t)
	reg := newFakeRegistry(root, fd)
	runner := &fakeRunner{}

	pkg := newPackage("drifted", "1.0")
	pkg.Checksum = model.Checksum{Algo: model.AlgoSHA256, Digest: bytes.Repeat([]byte{0xAA}, 32)}
	data := buildArchive(t, []fixtureEntry{{name: "usr/drifted.txt", content: "not what was declared", mode: 0644}})

	e := &Engine{Registry: reg, Opener: &fakeOpener{data: data}, Runner: runner}
	if err := e.Install(context.Background(), nil, pkg, ""); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !e.LastChecksumMismatch {
		t.Fatalf("expected LastChecksumMismatch, got false")
	}
	if pkg.State != model.StateInstall {
		t.Fatalf("expected package still marked INSTALL despite mismatch, got %v", pkg.State)
	}
}

// TestInstallUpgradeReattachesSameFileSlot exercises §4.G step 3 /
// spec.md S2's upgrade path (both old and newPkg non-nil) at an
// unprotected path: the File object at etc/conf must end up owned by
// the new package, still linked exactly once in its directory's file
// list, with no stale or duplicate entries left from the purge half of
// the upgrade.
func TestInstallUpgradeReattachesSameFileSlot(t *testing.T) {
	root, fd := openRoot(t)
	reg := newFakeRegistry(root, fd)
	runner := &fakeRunner{}

	pkgA := newPackage("base", "1.0")
	dataA := buildArchive(t, []fixtureEntry{
		{name: "etc/", isDir: true, mode: 0755},
		{name: "etc/conf", content: "v1", mode: 0644},
	})
	if err := (&Engine{Registry: reg, Opener: &fakeOpener{data: dataA}, Runner: runner}).
		Install(context.Background(), nil, pkgA, ""); err != nil {
		t.Fatalf("installing pkgA 1.0: %v", err)
	}

	dir := reg.dirs["etc"]
	if dir.Files.Len() != 1 {
		t.Fatalf("after first install, etc dir.Files.Len() = %d, want 1", dir.Files.Len())
	}
	firstHandle := dir.Files.Front()

	pkgB := newPackage("base", "2.0")
	dataB := buildArchive(t, []fixtureEntry{
		{name: "etc/", isDir: true, mode: 0755},
		{name: "etc/conf", content: "v2", mode: 0644},
	})
	if err := (&Engine{Registry: reg, Opener: &fakeOpener{data: dataB}, Runner: runner}).
		Install(context.Background(), pkgA, pkgB, ""); err != nil {
		t.Fatalf("upgrading to pkgB 2.0: %v", err)
	}

	if dir.Files.Len() != 1 {
		t.Fatalf("after upgrade, etc dir.Files.Len() = %d, want 1 (no stale/duplicate entry)", dir.Files.Len())
	}
	if dir.Files.Front() != firstHandle {
		t.Fatalf("expected upgrade to reuse the original DirHandle, got a new one")
	}

	f := reg.files["etc/conf"]
	if f == nil || f.Owner != pkgB {
		t.Fatalf("expected etc/conf owned by pkgB after upgrade, got %+v", f)
	}

	got, err := os.ReadFile(filepath.Join(root, "etc/conf"))
	if err != nil {
		t.Fatalf("reading upgraded file: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("content = %q, want v2", got)
	}
	if reg.filesN != 1 {
		t.Fatalf("filesN = %d, want 1 (net zero across purge+reinstall)", reg.filesN)
	}
}

// TestClassifyEntryRejectsForeignPackageScript exercises the
// original_source-resolved behavior that an APK-1.0
// var/db/apk/<name>/<version>/<kind> entry whose name/version don't
// match the package being installed must be ignored, not run as that
// package's script.
func TestClassifyEntryRejectsForeignPackageScript(t *testing.T) {
	isScript, target := classifyEntry("var/db/apk/other/9.9/post-install", "greet", "1.0")
	if !isScript || target.recognized {
		t.Fatalf("expected foreign name/version entry to be recognized-as-script but unrecognized, got isScript=%v target=%+v", isScript, target)
	}

	isScript, target = classifyEntry("var/db/apk/greet/1.0/post-install", "greet", "1.0")
	if !isScript || !target.recognized || target.kind != model.ScriptPostInstall {
		t.Fatalf("expected matching name/version entry to classify as post-install, got isScript=%v target=%+v", isScript, target)
	}
}

func TestInstallPureRemovalRunsDeinstallScriptsAndPurges(t *testing.T) {
	root, fd := openRoot(t)
	reg := newFakeRegistry(root, fd)
	runner := &fakeRunner{}

	pkg := newPackage("gone", "1.0")
	data := buildArchive(t, []fixtureEntry{{name: "usr/gone.txt", content: "x", mode: 0644}})
	if err := (&Engine{Registry: reg, Opener: &fakeOpener{data: data}, Runner: runner}).
		Install(context.Background(), nil, pkg, ""); err != nil {
		t.Fatalf("initial install: %v", err)
	}

	pkg.AddScript(&model.Script{Kind: model.ScriptPreDeinstall, Bytes: []byte("pre")})
	pkg.AddScript(&model.Script{Kind: model.ScriptPostDeinstall, Bytes: []byte("post")})

	e := &Engine{Registry: reg, Opener: &fakeOpener{}, Runner: runner}
	if err := e.Install(context.Background(), pkg, nil, ""); err != nil {
		t.Fatalf("removal: %v", err)
	}

	foundPre, foundPost := false, false
	for _, k := range runner.calls {
		if k == model.ScriptPreDeinstall {
			foundPre = true
		}
		if k == model.ScriptPostDeinstall {
			foundPost = true
		}
	}
	if !foundPre || !foundPost {
		t.Fatalf("expected both deinstall scripts to run, got %v", runner.calls)
	}
	if pkg.State != model.StateAvailable {
		t.Fatalf("expected package state AVAILABLE after purge, got %v", pkg.State)
	}
	if pkg.Files.Len() != 0 {
		t.Fatalf("expected purge to empty owned files list, len=%d", pkg.Files.Len())
	}
	if _, err := os.Stat(filepath.Join(root, "usr/gone.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed from disk, stat err = %v", err)
	}
}
