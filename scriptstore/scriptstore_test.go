package scriptstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ndlib/pkgdb/model"
)

type fakeLookup struct {
	byKey map[string]*model.Package
}

func (f *fakeLookup) ByChecksum(c model.Checksum) (*model.Package, bool) {
	p, ok := f.byKey[c.Key()]
	return p, ok
}

func TestWriteReadRoundTrip(t *testing.T) {
	pkg := &model.Package{
		Name:     &model.Name{Name: "foo"},
		Checksum: model.Checksum{Algo: model.AlgoSHA256, Digest: bytes.Repeat([]byte{0xaa}, 32)},
	}
	pkg.AddScript(&model.Script{Kind: model.ScriptPostInstall, Bytes: []byte("#!/bin/sh\necho hi\n")})

	var buf bytes.Buffer
	if err := Write(&buf, []*model.Package{pkg}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	target := &model.Package{Checksum: pkg.Checksum}
	lookup := &fakeLookup{byKey: map[string]*model.Package{pkg.Checksum.Key(): target}}
	if err := Read(&buf, lookup); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(target.Scripts) != 1 {
		t.Fatalf("expected 1 script read back, got %d", len(target.Scripts))
	}
	if target.Scripts[0].Kind != model.ScriptPostInstall {
		t.Fatalf("expected PostInstall kind, got %v", target.Scripts[0].Kind)
	}
	if string(target.Scripts[0].Bytes) != "#!/bin/sh\necho hi\n" {
		t.Fatalf("payload mismatch: %q", target.Scripts[0].Bytes)
	}
}

func TestReadSkipsUnknownChecksum(t *testing.T) {
	pkg := &model.Package{Checksum: model.Checksum{Algo: model.AlgoSHA256, Digest: bytes.Repeat([]byte{0xbb}, 32)}}
	pkg.AddScript(&model.Script{Kind: model.ScriptGeneric, Bytes: []byte("payload")})

	var buf bytes.Buffer
	if err := Write(&buf, []*model.Package{pkg}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lookup := &fakeLookup{byKey: map[string]*model.Package{}}
	if err := Read(&buf, lookup); err != nil {
		t.Fatalf("Read with unknown checksum should skip, not fail: %v", err)
	}
}

func TestExecRunnerExitCode(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("requires a POSIX shell")
	}
	root := t.TempDir()
	marker := filepath.Join(root, "ran")
	script := []byte("#!/bin/sh\ntouch " + marker + "\nexit 3\n")

	var r ExecRunner
	code, err := r.Run(context.Background(), model.ScriptPostInstall, script, root)
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
	if err == nil {
		t.Fatal("expected ScriptFailure error for nonzero exit")
	}
	if _, statErr := os.Stat(marker); statErr != nil {
		t.Fatalf("expected script side effect, stat error: %v", statErr)
	}
}
