package model

import "testing"

func TestDirectoryProtected(t *testing.T) {
	d := &Directory{Dirname: "etc"}
	if d.Protected() {
		t.Fatal("new directory should not be protected")
	}
	d.SetProtected(true)
	if !d.Protected() {
		t.Fatal("expected directory to be protected after SetProtected(true)")
	}
	d.SetProtected(false)
	if d.Protected() {
		t.Fatal("expected directory to not be protected after SetProtected(false)")
	}
}

func TestPackageRepoBitmask(t *testing.T) {
	p := &Package{}
	p.AddRepo(0)
	p.AddRepo(3)
	if !p.HasRepo(0) || !p.HasRepo(3) {
		t.Fatalf("expected repos 0 and 3 set, got mask %b", p.Repos)
	}
	if p.HasRepo(1) {
		t.Fatal("repo 1 should not be set")
	}
}

func TestPackageFilesIntrusiveList(t *testing.T) {
	p := &Package{}
	dir := &Directory{Dirname: "usr/bin"}

	f := &File{Filename: "foo", Dir: dir}
	f.OwnerHandle = p.Files.PushBack(f)
	f.DirHandle = dir.Files.PushBack(f)

	if p.Files.Len() != 1 || dir.Files.Len() != 1 {
		t.Fatalf("expected file linked into both lists")
	}
	if f.Path() != "usr/bin/foo" {
		t.Fatalf("Path() = %q, want usr/bin/foo", f.Path())
	}

	dir.Files.Remove(f.DirHandle)
	if dir.Files.Len() != 0 {
		t.Fatal("expected file removed from directory list")
	}
	if p.Files.Len() != 1 {
		t.Fatal("removing from directory list must not affect owner list")
	}
}

func TestChecksumKeyDistinguishesAlgos(t *testing.T) {
	c1 := Checksum{Algo: AlgoSHA256, Digest: []byte{1, 2, 3}}
	c2 := Checksum{Algo: AlgoBLAKE3, Digest: []byte{1, 2, 3}}
	if c1.Key() == c2.Key() {
		t.Fatal("checksums with different algorithms must not collide")
	}
}
