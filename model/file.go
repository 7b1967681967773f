package model

import "github.com/ndlib/pkgdb/ilist"

// File is a single filesystem entry owned by at most one package at a
// time (§3). It participates in two intrusive lists at once — its
// directory's Files list and its owner's Files list — addressed by the two
// handles below, never by a back-pointer into either list (Design Notes
// §9: no reference cycles at the ownership level).
type File struct {
	Filename string
	Dir      *Directory
	Owner    *Package // nil while being purged
	Checksum Checksum

	DirHandle   ilist.Handle
	OwnerHandle ilist.Handle
}

// Path returns the file's full path relative to the root.
func (f *File) Path() string {
	if f.Dir == nil || f.Dir.Dirname == "" {
		return f.Filename
	}
	return f.Dir.Dirname + "/" + f.Filename
}
