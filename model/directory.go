package model

import "github.com/ndlib/pkgdb/ilist"

// Directory is one interned filesystem directory, keyed by full path
// without a trailing slash (§3, §4.D).
type Directory struct {
	Dirname string
	Mode    uint32
	UID     uint32
	GID     uint32
	Flags   DirFlags
	Parent  *Directory // nil only for the root ("")
	Refs    int

	// Files is the intrusive list of File entries physically inside this
	// directory. A File's DirHandle is its position in this list.
	Files ilist.List[*File]
}

// Protected reports whether this directory's files must be diverted
// instead of overwritten on upgrade (§3, §4.G).
func (d *Directory) Protected() bool { return d.Flags&DirProtected != 0 }

// SetProtected sets or clears DirProtected.
func (d *Directory) SetProtected(v bool) {
	if v {
		d.Flags |= DirProtected
	} else {
		d.Flags &^= DirProtected
	}
}
