package model

import "github.com/ndlib/pkgdb/ilist"

// Package is one concrete version of a Name: the content-addressed unit
// spec.md §3 calls Package. Its identity is Checksum; ID is a database
// sequence number assigned at registration, used only for stable log
// output and test assertions.
type Package struct {
	ID   uint32
	Name *Name

	Version      string
	Description  string
	URL          string
	License      string
	Arch         string
	InstallSize  int64
	ArchiveSize  int64
	Depends      []Dependency
	Checksum     Checksum
	Repos        uint32 // bitmask of repository slots carrying this package
	State        PackageState
	FromFilename string // set when the package was loaded from a local file, not a repo

	// Files is the intrusive list of this package's owned files, kept in
	// archive-entry insertion order (the order the FDB writer relies on
	// to batch F/M/R/Z runs by directory, §4.E). Each File's OwnerHandle
	// is its position in this list.
	Files ilist.List[*File]

	// Scripts holds every Script payload read for this package, in the
	// order they were encountered in the archive or script store.
	Scripts []*Script
}

// NameString returns the package name, or "" if unregistered.
func (p *Package) NameString() string {
	if p.Name == nil {
		return ""
	}
	return p.Name.Name
}

// HasRepo reports whether repository slot is one of this package's
// carriers.
func (p *Package) HasRepo(slot int) bool {
	if slot < 0 || slot >= MaxRepos {
		return false
	}
	return p.Repos&(1<<uint(slot)) != 0
}

// AddRepo ORs repository slot into this package's carrier bitmask (§4.E:
// a duplicate sighting of the same checksum from a different repository
// just merges bits, it does not create a second Package).
func (p *Package) AddRepo(slot int) {
	if slot < 0 || slot >= MaxRepos {
		return
	}
	p.Repos |= 1 << uint(slot)
}

// Script returns the first script of the given kind, or nil.
func (p *Package) Script(kind ScriptKind) *Script {
	for _, s := range p.Scripts {
		if s.Kind == kind {
			return s
		}
	}
	return nil
}

// AddScript appends script to this package's script list.
func (p *Package) AddScript(s *Script) {
	p.Scripts = append(p.Scripts, s)
}
