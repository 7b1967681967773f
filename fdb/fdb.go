// Package fdb implements the line-oriented front-database reader/writer of
// spec.md §4.E: the text format at var/lib/apk/installed, and the shared
// shape used for repository indexes (APK_INDEX.gz).
//
// Grounded on bagit/reader.go and bagit/writer.go's line-scanning and
// tag-emission style, generalized from BagIt's tag-file grammar to the
// field-letter-prefixed package records spec.md §4.E defines.
package fdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ndlib/pkgdb/model"
)

// Field letters. F/M/R/Z are FDB-only (§4.E table); the rest are the
// shared package-info fields also used by repository indexes.
const (
	fieldName        = 'P'
	fieldVersion     = 'V'
	fieldDescription = 'T'
	fieldURL         = 'U'
	fieldLicense     = 'L'
	fieldArch        = 'A'
	fieldInstallSize = 'S'
	fieldArchiveSize = 'I'
	fieldChecksum    = 'C'
	fieldDepend      = 'D'
	fieldDir         = 'F'
	fieldDirMeta     = 'M'
	fieldFile        = 'R'
	fieldFileSum     = 'Z'
)

// InstalledRepo is the repo value passed to Load when reading the
// installed database rather than a repository index (§4.E).
const InstalledRepo = -1

// Loader is what Reader needs from the database façade to rebuild the
// ownership graph while parsing: directory interning, file/owner
// attachment, and checksum-keyed package registration (§4.E "rebuilds
// the full ownership graph on load").
type Loader interface {
	// Dir interns and returns the directory at path, without touching
	// disk (the directories named here are assumed to already exist
	// when loading the installed database, or are merely noted when
	// loading a repository index).
	Dir(path string) *model.Directory

	// SetOwner attaches a File named filename inside dir to pkg,
	// without creating anything on disk, and returns it.
	SetOwner(dir *model.Directory, filename string, pkg *model.Package) *model.File

	// AddPkg registers pkg by content checksum. If an equivalent
	// package is already registered, its repos bitmask is OR'd with
	// pkg.Repos and the preexisting instance is returned with
	// duplicate=true; otherwise pkg itself is registered and returned
	// with duplicate=false (§4.E "db.add_pkg").
	AddPkg(pkg *model.Package) (canonical *model.Package, duplicate bool)
}

// ParseError reports a fatal FDB grammar violation (§7 Kind: ParseError).
type ParseError struct {
	Line string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fdb: %s (line %q)", e.Msg, e.Line)
}

func parseErr(line, msg string) error { return &ParseError{Line: line, Msg: msg} }

// parseState is the per-stream state machine of §4.E: "between records
// {package=nil, dir=nil, file=nil}".
type parseState struct {
	loader Loader
	repo   int

	pkg *model.Package
	dir *model.Directory
	fil *model.File
}

func parseChecksum(s string) (model.Checksum, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return model.Checksum{}, parseErr(s, "malformed checksum field")
	}
	algo := model.ParseHashAlgo(parts[0])
	if algo == model.AlgoNone {
		return model.Checksum{}, parseErr(s, "unknown checksum algorithm")
	}
	digest, err := hexDecode(parts[1])
	if err != nil {
		return model.Checksum{}, parseErr(s, "invalid checksum hex")
	}
	return model.Checksum{Algo: algo, Digest: digest}, nil
}

func (st *parseState) ensurePkg() {
	if st.pkg == nil {
		st.pkg = &model.Package{}
		st.dir = nil
		st.fil = nil
	}
}

// field processes one already-split "letter:value" pair.
func (st *parseState) field(letter byte, value string) error {
	// a field line starts a new package record when none is in progress
	// (§4.E "Any letter line before a package exists begins a new
	// package").
	st.ensurePkg()

	switch letter {
	case fieldName:
		st.pkg.Name = &model.Name{Name: value}
	case fieldVersion:
		st.pkg.Version = value
	case fieldDescription:
		st.pkg.Description = value
	case fieldURL:
		st.pkg.URL = value
	case fieldLicense:
		st.pkg.License = value
	case fieldArch:
		st.pkg.Arch = value
	case fieldInstallSize:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return parseErr(value, "invalid install size")
		}
		st.pkg.InstallSize = n
	case fieldArchiveSize:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return parseErr(value, "invalid archive size")
		}
		st.pkg.ArchiveSize = n
	case fieldChecksum:
		sum, err := parseChecksum(value)
		if err != nil {
			return err
		}
		st.pkg.Checksum = sum
	case fieldDepend:
		for _, tok := range strings.Fields(value) {
			st.pkg.Depends = append(st.pkg.Depends, splitDependency(tok))
		}
	case fieldDir:
		if st.pkg.Name == nil {
			return parseErr(value, "FDB directory entry before package entry")
		}
		st.dir = st.loader.Dir(value)
		st.fil = nil
	case fieldDirMeta:
		if st.dir == nil {
			return parseErr(value, "FDB directory metadata entry before directory entry")
		}
		uid, gid, mode, err := parseMeta(value)
		if err != nil {
			return err
		}
		st.dir.UID, st.dir.GID, st.dir.Mode = uid, gid, mode
	case fieldFile:
		if st.dir == nil {
			return parseErr(value, "FDB file entry before directory entry")
		}
		st.fil = st.loader.SetOwner(st.dir, value, st.pkg)
	case fieldFileSum:
		if st.fil == nil {
			return parseErr(value, "FDB checksum entry before file entry")
		}
		sum, err := parseChecksum(value)
		if err != nil {
			return err
		}
		st.fil.Checksum = sum
	default:
		// unknown letters are always fatal (§4.E: "tolerated as a
		// no-op is NOT permitted").
		return parseErr(string(letter), "unsupported FDB entry '"+string(letter)+"'")
	}
	return nil
}

// finish closes out the in-progress package record at a record
// terminator (a blank, or non-field, line).
func (st *parseState) finish() error {
	if st.pkg == nil {
		return nil
	}
	pkg := st.pkg
	if st.repo != InstalledRepo {
		pkg.AddRepo(st.repo)
	} else {
		pkg.State = model.StateInstall
	}
	canonical, duplicate := st.loader.AddPkg(pkg)
	if duplicate && st.repo == InstalledRepo {
		return parseErr(pkg.NameString(), "Installed database load failed")
	}
	_ = canonical
	st.pkg = nil
	st.dir = nil
	st.fil = nil
	return nil
}

func parseMeta(value string) (uid, gid, mode uint32, err error) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 {
		return 0, 0, 0, parseErr(value, "malformed directory metadata")
	}
	u, err1 := strconv.ParseUint(parts[0], 10, 32)
	g, err2 := strconv.ParseUint(parts[1], 10, 32)
	m, err3 := strconv.ParseUint(parts[2], 8, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, parseErr(value, "malformed directory metadata")
	}
	return uint32(u), uint32(g), uint32(m), nil
}

func splitDependency(tok string) model.Dependency {
	for i, c := range tok {
		switch c {
		case '=', '>', '<', '~':
			return model.Dependency{Name: tok[:i], Constraint: tok[i:]}
		}
	}
	return model.Dependency{Name: tok}
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid hex digit")
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
