// Package dirtable implements the directory table of spec.md §4.D: it
// interns directory paths, resolves parents lazily, maintains reference
// counts, applies protected-path rules, and creates/removes directories on
// disk at refcount edges.
//
// Grounded on store/file_store.go's path handling, generalized from a
// flat key-value store to a real directory tree, and on
// golang.org/x/sys/unix for the *at-family syscalls Design Notes §9 asks
// for in place of a process-wide chdir.
package dirtable

import (
	"errors"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ndlib/pkgdb/model"
)

// Table interns every Directory reachable from a single root file
// descriptor. It is not safe for concurrent use (§5: the engine is
// single-threaded).
type Table struct {
	rootFd int
	dirs   map[string]*model.Directory
	rules  []protectRule // ordered protected-path rules, §3/§4.D

	// Count is bumped/decremented as directories gain/lose their first
	// and last reference, mirroring installed.stats.dirs (§3 invariant 4).
	Count int
}

type protectRule struct {
	path   string
	negate bool // true for a "-"-prefixed rule
}

// New returns a Table rooted at rootFd, an already-open directory file
// descriptor (the façade owns opening and closing it).
func New(rootFd int) *Table {
	return &Table{rootFd: rootFd, dirs: make(map[string]*model.Directory)}
}

// SetProtectedRules replaces the ordered protected-path rule list. Rules
// are applied in order to every directory at intern time and whenever this
// list changes for already-interned directories; a later rule's exact
// match wins over an earlier one (§3, §8 invariant 8).
func (t *Table) SetProtectedRules(rules []string) {
	t.rules = t.rules[:0]
	for _, r := range rules {
		if strings.HasPrefix(r, "-") {
			t.rules = append(t.rules, protectRule{path: strings.TrimPrefix(r, "-"), negate: true})
		} else {
			t.rules = append(t.rules, protectRule{path: r, negate: false})
		}
	}
	for _, d := range t.dirs {
		t.applyProtection(d)
	}
}

func (t *Table) applyProtection(d *model.Directory) {
	for _, r := range t.rules {
		if r.path == d.Dirname {
			d.SetProtected(!r.negate)
		}
	}
}

func stripTrailingSlash(path string) string {
	return strings.TrimSuffix(path, "/")
}

func splitParent(path string) (parent, base string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// Get interns path (stripping one trailing slash) and returns its
// Directory, creating it and its ancestors lazily if this is the first
// reference (§4.D "get(path)").
func (t *Table) Get(path string) *model.Directory {
	path = stripTrailingSlash(path)
	if d, ok := t.dirs[path]; ok {
		return d
	}
	parentPath, _ := splitParent(path)
	d := &model.Directory{Dirname: path}
	if path != "" {
		d.Parent = t.Get(parentPath)
		d.Flags = d.Parent.Flags
	}
	t.applyProtection(d)
	t.dirs[path] = d
	return d
}

// Lookup returns an already-interned directory without creating it.
func (t *Table) Lookup(path string) (*model.Directory, bool) {
	d, ok := t.dirs[stripTrailingSlash(path)]
	return d, ok
}

// Each calls fn once per interned directory.
func (t *Table) Each(fn func(*model.Directory)) {
	for _, d := range t.dirs {
		fn(d)
	}
}

// Ref increments d's reference count, per §4.D "ref(dir, create_on_disk)":
// a 0→1 transition recursively refs the parent first and, if
// createOnDisk and d.Mode != 0, creates the directory on disk.
func (t *Table) Ref(d *model.Directory, createOnDisk bool) error {
	if d == nil {
		return nil
	}
	if d.Refs == 0 {
		if d.Parent != nil {
			if err := t.Ref(d.Parent, createOnDisk); err != nil {
				return err
			}
		}
		t.Count++
		if createOnDisk && d.Mode != 0 {
			if err := t.mkdirOnDisk(d); err != nil {
				return err
			}
		}
	}
	d.Refs++
	return nil
}

// Unref decrements d's reference count, per §4.D "unref(dir)": a 1→0
// transition best-effort removes the directory on disk (ignoring failure,
// e.g. non-empty) and unrefs the parent.
func (t *Table) Unref(d *model.Directory) {
	if d == nil || d.Refs == 0 {
		return
	}
	d.Refs--
	if d.Refs == 0 {
		t.Count--
		t.rmdirOnDisk(d) // best-effort; directories may not be empty
		if d.Parent != nil {
			t.Unref(d.Parent)
		}
	}
}

func (t *Table) mkdirOnDisk(d *model.Directory) error {
	if d.Dirname == "" {
		return nil // root always exists
	}
	err := unix.Mkdirat(t.rootFd, d.Dirname, d.Mode&07777)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return nil // creation failures are silently ignored, §4.D
	}
	// best-effort chown; directories may already exist under a different
	// owner and that is not fatal either.
	_ = unix.Fchownat(t.rootFd, d.Dirname, int(d.UID), int(d.GID), unix.AT_SYMLINK_NOFOLLOW)
	return nil
}

func (t *Table) rmdirOnDisk(d *model.Directory) {
	if d.Dirname == "" {
		return
	}
	_ = unix.Unlinkat(t.rootFd, d.Dirname, unix.AT_REMOVEDIR)
}
