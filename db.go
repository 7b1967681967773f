package pkgdb

import (
	"os"

	"github.com/facebookgo/stats"

	"github.com/ndlib/pkgdb/archive"
	"github.com/ndlib/pkgdb/dirtable"
	"github.com/ndlib/pkgdb/hashindex"
	"github.com/ndlib/pkgdb/install"
	"github.com/ndlib/pkgdb/model"
)

// initial capacities for the three hash indices, per §4.H "open(root)":
// "init all three maps with initial capacities (names 1000, packages
// 4000, dirs 1000)".
const (
	initialNamesCap    = 1000
	initialPackagesCap = 4000
	initialDirsCap     = 1000
)

// defaultProtectedRules seeds the ordered protected-path rule list (§4.H
// "open(root)": "seed the protected-path list from the literal
// \"etc:-etc/init.d\"").
var defaultProtectedRules = []string{"etc", "-etc/init.d"}

// Database is the §3 "Database" entity and the §4.H façade combined: it
// owns every Name, Package, Directory, File, and Script reachable from one
// root, and drives the install engine against them.
type Database struct {
	root     *os.File
	rootPath string

	names    *hashindex.Index[string, *model.Name]
	packages *hashindex.Index[string, *model.Package] // keyed by Checksum.Key()
	dirs     *dirtable.Table
	files    *hashindex.Index[string, *model.File] // keyed by dirname+"\x00"+filename, §3 file-uniqueness invariant

	installed []*model.Package // installed.packages, in FDB-writer order
	repos     []model.Repository
	world     []model.Dependency

	filesCount int
	nextPkgID  uint32

	// RepoOverride, if set, is registered at Open time after the
	// repositories listed in etc/apk/repositories (§6).
	RepoOverride string

	Log         *Logger
	StatsClient stats.Client

	opener *archive.Opener
	hasher install.Hasher
}

func newDatabase(rootFd int) *Database {
	return &Database{
		names:    hashindex.New[string, *model.Name](initialNamesCap),
		packages: hashindex.New[string, *model.Package](initialPackagesCap),
		dirs:     dirtable.New(rootFd),
		files:    hashindex.New[string, *model.File](initialDirsCap * 4),
		Log:      NewLogger(),
		hasher:   install.SHA256,
	}
}

// RootDir implements install.Registry / fdb file-path resolution: the
// filesystem path the root was opened from.
func (db *Database) RootDir() string { return db.rootPath }

// RootFd implements install.Registry: the already-open root directory file
// descriptor every *at-family syscall is issued against.
func (db *Database) RootFd() int {
	if db.root == nil {
		return -1
	}
	return int(db.root.Fd())
}

// PackageCount is installed.stats.packages (§3, §8 invariant 3's sibling
// for packages): the length of the installed-packages list.
func (db *Database) PackageCount() int { return len(db.installed) }

// DirCount is installed.stats.dirs (§8 invariant 4): the number of
// directories with a positive reference count.
func (db *Database) DirCount() int { return db.dirs.Count }

// FileCount is installed.stats.files (§8 invariant 3): the number of
// files with a non-nil owner.
func (db *Database) FileCount() int { return db.filesCount }

// Installed returns the installed-packages list in FDB-writer order. The
// caller must not mutate the returned slice.
func (db *Database) Installed() []*model.Package { return db.installed }

// Repositories returns the configured repository list, in slot order.
func (db *Database) Repositories() []model.Repository { return db.repos }

// World returns the user-declared top-level dependency set.
func (db *Database) World() []model.Dependency { return db.world }

// AvailableByName returns the newest registered version of name, or nil
// if no package by that name has been seen from any repository or local
// file (§3 "Name ... holds a list of all Package instances that share
// this name").
func (db *Database) AvailableByName(name string) *model.Package {
	n, ok := db.names.Get(name)
	if !ok {
		return nil
	}
	return n.Newest()
}

func (db *Database) bumpStats() {
	if db.StatsClient == nil {
		return
	}
	db.StatsClient.BumpSum("pkgdb.packages", float64(db.PackageCount()))
	db.StatsClient.BumpSum("pkgdb.dirs", float64(db.DirCount()))
	db.StatsClient.BumpSum("pkgdb.files", float64(db.FileCount()))
}
