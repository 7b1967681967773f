package pkgdb

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/facebookgo/clock"
	"github.com/facebookgo/stats"

	"github.com/ndlib/pkgdb/archive"
	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/fdb"
	"github.com/ndlib/pkgdb/scriptstore"
)

// Option configures a Database at Open time.
type Option func(*Database)

// WithRepoOverride injects an additional repository URL at open time (§6),
// registered after the repositories listed in etc/apk/repositories.
func WithRepoOverride(url string) Option {
	return func(db *Database) { db.RepoOverride = url }
}

// WithQuiet sets the façade logger's quiet flag (§6 "the quiet flag
// suppresses non-error logs").
func WithQuiet(quiet bool) Option {
	return func(db *Database) { db.Log.Quiet = quiet }
}

// WithClock overrides the logger's clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(db *Database) { db.Log.Clock = c }
}

// WithStatsClient wires a facebookgo/stats client that InstallPkg and
// RecalculateAndCommit bump with the current package/dir/file counts.
func WithStatsClient(c stats.Client) Option {
	return func(db *Database) { db.StatsClient = c }
}

// WithS3Session wires an AWS session so s3:// repository/archive URLs can
// be resolved.
func WithS3Session(sess *session.Session) Option {
	return func(db *Database) { db.opener.S3 = archive.NewS3Opener(sess) }
}

// WithHTTPClient overrides the http.Client used to fetch http(s):// URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(db *Database) { db.opener.HTTP = archive.NewHTTPOpener(c) }
}

// Open implements §4.H's open(root): clears state, initializes the three
// hash indices and the directory table, opens root as a directory file
// descriptor, seeds the protected-path list, reads world/installed/
// scripts, registers configured repositories, and applies any repository
// override.
func Open(root string, opts ...Option) (*Database, error) {
	f, err := os.Open(root)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "opening root "+root)
	}
	fi, err := f.Stat()
	if err != nil || !fi.IsDir() {
		f.Close()
		return nil, errs.New(errs.KindIO, root+" is not a directory")
	}

	db := newDatabase(int(f.Fd()))
	db.root = f
	db.rootPath = root
	db.opener = archive.NewOpener(nil)
	db.dirs.SetProtectedRules(defaultProtectedRules)
	// the root directory holds one standing reference for the database's
	// lifetime, so it stays counted in DirCount once every package is removed.
	db.dirs.Ref(db.dirs.Get(""), false)

	for _, opt := range opts {
		opt(db)
	}

	if err := db.readWorld(); err != nil {
		f.Close()
		return nil, err
	}

	if err := fdb.NewReader(db).LoadFile(root + "/var/lib/apk/installed"); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindParse, err, "loading installed database")
	}

	if err := db.readScripts(); err != nil {
		f.Close()
		return nil, err
	}

	if err := db.readConfiguredRepositories(context.Background()); err != nil {
		f.Close()
		return nil, err
	}

	if db.RepoOverride != "" {
		if err := db.AddRepository(context.Background(), db.RepoOverride); err != nil {
			f.Close()
			return nil, err
		}
	}

	return db, nil
}

func (db *Database) readScripts() error {
	path := db.rootPath + "/var/lib/apk/scripts"
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.KindIO, err, "opening var/lib/apk/scripts")
	}
	defer f.Close()
	if err := scriptstore.Read(f, db); err != nil {
		return errs.Wrap(errs.KindIO, err, "loading var/lib/apk/scripts")
	}
	return nil
}

func (db *Database) readConfiguredRepositories(ctx context.Context) error {
	path := db.rootPath + "/etc/apk/repositories"
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.KindIO, err, "opening etc/apk/repositories")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := db.AddRepository(ctx, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Close implements §4.H's close(): rewrites world/FDB/scripts, then
// frees the three maps and closes the root descriptor. Frees cascade
// through the Go garbage collector rather than explicit destructors; the
// only real work left is flushing state and releasing the fd.
func (db *Database) Close() error {
	werr := db.WriteConfig()
	if db.root != nil {
		if cerr := db.root.Close(); cerr != nil && werr == nil {
			werr = errs.Wrap(errs.KindIO, cerr, "closing root")
		}
	}
	db.names.FreeAll(nil)
	db.packages.FreeAll(nil)
	db.files.FreeAll(nil)
	return werr
}
