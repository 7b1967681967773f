package pkgdb

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/fdb"
	"github.com/ndlib/pkgdb/scriptstore"
)

// Config is the optional etc/apk/pkgdb.toml document (SPEC_FULL.md
// "Configuration": "reads an optional etc/apk/pkgdb.toml for the quiet
// flag default, the repository override, and rate limits"), repurposed
// from bendo's server config (BurntSushi/toml) to pkgdb's root config.
type Config struct {
	Quiet          bool   `toml:"quiet"`
	RepoOverride   string `toml:"repo_override"`
	FetchRateLimit int    `toml:"fetch_rate_limit"` // requests/sec; parsed only, no opener applies it
}

// LoadConfig reads root/etc/apk/pkgdb.toml, returning the zero Config if
// the file does not exist.
func LoadConfig(root string) (Config, error) {
	var c Config
	path := root + "/etc/apk/pkgdb.toml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, errs.Wrap(errs.KindParse, err, "parsing "+path)
	}
	return c, nil
}

// Options adapts a Config into the Open options it corresponds to.
func (c Config) Options() []Option {
	var opts []Option
	opts = append(opts, WithQuiet(c.Quiet))
	if c.RepoOverride != "" {
		opts = append(opts, WithRepoOverride(c.RepoOverride))
	}
	return opts
}

// WriteConfig implements §4.H's write_config(): serialize world, the FDB,
// and the script store to their canonical paths at mode 0600.
func (db *Database) WriteConfig() error {
	if err := db.writeWorld(); err != nil {
		return err
	}

	installedPath := db.rootPath + "/var/lib/apk/installed"
	if err := writeAtomic(installedPath, func(f *os.File) error {
		return fdb.NewWriter().Write(f, db.installed)
	}); err != nil {
		return errs.Wrap(errs.KindIO, err, "writing "+installedPath)
	}

	scriptsPath := db.rootPath + "/var/lib/apk/scripts"
	if err := writeAtomic(scriptsPath, func(f *os.File) error {
		return scriptstore.Write(f, db.installed)
	}); err != nil {
		return errs.Wrap(errs.KindIO, err, "writing "+scriptsPath)
	}

	return nil
}

// writeAtomic writes to path via a sibling temp file, renamed into place
// once write completes, so a crash mid-write never leaves a truncated
// FDB or script store behind (§5: "the FDB is not rewritten until
// close" — this keeps that one rewrite itself safe).
func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
