package pkgdb

import (
	"context"

	"github.com/ndlib/pkgdb/install"
	"github.com/ndlib/pkgdb/model"
	"github.com/ndlib/pkgdb/scriptstore"
)

// engine lazily builds the install.Engine wired against this database:
// the façade's own Registry implementation, the stock archive opener,
// and scriptstore.ExecRunner (§4.G).
func (db *Database) engine() *install.Engine {
	return &install.Engine{
		Registry: db,
		Opener:   db.opener,
		Runner:   scriptstore.ExecRunner{},
		Hasher:   db.hasher,
	}
}

// InstallPkg implements §6's install_pkg(old?, new?) handler: exactly one
// of old, newPkg may be nil for a pure removal or pure install; both
// present is an upgrade. The repository URL used to resolve a stream
// falls back to the first configured repository, per §4.G step 4
// "repo[0].url".
func (db *Database) InstallPkg(ctx context.Context, old, newPkg *model.Package) error {
	repoURL := ""
	if len(db.repos) > 0 {
		repoURL = db.repos[0].URL
	}

	eng := db.engine()
	err := eng.Install(ctx, old, newPkg, repoURL)

	if err != nil {
		db.Log.Errorf(err, "[%s] install failed for %s", eng.LastID, pkgLogName(old, newPkg))
		return err
	}

	if eng.LastChecksumMismatch {
		db.Log.Printf("[%s] warning: checksum mismatch for %s", eng.LastID, pkgLogName(old, newPkg))
	}

	db.Log.Printf("[%s] installed %s", eng.LastID, pkgLogName(old, newPkg))
	db.Log.Dot()
	db.bumpStats()
	return nil
}

func pkgLogName(old, newPkg *model.Package) string {
	switch {
	case newPkg != nil:
		return newPkg.NameString() + "-" + newPkg.Version
	case old != nil:
		return old.NameString() + "-" + old.Version
	default:
		return "?"
	}
}
