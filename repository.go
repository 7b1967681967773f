package pkgdb

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/fdb"
	"github.com/ndlib/pkgdb/model"
)

// AddRepository implements §4.H's add_repository(url): open
// <url>/APK_INDEX.gz and feed it to the FDB reader tagged with the newly
// assigned slot. Resolves Open Question 3: slots are checked *before*
// being assigned, never incremented-then-checked.
func (db *Database) AddRepository(ctx context.Context, repoURL string) error {
	if len(db.repos) >= model.MaxRepos {
		return errs.New(errs.KindResourceLimit, "repository slots exhausted, cannot add "+repoURL)
	}
	slot := len(db.repos)

	stream, err := db.openRepoIndex(ctx, repoURL)
	if err != nil {
		return err
	}
	defer stream.Close()

	gz, err := gzip.NewReader(stream)
	if err != nil {
		return errs.Wrap(errs.KindIO, err, "opening gzip stream for "+repoURL)
	}
	defer gz.Close()

	if err := fdb.NewReader(db).Load(gz, slot); err != nil {
		return errs.Wrap(errs.KindParse, err, "loading repository index "+repoURL)
	}

	db.repos = append(db.repos, model.Repository{URL: repoURL, Slot: slot})
	return nil
}

// openRepoIndex fetches <repoURL>/APK_INDEX.gz, sending s3 and http(s)
// URLs to the same sub-openers archive.Opener uses for package archives
// and opening any other URL as a local file path; this is the façade's half of the §1 external "load_repo_index(url,
// repo_slot)" collaborator, the network fetch proper belongs to archive.
func (db *Database) openRepoIndex(ctx context.Context, repoURL string) (io.ReadCloser, error) {
	target := strings.TrimSuffix(repoURL, "/") + "/APK_INDEX.gz"
	u, err := url.Parse(target)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "parsing repository url "+target)
	}
	switch u.Scheme {
	case "s3":
		if db.opener == nil || db.opener.S3 == nil {
			return nil, errs.New(errs.KindIO, "no S3 session configured to fetch "+target)
		}
		return db.opener.S3.Open(ctx, u)
	case "http", "https":
		if db.opener == nil {
			return nil, errs.New(errs.KindIO, "no opener configured to fetch "+target)
		}
		return db.opener.HTTP.Open(ctx, target)
	default:
		f, err := os.Open(target)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, err, "opening local repository index "+target)
		}
		return f, nil
	}
}
