package archive

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/model"
)

// COWOpener wraps an install.StreamOpener with a local copy-on-write
// overlay directory: a hit under Dir is served without touching the
// remote opener, a miss is read in full through Next and then persisted
// into Dir, becoming authoritative for later calls. Grounded on
// store/cow.go's "local store first, remote on miss, writes always local"
// layering. Neither cmd/pkgdb nor cmd/pkgutil constructs one.
type COWOpener struct {
	Dir  string
	Next interface {
		Open(ctx context.Context, pkg *model.Package, repoURL string) (io.ReadCloser, error)
	}
}

func (c *COWOpener) overlayPath(pkg *model.Package) string {
	return filepath.Join(c.Dir, pkg.NameString()+"-"+pkg.Version+".apk")
}

// Open implements install.StreamOpener.
func (c *COWOpener) Open(ctx context.Context, pkg *model.Package, repoURL string) (io.ReadCloser, error) {
	path := c.overlayPath(pkg)
	if f, err := os.Open(path); err == nil {
		return f, nil
	}

	upstream, err := c.Next.Open(ctx, pkg, repoURL)
	if err != nil {
		return nil, err
	}
	defer upstream.Close()

	data, err := io.ReadAll(upstream)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "reading upstream stream for "+pkg.NameString())
	}
	if err := os.MkdirAll(c.Dir, 0755); err == nil {
		os.WriteFile(path, data, 0644)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
