// Package archive supplies the external stream-opening collaborators
// §1/§4.G leave out of core scope: turning a package's FromFilename or a
// repository URL into a byte stream the install engine can feed to its
// archive iterator.
//
// Grounded on store/file_store.go (local filesystem access), store/s3.go
// (AWS SDK wiring), and store/cow.go (the layered-fallback shape reused
// here for "local file wins, otherwise fetch from the repo").
package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/pkgdb/errs"
	"github.com/ndlib/pkgdb/model"
)

// Opener resolves a package's byte stream per §4.G step 4: prefer
// pkg.FromFilename (a package installed from a local .apk file), falling
// back to repoURL + "/" + name + "-" + version + ".apk" otherwise. The
// scheme of repoURL selects which sub-opener fetches it.
type Opener struct {
	HTTP *HTTPOpener
	S3   *S3Opener
}

// NewOpener builds an Opener with stock HTTP and (if sess is non-nil) S3
// sub-openers wired in.
func NewOpener(sess *session.Session) *Opener {
	o := &Opener{HTTP: NewHTTPOpener(nil)}
	if sess != nil {
		o.S3 = NewS3Opener(sess)
	}
	return o
}

// Open implements install.StreamOpener.
func (o *Opener) Open(ctx context.Context, pkg *model.Package, repoURL string) (io.ReadCloser, error) {
	if pkg.FromFilename != "" {
		f, err := os.Open(pkg.FromFilename)
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, err, "opening local package file "+pkg.FromFilename)
		}
		return f, nil
	}

	target := fmt.Sprintf("%s/%s-%s.apk", strings.TrimSuffix(repoURL, "/"), pkg.NameString(), pkg.Version)
	u, err := url.Parse(target)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "parsing repository url "+target)
	}

	switch u.Scheme {
	case "s3":
		if o.S3 == nil {
			return nil, errs.New(errs.KindIO, "no S3 session configured to fetch "+target)
		}
		return o.S3.Open(ctx, u)
	case "http", "https", "":
		return o.HTTP.Open(ctx, target)
	default:
		return nil, errs.New(errs.KindIO, "unsupported repository scheme in "+target)
	}
}

// HTTPOpener fetches package streams over plain HTTP(S).
type HTTPOpener struct {
	Client *http.Client
}

// NewHTTPOpener wraps client (or http.DefaultClient if nil).
func NewHTTPOpener(client *http.Client) *HTTPOpener {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOpener{Client: client}
}

// Open issues a GET for url and returns the response body as a stream.
func (o *HTTPOpener) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "building request for "+target)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		raven.CaptureError(err, map[string]string{"url": target})
		return nil, errs.Wrap(errs.KindIO, err, "fetching "+target)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errs.New(errs.KindIO, fmt.Sprintf("fetching %s: status %d", target, resp.StatusCode))
	}
	return resp.Body, nil
}

// S3Opener fetches package streams from an S3 bucket, grounded on
// store/s3.go's session handling.
type S3Opener struct {
	svc *s3.S3
}

// NewS3Opener builds an S3Opener using sess's credentials and region.
func NewS3Opener(sess *session.Session) *S3Opener {
	return &S3Opener{svc: s3.New(sess)}
}

// Open fetches the object named by u's path, treating u.Host as the bucket.
func (o *S3Opener) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	out, err := o.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "fetching s3://"+u.Host+u.Path)
	}
	return out.Body, nil
}

// FileOpener serves package streams straight off a local directory tree,
// grounded on store/file_store.go's FileSystem store. Opener does not
// dispatch to it, and nothing else in this module constructs one.
type FileOpener struct {
	Root string
}

// Open opens name under the opener's root.
func (o *FileOpener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(o.Root + "/" + name)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, err, "opening "+name)
	}
	return f, nil
}
