package fdb

import (
	"bufio"
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// Reader parses the FDB text format from an io.Reader (§4.E).
type Reader struct {
	loader Loader
}

// NewReader returns a Reader that rebuilds the ownership graph through
// loader as it parses.
func NewReader(loader Loader) *Reader {
	return &Reader{loader: loader}
}

// Load parses stream as either the installed database (repo ==
// InstalledRepo) or one repository's index (repo == that repository's
// slot), per §4.E.
func (r *Reader) Load(stream io.Reader, repo int) error {
	st := &parseState{loader: r.loader, repo: repo}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 || line[1] != ':' {
			if err := st.finish(); err != nil {
				return err
			}
			continue
		}
		if err := st.field(line[0], line[2:]); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	// a stream that doesn't end in a blank line still needs its last
	// record finalized.
	return st.finish()
}

// LoadFile memory-maps path (typically var/lib/apk/installed, which can
// grow large on a fully-populated system) and parses it as the installed
// database. Mapping avoids buffering the whole file just to scan it line
// by line.
func (r *Reader) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // a fresh root has no installed database yet
		}
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		return nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return err
	}
	defer m.Unmap()

	return r.Load(byteReader(m), InstalledRepo)
}

type byteReaderT struct {
	b   []byte
	off int
}

func byteReader(b []byte) io.Reader { return &byteReaderT{b: b} }

func (r *byteReaderT) Read(p []byte) (int, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += n
	return n, nil
}
