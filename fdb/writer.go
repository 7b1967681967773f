package fdb

import (
	"fmt"
	"io"
	"strings"

	"github.com/ndlib/pkgdb/ilist"
	"github.com/ndlib/pkgdb/model"
)

// Writer serializes packages back to the FDB text format (§4.E).
type Writer struct{}

// NewWriter returns a ready-to-use Writer.
func NewWriter() *Writer { return &Writer{} }

// Write emits packages, in the given order, to out. Each record ends with
// a blank line; files with a nil owner are skipped (they are mid-purge).
func (w *Writer) Write(out io.Writer, packages []*model.Package) error {
	bw := &errWriter{w: out}
	for _, pkg := range packages {
		w.writePackage(bw, pkg)
		bw.writeByte('\n')
	}
	return bw.err
}

func (w *Writer) writePackage(bw *errWriter, pkg *model.Package) {
	if pkg.Name != nil {
		bw.writef("%c:%s\n", fieldName, pkg.Name.Name)
	}
	bw.writef("%c:%s\n", fieldVersion, pkg.Version)
	if pkg.Description != "" {
		bw.writef("%c:%s\n", fieldDescription, pkg.Description)
	}
	if pkg.URL != "" {
		bw.writef("%c:%s\n", fieldURL, pkg.URL)
	}
	if pkg.License != "" {
		bw.writef("%c:%s\n", fieldLicense, pkg.License)
	}
	if pkg.Arch != "" {
		bw.writef("%c:%s\n", fieldArch, pkg.Arch)
	}
	bw.writef("%c:%d\n", fieldInstallSize, pkg.InstallSize)
	bw.writef("%c:%d\n", fieldArchiveSize, pkg.ArchiveSize)
	if pkg.Checksum.Valid() {
		bw.writef("%c:%s\n", fieldChecksum, formatChecksum(pkg.Checksum))
	}
	if len(pkg.Depends) > 0 {
		toks := make([]string, len(pkg.Depends))
		for i, d := range pkg.Depends {
			toks[i] = d.Name + d.Constraint
		}
		bw.writef("%c:%s\n", fieldDepend, strings.Join(toks, " "))
	}

	var lastDir *model.Directory
	pkg.Files.Each(func(_ ilist.Handle, f *model.File) {
		if f.Owner == nil {
			return
		}
		if f.Dir != lastDir {
			lastDir = f.Dir
			bw.writef("%c:%s\n", fieldDir, f.Dir.Dirname)
			bw.writef("%c:%d:%d:%o\n", fieldDirMeta, f.Dir.UID, f.Dir.GID, f.Dir.Mode&07777)
		}
		bw.writef("%c:%s\n", fieldFile, f.Filename)
		if f.Checksum.Valid() {
			bw.writef("%c:%s\n", fieldFileSum, formatChecksum(f.Checksum))
		}
	})
}

func formatChecksum(c model.Checksum) string {
	return c.Algo.String() + ":" + hexEncode(c.Digest)
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[2*i] = digits[c>>4]
		out[2*i+1] = digits[c&0xf]
	}
	return string(out)
}

// errWriter lets writePackage ignore individual write errors and check
// once at the end, matching the teacher's countWriter style of a thin
// io.Writer wrapper (bagit/writer.go).
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) writef(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) writeByte(b byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write([]byte{b})
}
