// Command pkgutil inspects a pkgdb root without mutating it: dump the
// installed database, verify installed files against disk, or list a
// package's stored scripts. Grounded on cmd/butil/main.go's tabwriter
// report style.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/ndlib/pkgdb"
	"github.com/ndlib/pkgdb/ilist"
	"github.com/ndlib/pkgdb/install"
	"github.com/ndlib/pkgdb/model"
)

var (
	root  = pflag.StringP("root", "r", "/", "installation root")
	usage = `pkgutil [flags] <command> [args]

Commands:
    dump                 print the installed database as a grid
    verify                recompute every installed file's checksum against disk
    scripts <name>        list a package's stored scripts
`
)

func main() {
	pflag.Parse()
	args := pflag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	db, err := pkgdb.Open(*root, pkgdb.WithQuiet(true))
	if err != nil {
		fatal(err)
	}
	// pkgutil is read-only; it never calls db.Close, which would write the
	// config and installed database back out.

	switch args[0] {
	case "dump":
		dump(db)
	case "verify":
		verify(db)
	case "scripts":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: scripts <name>")
			os.Exit(2)
		}
		scripts(db, args[1])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func dump(db *pkgdb.Database) {
	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tFILES\tCHECKSUM")
	for _, pkg := range db.Installed() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", pkg.NameString(), pkg.Version, pkg.Files.Len(), pkg.Checksum.Key())
	}
	w.Flush()
}

func verify(db *pkgdb.Database) {
	checked, mismatches := 0, 0
	for _, pkg := range db.Installed() {
		pkg.Files.Each(func(_ ilist.Handle, f *model.File) {
			if !f.Checksum.Valid() {
				return
			}
			checked++
			path := filepath.Join(db.RootDir(), f.Path())
			data, err := os.Open(path)
			if err != nil {
				mismatches++
				fmt.Printf("%s: %s: %v\n", pkg.NameString(), f.Path(), err)
				return
			}
			defer data.Close()

			got, err := install.ChecksumStream(data, f.Checksum.Algo)
			if err != nil {
				mismatches++
				fmt.Printf("%s: %s: %v\n", pkg.NameString(), f.Path(), err)
				return
			}
			if !got.Equal(f.Checksum) {
				mismatches++
				fmt.Printf("%s: %s: checksum mismatch\n", pkg.NameString(), f.Path())
			}
		})
	}
	fmt.Printf("checked %d files, %d mismatches\n", checked, mismatches)
	if mismatches > 0 {
		os.Exit(1)
	}
}

func scripts(db *pkgdb.Database, name string) {
	pkg := findInstalled(db, name)
	if pkg == nil {
		fatal(fmt.Errorf("%s is not installed", name))
	}
	for _, s := range pkg.Scripts {
		fmt.Printf("%s\t%d bytes\n", s.Kind, s.Size())
	}
}

func findInstalled(db *pkgdb.Database, name string) *model.Package {
	for _, p := range db.Installed() {
		if p.NameString() == name {
			return p
		}
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "pkgutil:", err)
	os.Exit(1)
}
