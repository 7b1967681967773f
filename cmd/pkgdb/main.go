// Command pkgdb is the CLI front end driving the database façade
// (spec.md §6 "CLI surface"), grounded on cmd/bendo/main.go and
// cmd/butil/main.go's flag-parse-then-dispatch shape, widened to
// pflag's --long-flag surface per SPEC_FULL.md's CLI-flags expansion.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/ndlib/pkgdb"
	"github.com/ndlib/pkgdb/model"
)

var (
	root   = pflag.StringP("root", "r", "/", "installation root")
	repo   = pflag.String("repo", "", "repository URL override, added after etc/apk/repositories")
	quiet  = pflag.BoolP("quiet", "q", false, "suppress non-error log output")
	usage  = `pkgdb [flags] <command> [args]

Commands:
    create                 lay out a fresh root filesystem
    sync                   recalculate and commit against the declared world
    add-repo <url>         register a repository
    install <name>         install the named package's newest available version
    remove <name>          remove an installed package
    add-file <path>        register a local .apk file as an available package
    add-world <name>       add name to the declared world
    del-world <name>       remove name from the declared world
`
)

func main() {
	pflag.Parse()
	args := pflag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, rest := args[0], args[1:]

	if cmd == "create" {
		if err := pkgdb.Create(*root); err != nil {
			fatal(err)
		}
		return
	}

	opts := []pkgdb.Option{pkgdb.WithQuiet(*quiet)}
	if *repo != "" {
		opts = append(opts, pkgdb.WithRepoOverride(*repo))
	}
	db, err := pkgdb.Open(*root, opts...)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	ctx := context.Background()

	switch cmd {
	case "sync":
		if err := db.RecalculateAndCommit(ctx, naiveSolver{}); err != nil {
			fatal(err)
		}
	case "add-repo":
		requireArgs(rest, 1, "add-repo <url>")
		if err := db.AddRepository(ctx, rest[0]); err != nil {
			fatal(err)
		}
	case "install":
		requireArgs(rest, 1, "install <name>")
		pkg := db.AvailableByName(rest[0])
		if pkg == nil {
			fatal(fmt.Errorf("no available package named %s", rest[0]))
		}
		if err := db.InstallPkg(ctx, nil, pkg); err != nil {
			fatal(err)
		}
	case "remove":
		requireArgs(rest, 1, "remove <name>")
		pkg := findInstalled(db, rest[0])
		if pkg == nil {
			fatal(fmt.Errorf("%s is not installed", rest[0]))
		}
		if err := db.InstallPkg(ctx, pkg, nil); err != nil {
			fatal(err)
		}
	case "add-file":
		requireArgs(rest, 1, "add-file <path>")
		if _, err := db.PkgAddFile(rest[0]); err != nil {
			fatal(err)
		}
	case "add-world":
		requireArgs(rest, 1, "add-world <name>")
		db.AddWorld(model.Dependency{Name: rest[0]})
	case "del-world":
		requireArgs(rest, 1, "del-world <name>")
		db.DelWorld(rest[0])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func requireArgs(args []string, n int, use string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "usage:", use)
		os.Exit(2)
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
	fmt.Fprintln(os.Stderr, "pkgdb:", err)
	os.Exit(1)
}
