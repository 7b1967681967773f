package pkgdb

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/ndlib/pkgdb/errs"
)

// worldSeed is the baseline dependency list a freshly created root's
// var/lib/apk/world is seeded with (§4.H "create(root): ... seed
// var/lib/apk/world with the baseline dependency list"), grounded on
// original_source/src/database.c's apk_db_create seeding
// "busybox, alpine-baselayout, apk-tools, alpine-conf".
const worldSeed = "busybox base-layout pkgdb-tools"

// Create lays out a fresh root filesystem at root: tmp (1777), dev (0755)
// with a dev/null character device, var/lib/apk (0755), and a seeded world
// file (§4.H).
func Create(root string) error {
	dirs := []struct {
		path string
		mode os.FileMode
	}{
		{"tmp", 01777},
		{"dev", 0755},
		{"var", 0755},
		{"var/lib", 0755},
		{"var/lib/apk", 0755},
	}
	for _, d := range dirs {
		full := filepath.Join(root, d.path)
		if err := os.MkdirAll(full, d.mode); err != nil {
			return errs.Wrap(errs.KindIO, err, "creating "+full)
		}
		if err := os.Chmod(full, d.mode); err != nil {
			return errs.Wrap(errs.KindIO, err, "setting mode on "+full)
		}
	}

	devNull := filepath.Join(root, "dev/null")
	if err := unix.Mknod(devNull, unix.S_IFCHR|0666, int(unix.Mkdev(1, 3))); err != nil && !errors.Is(err, unix.EEXIST) {
		return errs.Wrap(errs.KindIO, err, "creating "+devNull)
	}

	worldPath := filepath.Join(root, "var/lib/apk/world")
	if err := os.WriteFile(worldPath, []byte(worldSeed+"\n"), 0600); err != nil {
		return errs.Wrap(errs.KindIO, err, "writing "+worldPath)
	}
	return nil
}
