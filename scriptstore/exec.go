package scriptstore

import (
	"os"
	"path/filepath"
)

// writeTempScript stages payload as an executable file inside rootDir and
// returns its absolute path. The caller is responsible for removing it.
func writeTempScript(rootDir string, payload []byte) (string, error) {
	f, err := os.CreateTemp(rootDir, ".pkgdb-script-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	if err := os.Chmod(name, 0700); err != nil {
		os.Remove(name)
		return "", err
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		os.Remove(name)
		return "", err
	}
	return abs, nil
}

func removeTempScript(absPath string) {
	os.Remove(absPath)
}
