package driver

import (
	"crypto/sha1"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ignoredDirs is the fixed ignore set walked past during change detection
// and source copies (§4.5): these hold build output or package-manager
// state, never the source itself.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	"_build":       true,
	"_install":     true,
	"_esy":         true,
}

// sourceChecksum computes the source mtime checksum (§4.5 "Change
// detection for non-persisted builds"): the mtime of every non-directory
// entry under root (symlinks are not followed), outside ignoredDirs, collected as a string, sorted by path, fed
// into SHA-1 in that order.
func sourceChecksum(root string) (string, error) {
	var mtimes []pathMtime
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mtimes = append(mtimes, pathMtime{path: path, mtime: info.ModTime().String()})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(mtimes, func(i, j int) bool { return mtimes[i].path < mtimes[j].path })

	h := sha1.New()
	for _, pm := range mtimes {
		h.Write([]byte(pm.mtime))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type pathMtime struct {
	path  string
	mtime string
}

const checksumFile = "checksum"

func readStoredChecksum(buildPath string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(buildPath, "_esy", checksumFile))
	if err != nil {
		return "", false
	}
	return string(b), true
}

func writeStoredChecksum(buildPath, sum string) error {
	return os.WriteFile(filepath.Join(buildPath, "_esy", checksumFile), []byte(sum), 0o644)
}
