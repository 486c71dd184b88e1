package driver

import (
	"bytes"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// pathRewriteConcurrency bounds the post-install rewrite's file I/O
// fan-out (§4.5 step 8: "a bounded-concurrency queue (width 20)").
const pathRewriteConcurrency = 20

// rewritePaths walks root, and for every regular file, replaces every
// occurrence of the literal oldPath with newPath in place. oldPath and
// newPath must be the same length — a build path baked into a binary or
// script at build time can only be safely patched post-hoc if doing so
// doesn't change the file's size (§9).
func rewritePaths(root, oldPath, newPath string) error {
	if len(oldPath) != len(newPath) {
		return xerrors.Errorf("rewritePaths: old path %q and new path %q must be equal length", oldPath, newPath)
	}
	oldB, newB := []byte(oldPath), []byte(newPath)

	var eg errgroup.Group
	eg.SetLimit(pathRewriteConcurrency)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		eg.Go(func() error {
			return rewriteFile(path, oldB, newB)
		})
		return nil
	})
	if err != nil {
		return err
	}
	return eg.Wait()
}

func rewriteFile(path string, oldB, newB []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !bytes.Contains(data, oldB) {
		return nil
	}
	rewritten := bytes.ReplaceAll(data, oldB, newB)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, rewritten, info.Mode().Perm())
}
