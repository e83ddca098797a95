package envs

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// CountFiles walks dir recursively and counts regular files. Symlinks below dir
// are neither followed nor counted. Subtrees that cannot be read because of
// permissions, or that disappear during the walk, contribute zero. An error is
// returned only when dir itself does not exist.
func CountFiles(dir string) (int, error) {
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return 0, err
	}

	count := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return err
		}
		if d.Type().IsRegular() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
