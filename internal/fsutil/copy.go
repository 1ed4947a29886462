package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/lambda-packager/internal/config"
)

// CopyTree recursively mirrors src into dst, creating dst when absent.
// Symlinks are followed: a link to a directory is copied as that directory.
// An empty src is a no-op so callers can pass an unset common directory.
func CopyTree(src, dst string) error {
	if src == "" {
		return nil
	}

	if err := EnsureDir(dst); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", src, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		info, statErr := os.Stat(srcPath)
		if statErr != nil {
			return fmt.Errorf("stat %s: %w", srcPath, statErr)
		}

		if info.IsDir() {
			if err = CopyTree(srcPath, dstPath); err != nil {
				return err
			}

			continue
		}

		if err = CopyFile(srcPath, dstPath); err != nil {
			return err
		}
	}

	return nil
}

// CopyFile copies src to dst byte for byte, truncating any existing dst.
// The source permission bits are kept for newly created files.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, closeErr)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	return nil
}

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	return nil
}

// RecreateDir removes dir with everything below it and creates it empty.
func RecreateDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove directory %s: %w", dir, err)
	}

	return EnsureDir(dir)
}
