//go:build windows
// +build windows

// Package xos provides cross-platform file operations used to place build
// outputs. On Windows, we use a fallback approach since atomic rename across
// drives is not always possible.
package xos

import (
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes data to the named file.
// On Windows, this uses a temp file + rename approach within the same directory.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tempName, perm); err != nil {
		return err
	}
	if err := replace(tempName, filename); err != nil {
		return err
	}

	success = true
	return nil
}

// ReplaceFile moves src to dst, replacing dst if it already exists.
// Rename fails across volumes on Windows, so in that case the file is
// copied to a temp file beside dst and renamed over it.
func ReplaceFile(src, dst string) error {
	if filepath.VolumeName(src) == filepath.VolumeName(dst) {
		if err := replace(src, dst); err == nil {
			return nil
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tempFile, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	if _, err := io.Copy(tempFile, in); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return err
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return err
	}
	if err := replace(tempName, dst); err != nil {
		os.Remove(tempName)
		return err
	}

	in.Close()
	return os.Remove(src)
}

// replace renames from over to, removing to first.
// On Windows, we need to remove the target first if it exists.
func replace(from, to string) error {
	if _, err := os.Stat(to); err == nil {
		if err := os.Remove(to); err != nil {
			return err
		}
	}
	return os.Rename(from, to)
}
