package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

func Exists(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	} else if os.IsNotExist(err) {
		return false, nil
	} else {
		return false, fmt.Errorf("Failed to determine if %s exists: %w", path, err)
	}
}

func IsEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return len(entries) == 0, nil
}

func IsDir(path string) (bool, error) {
	file, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return file.Mode().IsDir(), nil
}

// CopyFile copies src to dest, keeping the source's permission bits.
func CopyFile(src string, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("Failed to open %s while copying to %s: %w", src, dest, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("Failed to stat %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("Failed to copy %s: is a directory", src)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("Failed to create %s while copying %s: %w", dest, src, err)
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	if err != nil {
		return fmt.Errorf("Failed to copy %s to %s: %w", src, dest, err)
	}
	return out.Close()
}

// ResolvePath expands a leading ~ and makes relative paths relative to root.
func ResolvePath(root, path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) || root == "" {
		return filepath.Clean(expanded), nil
	}
	return filepath.Join(root, expanded), nil
}

// Copier overlays files inside a project directory.
type Copier struct {
	Root string
}

func NewCopier(root string) *Copier {
	return &Copier{Root: root}
}

// Copy copies src to dest, creating dest's parent directories.
func (c *Copier) Copy(src, dest string) error {
	from, err := ResolvePath(c.Root, src)
	if err != nil {
		return err
	}
	to, err := ResolvePath(c.Root, dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("Failed to create directory for %s: %w", to, err)
	}
	return CopyFile(from, to)
}
