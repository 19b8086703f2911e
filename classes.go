package datasplit

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ListClasses returns the sorted subdirectory names of root. Hidden entries
// are skipped; symlinks to directories count as classes.
func ListClasses(root string) ([]string, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigurationError{Field: "raw_root", Reason: "raw data directory not found: " + root}
	}
	if err != nil {
		return nil, &ConfigurationError{Field: "raw_root", Reason: "cannot stat " + root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ConfigurationError{Field: "raw_root", Reason: root + " is not a directory"}
	}

	// os.ReadDir sorts by file name.
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &ConfigurationError{Field: "raw_root", Reason: "cannot list " + root, Err: err}
	}

	var classes []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !isDirEntryDir(root, e) {
			continue
		}
		classes = append(classes, e.Name())
	}

	if len(classes) == 0 {
		return nil, &ConfigurationError{Field: "raw_root", Reason: "no class folders found in " + root}
	}
	return classes, nil
}

func isDirEntryDir(parent string, e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && info.IsDir()
}

func isDirEntryFile(parent string, e fs.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && info.Mode().IsRegular()
}

// HasImageExtension reports whether name ends with one of exts, ignoring case.
// exts must already be lowercase.
func HasImageExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// listImages returns the sorted names of regular files in dir carrying a
// recognised extension. Symlinks to regular files are included; dangling
// links are not. Sorting makes the pre-shuffle order independent of the
// filesystem.
func listImages(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !isDirEntryFile(dir, e) {
			continue
		}
		if !HasImageExtension(e.Name(), exts) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
