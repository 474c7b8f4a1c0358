package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// DeclarationExts are the extensions of declaration files.
var DeclarationExts = []string{".yaml", ".yml", ".json"}

// FindDeclarationFiles recursively finds all declaration files in dir, in
// lexical order
func FindDeclarationFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip directories
		if d.IsDir() {
			return nil
		}

		if slices.Contains(DeclarationExts, filepath.Ext(path)) {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// ExpandPaths replaces each directory in paths with the declaration files
// below it. Files are kept as given, whatever their extension.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}

		found, err := FindDeclarationFiles(path)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no declaration files in %s", path)
		}
		out = append(out, found...)
	}
	return out, nil
}
