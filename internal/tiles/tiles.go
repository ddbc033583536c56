// Package tiles resolves a user-supplied path into the ordered point-cloud
// tile set a run will process.
package tiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoInput reports that the input path yielded no point-cloud tiles.
var ErrNoInput = errors.New("no LAS/LAZ tiles found")

// extensions in collection order: all .laz tiles precede all .las tiles,
// each group sorted lexicographically, so tile order is stable across runs.
var extensions = []string{".laz", ".las"}

// Collect resolves path into a tile list. A single file is returned as-is;
// a directory is scanned recursively for recognized extensions. Returns
// ErrNoInput when a directory scan matches nothing.
func Collect(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	groups := make(map[string][]string, len(extensions))
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		for _, want := range extensions {
			if ext == want {
				groups[want] = append(groups[want], p)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	var files []string
	for _, ext := range extensions {
		g := groups[ext]
		sort.Strings(g)
		files = append(files, g...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInput, path)
	}
	return files, nil
}
