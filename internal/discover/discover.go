// Package discover lists style presets and raw images in input folders.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Files returns the regular files directly inside dir whose extension is one
// of exts, sorted by name. Matching is case-sensitive.
func Files(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	accepted := make(map[string]bool, len(exts))
	for _, e := range exts {
		accepted[e] = true
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !accepted[filepath.Ext(entry.Name())] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(files)

	return files, nil
}
