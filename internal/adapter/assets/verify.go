package assets

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
)

// Report is the asset coverage of a reference set.
type Report struct {
	Resolved map[string]string // code -> relative path
	Missing  []string          // codes with no candidate on disk
	Orphans  []string          // image files no code resolves to
	Scanned  int
}

// Verify checks which codes resolve to an asset under root without touching
// the file system once per candidate.
func Verify(ctx context.Context, root string, codes []string, p Priority, excludes []string) (*Report, error) {
	files, err := NewWalker(nil, excludes).Walk(root)
	if err != nil {
		return nil, err
	}

	// candidate matching is case-sensitive, as on the asset host
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Path] = true
	}

	report := &Report{
		Resolved: make(map[string]string),
		Scanned:  len(files),
	}
	used := make(map[string]bool)
	seen := make(map[string]bool, len(codes))

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true

		found := ""
		if validCode(code) {
			for _, c := range Candidates(code, p) {
				if present[c] {
					found = c
					break
				}
			}
		}
		if found == "" {
			report.Missing = append(report.Missing, code)
			continue
		}
		report.Resolved[code] = found
		used[found] = true
	}

	for _, f := range files {
		if !used[f.Path] && isReferenceImage(f.Path) {
			report.Orphans = append(report.Orphans, f.Path)
		}
	}
	sort.Strings(report.Orphans)
	return report, nil
}

func isReferenceImage(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jpg", ".bmp":
		return true
	}
	return false
}
