// Package naming parses render filenames into image-sequence components and
// summarizes a batch by sequence: frame range, gaps, and duplicate frames.
package naming

import (
	"path/filepath"
	"strings"
)

// ParsedName holds the structured result of filename parsing.
type ParsedName struct {
	Stem     string // Name with the frame number and its separator removed.
	Frame    int
	Padding  int  // Digits in the frame number as written.
	HasFrame bool // False for a still (no frame number).
}

// ParseFilename parses a render filename (with extension) into sequence
// components. A file that is nothing but a frame number ("0001.exr") has an
// empty stem.
func ParseFilename(basename string) ParsedName {
	ext := filepath.Ext(basename)
	base := strings.TrimSuffix(basename, ext)

	for _, rule := range Rules {
		m := rule.Pattern.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		parsed := rule.Extract(base, m)
		parsed.Stem = cleanStem(parsed.Stem)
		return parsed
	}

	return ParsedName{Stem: cleanStem(base)}
}

// cleanStem trims separators left dangling once the frame is removed.
func cleanStem(s string) string {
	return strings.TrimRight(s, "._- ")
}
