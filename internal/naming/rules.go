package naming

import (
	"regexp"
	"strconv"
	"strings"
)

// ParseRule pairs a compiled regex with an extraction function. Rules are
// evaluated in order by [ParseFilename]; first match wins.
type ParseRule struct {
	Name    string
	Pattern *regexp.Regexp
	Extract func(base string, matches []string) ParsedName
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func frame(stem, digits string) ParsedName {
	return ParsedName{Stem: stem, Frame: atoi(digits), Padding: len(digits), HasFrame: true}
}

// --- Compiled rule patterns (order matters) ---

var (
	// shot_beauty.1001, shot.v003.0042
	reDotFrame = regexp.MustCompile(`^(.*[^.])\.([0-9]+)$`)

	// shot_beauty_1001; three digits minimum so "_v2" style suffixes stay
	// part of the name.
	reUnderscoreFrame = regexp.MustCompile(`^(.*[^_])_([0-9]{3,})$`)

	// shotbeauty1001: trailing padded digits with no separator.
	reBareFrame = regexp.MustCompile(`^(.*[^0-9])([0-9]{4,})$`)

	// 1001: no stem; the sequence takes its directory's name.
	reOnlyFrame = regexp.MustCompile(`^([0-9]+)$`)
)

// Rules is the ordered table consulted by [ParseFilename].
var Rules = []ParseRule{
	{
		Name:    "dot-frame",
		Pattern: reDotFrame,
		Extract: func(_ string, m []string) ParsedName {
			return frame(m[1], m[2])
		},
	},
	{
		Name:    "underscore-frame",
		Pattern: reUnderscoreFrame,
		Extract: func(_ string, m []string) ParsedName {
			return frame(m[1], m[2])
		},
	},
	{
		Name:    "bare-frame",
		Pattern: reBareFrame,
		Extract: func(_ string, m []string) ParsedName {
			return frame(m[1], m[2])
		},
	},
	{
		Name:    "only-frame",
		Pattern: reOnlyFrame,
		Extract: func(_ string, m []string) ParsedName {
			return frame("", m[1])
		},
	},
}
