package rules

import "strings"

// Match reports whether channelName matches r. Callers classifying many
// names should build a RuleSet instead, which compiles each pattern once.
func Match(channelName string, r Rule) bool {
	p := compile(r)
	return p.match(channelName)
}

// pattern is a rule pattern prepared for matching. Wildcard patterns are
// split at '*' into segments; '?' inside a segment matches one rune.
type pattern struct {
	kind MatchKind
	text string
	segs [][]rune
}

func compile(r Rule) pattern {
	p := pattern{kind: r.Kind, text: r.Pattern}
	if r.Kind == MatchWildcard {
		for _, s := range strings.Split(r.Pattern, "*") {
			p.segs = append(p.segs, []rune(s))
		}
	}
	return p
}

func (p *pattern) match(name string) bool {
	if p.kind == MatchPrefix {
		if !strings.HasPrefix(name, p.text) {
			return false
		}
		return len(name) == len(p.text) || name[len(p.text)] == '.'
	}
	return p.matchWildcard([]rune(name))
}

// matchWildcard anchors the first segment at the start and the last at the
// end, then places each middle segment at its leftmost fit. With only '*'
// and fixed-width segments the leftmost fit is always safe, so this never
// backtracks. '*' may match zero runes.
func (p *pattern) matchWildcard(name []rune) bool {
	if len(p.segs) == 1 {
		return len(name) == len(p.segs[0]) && segmentAt(name, 0, p.segs[0])
	}

	first, last := p.segs[0], p.segs[len(p.segs)-1]
	if len(name) < len(first)+len(last) {
		return false
	}
	if !segmentAt(name, 0, first) || !segmentAt(name, len(name)-len(last), last) {
		return false
	}

	lo, hi := len(first), len(name)-len(last)
	for _, seg := range p.segs[1 : len(p.segs)-1] {
		if len(seg) == 0 {
			continue
		}
		idx := indexSegment(name[lo:hi], seg)
		if idx < 0 {
			return false
		}
		lo += idx + len(seg)
	}
	return true
}

func segmentAt(name []rune, at int, seg []rune) bool {
	if at < 0 || at+len(seg) > len(name) {
		return false
	}
	for i, r := range seg {
		if r != '?' && r != name[at+i] {
			return false
		}
	}
	return true
}

func indexSegment(name, seg []rune) int {
	for i := 0; i+len(seg) <= len(name); i++ {
		if segmentAt(name, i, seg) {
			return i
		}
	}
	return -1
}
