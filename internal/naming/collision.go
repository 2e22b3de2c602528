package naming

import (
	"sync"
)

type frameKey struct {
	seq   string
	frame int
}

// FrameIndex tracks which file claimed each (sequence, frame) pair, so
// "shot.0001.exr" and "shot.001.exr" in one directory are reported as the
// same frame twice. All methods are goroutine-safe.
type FrameIndex struct {
	mu     sync.Mutex
	owners map[frameKey]string // (sequence, frame) → path that owns it
}

// NewFrameIndex creates a ready-to-use index.
func NewFrameIndex() *FrameIndex {
	return &FrameIndex{owners: make(map[frameKey]string)}
}

// Claim records path as the owner of frame in seq. If another path already
// owns it, that owner is returned with ok false.
func (fi *FrameIndex) Claim(seq string, frame int, path string) (owner string, ok bool) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	k := frameKey{seq, frame}
	if owner, exists := fi.owners[k]; exists && owner != path {
		return owner, false
	}
	fi.owners[k] = path
	return path, true
}
