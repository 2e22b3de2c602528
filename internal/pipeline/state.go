package pipeline

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// FileState is the position of one file in the per-file lifecycle:
//
//	Discovered -> Parsing -> ParseFailed -> Merged
//	                      -> Parsed -> Classifying -> Classified -> Merged
//	Discovered -> Skipped (cancelled before its worker started)
type FileState int

const (
	StateDiscovered FileState = iota
	StateParsing
	StateParseFailed
	StateParsed
	StateClassifying
	StateClassified
	StateMerged
	StateSkipped
)

var stateNames = [...]string{
	StateDiscovered:  "Discovered",
	StateParsing:     "Parsing",
	StateParseFailed: "ParseFailed",
	StateParsed:      "Parsed",
	StateClassifying: "Classifying",
	StateClassified:  "Classified",
	StateMerged:      "Merged",
	StateSkipped:     "Skipped",
}

func (s FileState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("FileState(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s FileState) Terminal() bool { return s == StateMerged || s == StateSkipped }

var transitions = map[FileState][]FileState{
	StateDiscovered:  {StateParsing, StateSkipped},
	StateParsing:     {StateParseFailed, StateParsed},
	StateParseFailed: {StateMerged},
	StateParsed:      {StateClassifying},
	StateClassifying: {StateClassified},
	StateClassified:  {StateMerged},
}

// CanTransition reports whether moving from s to next is legal.
func (s FileState) CanTransition(next FileState) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// TransitionFunc observes state changes. It is called from worker
// goroutines and must be safe for concurrent use.
type TransitionFunc func(path string, from, to FileState)

// fileRun tracks one file through its lifecycle. It is owned by a single
// worker and never shared.
type fileRun struct {
	path  string
	state FileState
	hook  TransitionFunc
}

func newFileRun(path string, hook TransitionFunc) *fileRun {
	return &fileRun{path: path, state: StateDiscovered, hook: hook}
}

func (f *fileRun) to(next FileState) error {
	if !f.state.CanTransition(next) {
		return errors.AssertionFailedf("%s: illegal transition %s -> %s", f.path, f.state, next)
	}
	prev := f.state
	f.state = next
	if f.hook != nil {
		f.hook(f.path, prev, next)
	}
	return nil
}
