package exr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies a header parse failure. All kinds are file-local.
type Kind int

const (
	KindBadMagic Kind = iota + 1
	KindUnsupportedVersion
	KindTruncated
	KindMalformedChannelList
	KindMalformedAttribute
)

func (k Kind) String() string {
	switch k {
	case KindBadMagic:
		return "BadMagic"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindTruncated:
		return "Truncated"
	case KindMalformedChannelList:
		return "MalformedChannelList"
	case KindMalformedAttribute:
		return "MalformedAttribute"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against any *HeaderError of the same kind.
var (
	ErrBadMagic             = errors.New("bad magic number")
	ErrUnsupportedVersion   = errors.New("unsupported version")
	ErrTruncated            = errors.New("truncated header")
	ErrMalformedChannelList = errors.New("malformed channel list")
	ErrMalformedAttribute   = errors.New("malformed attribute")
)

func (k Kind) sentinel() error {
	switch k {
	case KindBadMagic:
		return ErrBadMagic
	case KindUnsupportedVersion:
		return ErrUnsupportedVersion
	case KindTruncated:
		return ErrTruncated
	case KindMalformedChannelList:
		return ErrMalformedChannelList
	case KindMalformedAttribute:
		return ErrMalformedAttribute
	default:
		return nil
	}
}

// HeaderError reports why a file's header could not be parsed.
type HeaderError struct {
	Path   string
	Kind   Kind
	Offset int64 // byte offset where the problem was detected
	Detail string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d: %s", e.Path, e.Kind.sentinel(), e.Offset, e.Detail)
}

// Unwrap exposes the kind sentinel so errors.Is(err, ErrTruncated) works.
func (e *HeaderError) Unwrap() error { return e.Kind.sentinel() }

// KindOf returns the header error kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var he *HeaderError
	if errors.As(err, &he) {
		return he.Kind, true
	}
	return 0, false
}
