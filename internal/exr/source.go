package exr

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/mmap"
)

// ReadStrategy selects how file bytes are accessed.
type ReadStrategy string

const (
	ReadMmap ReadStrategy = "mmap" // Memory-map the file (default).
	ReadFile ReadStrategy = "file" // Positional reads on an *os.File.
)

// Source is a random-access view of one file.
type Source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Open returns a Source for path. With ReadMmap it maps the file and falls
// back to file reads if mapping fails.
func Open(path string, strategy ReadStrategy) (Source, error) {
	if strategy == ReadMmap {
		m, err := mmap.Open(path)
		if err == nil {
			return mmapSource{m}, nil
		}
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, errors.Wrapf(err, "open %s", path)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	return &fileSource{f: f, size: fi.Size()}, nil
}

type mmapSource struct {
	*mmap.ReaderAt
}

func (m mmapSource) Size() int64 { return int64(m.Len()) }

type fileSource struct {
	f    *os.File
	size int64
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Close() error                            { return s.f.Close() }
func (s *fileSource) Size() int64                             { return s.size }
