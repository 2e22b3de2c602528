package exr

import (
	"strconv"
	"time"
)

// PixelType is the per-channel sample format stored in a channel list.
type PixelType uint32

const (
	PixelUint  PixelType = 0
	PixelHalf  PixelType = 1
	PixelFloat PixelType = 2
)

func (p PixelType) String() string {
	switch p {
	case PixelUint:
		return "uint"
	case PixelHalf:
		return "half"
	case PixelFloat:
		return "float"
	default:
		return "pixeltype(" + strconv.Itoa(int(p)) + ")"
	}
}

// Channel describes one named image plane of a part. Immutable once parsed.
type Channel struct {
	Name      string
	PixelType PixelType
	PLinear   bool
	XSampling int32
	YSampling int32
}

// Box2i is an inclusive integer bounding box.
type Box2i struct {
	XMin, YMin, XMax, YMax int32
}

// Width returns the number of columns covered by the box (0 if empty).
func (b Box2i) Width() int64 {
	if b.XMax < b.XMin {
		return 0
	}
	return int64(b.XMax) - int64(b.XMin) + 1
}

// Height returns the number of rows covered by the box (0 if empty).
func (b Box2i) Height() int64 {
	if b.YMax < b.YMin {
		return 0
	}
	return int64(b.YMax) - int64(b.YMin) + 1
}

// Compression is the compression enum stored in the "compression" attribute.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionRLE
	CompressionZIPS
	CompressionZIP
	CompressionPIZ
	CompressionPXR24
	CompressionB44
	CompressionB44A
	CompressionDWAA
	CompressionDWAB
)

var compressionNames = [...]string{
	"NONE", "RLE", "ZIPS", "ZIP", "PIZ", "PXR24", "B44", "B44A", "DWAA", "DWAB",
}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return "Unknown(" + strconv.Itoa(int(c)) + ")"
}

// LineOrder is the scanline storage order from the "lineOrder" attribute.
type LineOrder uint8

const (
	LineOrderIncreasingY LineOrder = iota
	LineOrderDecreasingY
	LineOrderRandomY
)

func (l LineOrder) String() string {
	switch l {
	case LineOrderIncreasingY:
		return "INCREASING_Y"
	case LineOrderDecreasingY:
		return "DECREASING_Y"
	case LineOrderRandomY:
		return "RANDOM_Y"
	default:
		return "Unknown(" + strconv.Itoa(int(l)) + ")"
	}
}

// Part is one independent image within a (possibly multi-part) file.
// Channel names are unique within a part.
type Part struct {
	Name             string // "name" attribute; empty for most single-part files.
	Type             string // "type" attribute, e.g. "scanlineimage".
	Channels         []Channel
	DataWindow       Box2i
	DisplayWindow    Box2i
	Compression      Compression
	LineOrder        LineOrder
	PixelAspectRatio float32

	// Attributes holds short printable string attributes that are not
	// decoded into a dedicated field (e.g. "owner", "software").
	Attributes map[string]string
}

// FileMetadata is the parsed header of one file. It is owned by the parsing
// worker until classified and treated as read-only afterwards.
type FileMetadata struct {
	Path      string
	Version   int
	Tiled     bool
	LongNames bool
	MultiPart bool
	Parts     []Part

	// HeaderSize is the byte offset just past the last header terminator,
	// i.e. how much of the file the reader consumed.
	HeaderSize    int64
	FileSize      int64
	ParseDuration time.Duration
}

// TotalChannels returns the number of channels across all parts.
func (m *FileMetadata) TotalChannels() int {
	n := 0
	for i := range m.Parts {
		n += len(m.Parts[i].Channels)
	}
	return n
}

// Resolution returns "WxH" of the first part's data window, or "unknown".
func (m *FileMetadata) Resolution() string {
	if len(m.Parts) == 0 {
		return "unknown"
	}
	dw := m.Parts[0].DataWindow
	w, h := dw.Width(), dw.Height()
	if w <= 0 || h <= 0 {
		return "unknown"
	}
	return strconv.FormatInt(w, 10) + "x" + strconv.FormatInt(h, 10)
}
