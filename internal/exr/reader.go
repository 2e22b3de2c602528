package exr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
)

// Magic is the little-endian value of the first four bytes of every EXR file.
const Magic = 20000630

// Version word layout: low byte is the format version, the rest are flags.
const (
	versionMask   = 0x000000ff
	flagTiled     = 0x00000200
	flagLongNames = 0x00000400
	flagNonImage  = 0x00000800
	flagMultiPart = 0x00001000
	knownFlags    = flagTiled | flagLongNames | flagNonImage | flagMultiPart

	supportedVersion = 2
)

const (
	shortNameLimit = 31
	longNameLimit  = 255

	// String attributes up to this size are kept in Part.Attributes.
	maxKeptAttrSize = 64

	channelEntryTail = 16 // pixel type, pLinear, 3 reserved, x/y sampling
)

// ParseHeader parses the header of the file at path using a memory-mapped
// source.
func ParseHeader(path string) (*FileMetadata, error) {
	return ParseFile(path, ReadMmap)
}

// ParseFile parses the header of the file at path with the given read
// strategy. ParseDuration covers open, parse and close.
func ParseFile(path string, strategy ReadStrategy) (*FileMetadata, error) {
	start := time.Now()
	src, err := Open(path, strategy)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	meta, err := ParseReader(src, src.Size(), path)
	if err != nil {
		return nil, err
	}
	meta.ParseDuration = time.Since(start)
	return meta, nil
}

// ParseReader parses a header from r, which holds size bytes. path is only
// used for error messages and FileMetadata.Path. r is never read past the
// end of the last header.
func ParseReader(r io.ReaderAt, size int64, path string) (*FileMetadata, error) {
	start := time.Now()
	d := &decoder{r: r, size: size, path: path, nameLimit: shortNameLimit}

	magic, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, d.fail(KindBadMagic, 0, "got %#08x, want %#08x", magic, Magic)
	}

	word, err := d.uint32()
	if err != nil {
		return nil, err
	}
	meta := &FileMetadata{
		Path:      path,
		Version:   int(word & versionMask),
		Tiled:     word&flagTiled != 0,
		LongNames: word&flagLongNames != 0,
		MultiPart: word&flagMultiPart != 0,
		FileSize:  size,
	}
	if err := d.checkVersion(word); err != nil {
		return nil, err
	}
	if meta.LongNames {
		d.nameLimit = longNameLimit
	}

	for {
		part, empty, err := d.header()
		if err != nil {
			return nil, err
		}
		if empty {
			if len(meta.Parts) == 0 {
				return nil, d.fail(KindMalformedAttribute, d.off-1, "file has no parts")
			}
			break
		}
		meta.Parts = append(meta.Parts, part)
		if !meta.MultiPart {
			break
		}
	}

	meta.HeaderSize = d.off
	meta.ParseDuration = time.Since(start)
	return meta, nil
}

// decoder walks a header at exact offsets. Every read is bounds-checked
// against size before it is issued.
type decoder struct {
	r         io.ReaderAt
	size      int64
	off       int64
	path      string
	nameLimit int
	scratch   [4]byte
}

func (d *decoder) fail(kind Kind, off int64, format string, args ...interface{}) error {
	return &HeaderError{Path: d.path, Kind: kind, Offset: off, Detail: fmt.Sprintf(format, args...)}
}

func (d *decoder) checkVersion(word uint32) error {
	if v := word & versionMask; v != supportedVersion {
		return d.fail(KindUnsupportedVersion, 4, "format version %d", v)
	}
	flags := word &^ versionMask
	if flags&flagNonImage != 0 {
		return d.fail(KindUnsupportedVersion, 4, "deep data files are not supported")
	}
	if unknown := flags &^ knownFlags; unknown != 0 {
		return d.fail(KindUnsupportedVersion, 4, "unknown version flags %#x", unknown)
	}
	if flags&flagTiled != 0 && flags&flagMultiPart != 0 {
		return d.fail(KindUnsupportedVersion, 4, "single-part tiled flag set on a multi-part file")
	}
	return nil
}

// readAt fills buf from the current offset and advances past it.
func (d *decoder) readAt(buf []byte) error {
	n := int64(len(buf))
	if d.off+n > d.size {
		return d.fail(KindTruncated, d.off, "need %d bytes, %d available", n, d.size-d.off)
	}
	if _, err := d.r.ReadAt(buf, d.off); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return d.fail(KindTruncated, d.off, "need %d bytes: %v", n, err)
		}
		return errors.Wrapf(err, "read %s at offset %d", d.path, d.off)
	}
	d.off += n
	return nil
}

func (d *decoder) uint32() (uint32, error) {
	if err := d.readAt(d.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.scratch[:4]), nil
}

// cstring reads a null-terminated string of at most limit bytes, one byte at
// a time so nothing past the terminator is requested.
func (d *decoder) cstring(limit int) (string, error) {
	start := d.off
	var buf []byte
	for {
		if err := d.readAt(d.scratch[:1]); err != nil {
			return "", err
		}
		b := d.scratch[0]
		if b == 0 {
			return string(buf), nil
		}
		if len(buf) == limit {
			return "", d.fail(KindMalformedAttribute, start, "name longer than %d bytes", limit)
		}
		buf = append(buf, b)
	}
}

// header decodes one attribute list. empty reports that the list had no
// attributes at all, which is the multi-part end-of-headers marker.
func (d *decoder) header() (part Part, empty bool, err error) {
	part.PixelAspectRatio = 1
	sawChannels := false
	count := 0

	for {
		nameOff := d.off
		name, err := d.cstring(d.nameLimit)
		if err != nil {
			return part, false, err
		}
		if name == "" {
			if count == 0 {
				return part, true, nil
			}
			break
		}
		count++

		typ, err := d.cstring(d.nameLimit)
		if err != nil {
			return part, false, err
		}
		if typ == "" {
			return part, false, d.fail(KindMalformedAttribute, nameOff, "attribute %q has an empty type name", name)
		}
		rawSize, err := d.uint32()
		if err != nil {
			return part, false, err
		}
		size := int64(int32(rawSize))
		if size < 0 {
			return part, false, d.fail(KindMalformedAttribute, d.off-4, "attribute %q has negative size %d", name, size)
		}
		if d.off+size > d.size {
			return part, false, d.fail(KindTruncated, d.off, "attribute %q declares %d bytes, %d available", name, size, d.size-d.off)
		}

		if err := d.attribute(&part, name, typ, size); err != nil {
			return part, false, err
		}
		if name == "channels" {
			sawChannels = true
		}
	}

	if !sawChannels {
		return part, false, d.fail(KindMalformedAttribute, d.off, "header has no channels attribute")
	}
	if part.Type == "deepscanline" || part.Type == "deeptile" {
		return part, false, d.fail(KindUnsupportedVersion, d.off, "deep part type %q is not supported", part.Type)
	}
	return part, false, nil
}

// attribute decodes one value of size bytes at the current offset, or skips
// it when the attribute is not needed.
func (d *decoder) attribute(p *Part, name, typ string, size int64) error {
	valueOff := d.off
	want := func(wantType string, wantSize int64) error {
		if typ != wantType {
			return d.fail(KindMalformedAttribute, valueOff, "attribute %q has type %q, want %q", name, typ, wantType)
		}
		if wantSize >= 0 && size != wantSize {
			return d.fail(KindMalformedAttribute, valueOff, "attribute %q has size %d, want %d", name, size, wantSize)
		}
		return nil
	}

	switch name {
	case "channels":
		if err := want("chlist", -1); err != nil {
			return err
		}
		buf, err := d.value(size)
		if err != nil {
			return err
		}
		channels, err := d.channelList(buf, valueOff)
		if err != nil {
			return err
		}
		p.Channels = channels

	case "dataWindow", "displayWindow":
		if err := want("box2i", 16); err != nil {
			return err
		}
		buf, err := d.value(size)
		if err != nil {
			return err
		}
		box := Box2i{
			XMin: int32(binary.LittleEndian.Uint32(buf[0:])),
			YMin: int32(binary.LittleEndian.Uint32(buf[4:])),
			XMax: int32(binary.LittleEndian.Uint32(buf[8:])),
			YMax: int32(binary.LittleEndian.Uint32(buf[12:])),
		}
		if name == "dataWindow" {
			p.DataWindow = box
		} else {
			p.DisplayWindow = box
		}

	case "compression":
		if err := want("compression", 1); err != nil {
			return err
		}
		buf, err := d.value(size)
		if err != nil {
			return err
		}
		p.Compression = Compression(buf[0])

	case "lineOrder":
		if err := want("lineOrder", 1); err != nil {
			return err
		}
		buf, err := d.value(size)
		if err != nil {
			return err
		}
		p.LineOrder = LineOrder(buf[0])

	case "pixelAspectRatio":
		if err := want("float", 4); err != nil {
			return err
		}
		buf, err := d.value(size)
		if err != nil {
			return err
		}
		p.PixelAspectRatio = math.Float32frombits(binary.LittleEndian.Uint32(buf))

	case "name", "type":
		if err := want("string", -1); err != nil {
			return err
		}
		buf, err := d.value(size)
		if err != nil {
			return err
		}
		if name == "name" {
			p.Name = string(buf)
		} else {
			p.Type = string(buf)
		}

	default:
		if typ == "string" && size <= maxKeptAttrSize {
			buf, err := d.value(size)
			if err != nil {
				return err
			}
			if printable(buf) {
				if p.Attributes == nil {
					p.Attributes = make(map[string]string)
				}
				p.Attributes[name] = string(buf)
			}
			return nil
		}
		// Unknown or bulky attribute: skip by declared size, never read.
		d.off += size
	}
	return nil
}

func (d *decoder) value(size int64) ([]byte, error) {
	buf := make([]byte, size)
	if err := d.readAt(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// channelList decodes a chlist value. base is the file offset of buf[0].
func (d *decoder) channelList(buf []byte, base int64) ([]Channel, error) {
	var channels []Channel
	seen := make(map[string]struct{})
	pos := 0

	for pos < len(buf) {
		end := bytes.IndexByte(buf[pos:], 0)
		if end < 0 {
			return nil, d.fail(KindMalformedChannelList, base+int64(pos), "unterminated channel name")
		}
		if end == 0 {
			pos++
			if pos != len(buf) {
				return nil, d.fail(KindMalformedChannelList, base+int64(pos), "%d trailing bytes after channel list terminator", len(buf)-pos)
			}
			return channels, nil
		}
		if end > d.nameLimit {
			return nil, d.fail(KindMalformedChannelList, base+int64(pos), "channel name longer than %d bytes", d.nameLimit)
		}
		name := string(buf[pos : pos+end])
		entryOff := base + int64(pos)
		pos += end + 1

		if pos+channelEntryTail > len(buf) {
			return nil, d.fail(KindMalformedChannelList, entryOff, "channel %q entry is cut short", name)
		}
		pt := PixelType(binary.LittleEndian.Uint32(buf[pos:]))
		pLinear := buf[pos+4] != 0
		xs := int32(binary.LittleEndian.Uint32(buf[pos+8:]))
		ys := int32(binary.LittleEndian.Uint32(buf[pos+12:]))
		pos += channelEntryTail

		if pt > PixelFloat {
			return nil, d.fail(KindMalformedChannelList, entryOff, "channel %q has unknown pixel type %d", name, uint32(pt))
		}
		if xs < 1 || ys < 1 {
			return nil, d.fail(KindMalformedChannelList, entryOff, "channel %q has sampling %dx%d", name, xs, ys)
		}
		if _, dup := seen[name]; dup {
			return nil, d.fail(KindMalformedChannelList, entryOff, "duplicate channel %q", name)
		}
		seen[name] = struct{}{}

		channels = append(channels, Channel{
			Name:      name,
			PixelType: pt,
			PLinear:   pLinear,
			XSampling: xs,
			YSampling: ys,
		})
	}
	return nil, d.fail(KindMalformedChannelList, base+int64(len(buf)), "channel list has no terminator")
}

func printable(b []byte) bool {
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
