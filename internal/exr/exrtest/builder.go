// Package exrtest builds synthetic EXR headers for tests. Only the header is
// well-formed; the offset table and payload are filler.
package exrtest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

const magic = 20000630

// Channel is one chlist entry.
type Channel struct {
	Name      string
	PixelType uint32 // 0 uint, 1 half, 2 float
	PLinear   bool
	XSampling int32
	YSampling int32
}

// Half returns a half-float channel with 1x1 sampling.
func Half(name string) Channel {
	return Channel{Name: name, PixelType: 1, XSampling: 1, YSampling: 1}
}

// Attribute is a raw attribute written verbatim.
type Attribute struct {
	Name  string
	Type  string
	Value []byte
}

// Part describes one header.
type Part struct {
	Name         string // written as a "name" attribute when non-empty
	Type         string // written as a "type" attribute when non-empty
	Channels     []Channel
	Width        int32
	Height       int32
	Compression  uint8
	OmitChannels bool
	Extra        []Attribute
}

// Builder assembles a file. Zero values give a valid single-part header.
type Builder struct {
	Magic   uint32 // defaults to the EXR magic number
	Version uint32 // defaults to 2
	Flags   uint32 // extra version flags; multi-part is set automatically
	Parts   []Part
	Payload []byte // bytes written after the header and offset table
}

// New returns a single-part builder with half channels of the given names.
func New(channels ...string) *Builder {
	p := Part{Width: 64, Height: 32, Compression: 3}
	for _, c := range channels {
		p.Channels = append(p.Channels, Half(c))
	}
	return &Builder{Parts: []Part{p}}
}

// MultiPart reports whether the builder writes a multi-part file.
func (b *Builder) MultiPart() bool { return len(b.Parts) > 1 }

// Header returns only the header bytes: magic, version and attribute lists.
func (b *Builder) Header() []byte {
	var buf bytes.Buffer
	m := b.Magic
	if m == 0 {
		m = magic
	}
	v := b.Version
	if v == 0 {
		v = 2
	}
	v |= b.Flags
	if b.MultiPart() {
		v |= 0x1000
	}
	putU32(&buf, m)
	putU32(&buf, v)

	for _, p := range b.Parts {
		writePart(&buf, p)
	}
	if b.MultiPart() {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// Bytes returns the header followed by a filler offset table and the payload.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(b.Header())
	for range b.Parts {
		putU32(&buf, 0xdeadbeef)
		putU32(&buf, 0xdeadbeef)
	}
	buf.Write(b.Payload)
	return buf.Bytes()
}

// WriteFile writes Bytes to dir/name and returns the path.
func (b *Builder) WriteFile(tb testing.TB, dir, name string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

func writePart(buf *bytes.Buffer, p Part) {
	if p.Name != "" {
		writeAttr(buf, "name", "string", []byte(p.Name))
	}
	if p.Type != "" {
		writeAttr(buf, "type", "string", []byte(p.Type))
	}
	if !p.OmitChannels {
		writeAttr(buf, "channels", "chlist", ChannelList(p.Channels))
	}
	writeAttr(buf, "compression", "compression", []byte{p.Compression})
	box := Box2i(0, 0, p.Width-1, p.Height-1)
	writeAttr(buf, "dataWindow", "box2i", box)
	writeAttr(buf, "displayWindow", "box2i", box)
	writeAttr(buf, "lineOrder", "lineOrder", []byte{0})
	writeAttr(buf, "pixelAspectRatio", "float", Float(1))
	for _, a := range p.Extra {
		writeAttr(buf, a.Name, a.Type, a.Value)
	}
	buf.WriteByte(0)
}

func writeAttr(buf *bytes.Buffer, name, typ string, value []byte) {
	buf.WriteString(name)
	buf.WriteByte(0)
	buf.WriteString(typ)
	buf.WriteByte(0)
	putU32(buf, uint32(len(value)))
	buf.Write(value)
}

// ChannelList encodes a chlist value including its terminator.
func ChannelList(channels []Channel) []byte {
	var buf bytes.Buffer
	for _, c := range channels {
		buf.WriteString(c.Name)
		buf.WriteByte(0)
		putU32(&buf, c.PixelType)
		if c.PLinear {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		buf.Write([]byte{0, 0, 0})
		putU32(&buf, uint32(c.XSampling))
		putU32(&buf, uint32(c.YSampling))
	}
	buf.WriteByte(0)
	return buf.Bytes()
}

// Box2i encodes a box2i value.
func Box2i(xMin, yMin, xMax, yMax int32) []byte {
	var buf bytes.Buffer
	for _, v := range []int32{xMin, yMin, xMax, yMax} {
		putU32(&buf, uint32(v))
	}
	return buf.Bytes()
}

// Float encodes a float attribute value.
func Float(f float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
	return b[:]
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
