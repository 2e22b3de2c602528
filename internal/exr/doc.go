// Package exr reads OpenEXR container headers without touching pixel data.
//
// A header is the magic number, the version word, and one attribute list per
// part. Only the attributes needed for channel inventory are decoded
// (channels, dataWindow, displayWindow, compression, lineOrder,
// pixelAspectRatio, name, type); everything else is skipped by its declared
// size. Parsing stops at the final header terminator, so the offset table and
// the compressed payload that follow are never read.
//
// All reads go through [io.ReaderAt] at exact offsets and lengths. [Open]
// backs that with a memory map by default and falls back to plain file reads.
//
// Files are split along these lines:
//   - types.go: Channel, Part, FileMetadata and the enum types
//   - errors.go: HeaderError and its kinds
//   - reader.go: ParseHeader / ParseReader and the attribute decoders
//   - source.go: memory-mapped and file-backed sources
package exr
