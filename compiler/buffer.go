package compiler

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Buffer: an append-only byte container with deferred, two-pass forward
// reference resolution. A Marker is set once at the byte offset it names;
// any number of reservations made with Use before that point are filled
// in once every marker's final offset is known.
// ---------------------------------------------------------------------------

// Marker is a named placeholder bound to a buffer offset by Set.
type Marker struct {
	name     string
	resolved bool
	offset   int
}

// NewMarker creates an unbound marker. name is used only in diagnostics.
func NewMarker(name string) *Marker {
	return &Marker{name: name}
}

type chunkKind int

const (
	chunkLiteral chunkKind = iota
	chunkMarkerSet
	chunkMarkerUse
)

type bufChunk struct {
	kind      chunkKind
	data      []byte
	marker    *Marker
	size      int
	transform func(offset int) []byte
}

// Buffer is the growable output of the code generator.
type Buffer struct {
	chunks []bufChunk
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// WriteString appends literal text.
func (b *Buffer) WriteString(s string) {
	b.chunks = append(b.chunks, bufChunk{kind: chunkLiteral, data: []byte(s)})
}

// Set binds marker to the buffer's current length. A marker must be set
// at most once.
func (b *Buffer) Set(marker *Marker) {
	b.chunks = append(b.chunks, bufChunk{kind: chunkMarkerSet, marker: marker})
}

// Use reserves size bytes at the current position. Once every marker in
// the buffer has been set, transform is called with marker's resolved
// offset and must return exactly size bytes; those bytes replace the
// reservation.
func (b *Buffer) Use(marker *Marker, size int, transform func(offset int) []byte) {
	b.chunks = append(b.chunks, bufChunk{kind: chunkMarkerUse, marker: marker, size: size, transform: transform})
}

// Resolve performs the two-pass materialization described above. An
// unset marker or a transform that returns the wrong number of bytes is
// an internal error: it is logged to sink at ERROR severity and only the
// offending reservation is replaced with an empty slot, so the rest of
// the buffer is still emitted and can be inspected.
func (b *Buffer) Resolve(sink Sink) []byte {
	offset := 0
	for i := range b.chunks {
		c := &b.chunks[i]
		switch c.kind {
		case chunkLiteral:
			offset += len(c.data)
		case chunkMarkerSet:
			c.marker.offset = offset
			c.marker.resolved = true
		case chunkMarkerUse:
			offset += c.size
		}
	}

	var out bytes.Buffer
	for _, c := range b.chunks {
		switch c.kind {
		case chunkLiteral:
			out.Write(c.data)
		case chunkMarkerSet:
			// zero-width anchor, nothing to emit
		case chunkMarkerUse:
			if !c.marker.resolved {
				emitInternalError(sink, "marker %q was never set", c.marker.name)
				continue
			}
			resolved := c.transform(c.marker.offset)
			if len(resolved) != c.size {
				emitInternalError(sink, "marker %q use produced %d bytes, expected %d", c.marker.name, len(resolved), c.size)
				continue
			}
			out.Write(resolved)
		}
	}

	return out.Bytes()
}

func emitInternalError(sink Sink, format string, args ...interface{}) {
	if sink == nil {
		return
	}
	sink.Emit(Diagnostic{Severity: SeverityError, Message: Textf(format, args...)})
}

// padOffset left-pads a non-negative offset with '.' to width characters.
func padOffset(offset, width int) string {
	s := strconv.Itoa(offset)
	if len(s) >= width {
		return s
	}
	return strings.Repeat(".", width-len(s)) + s
}

func jmpIfTrue(offset int) []byte {
	return []byte(fmt.Sprintf(") JMP IF TRUE %s\n", padOffset(offset, 6)))
}

func jmpIfFalse(offset int) []byte {
	return []byte(fmt.Sprintf(") JMP IF FALSE %s\n", padOffset(offset, 6)))
}

func jmpTo(offset int) []byte {
	return []byte(fmt.Sprintf("JMP %s\n", padOffset(offset, 6)))
}
