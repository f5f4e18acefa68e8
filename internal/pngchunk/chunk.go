// Package pngchunk reads and writes the chunk framing of PNG streams:
// [4-byte big-endian length][4-byte type][data][4-byte CRC of type+data].
package pngchunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/AnyUserName/apix-cli/internal/pngcrc"
)

// Signature is the 8-byte header every PNG stream starts with.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// Well-known chunk types.
const (
	TypeIHDR = "IHDR"
	TypeIDAT = "IDAT"
	TypeIEND = "IEND"
	TypeTEXT = "tEXt"
	TypeITXT = "iTXt"
	TypeZTXT = "zTXt"
)

// headerLen is length+type, trailerLen is the CRC.
const (
	headerLen  = 8
	trailerLen = 4
)

var (
	ErrBadSignature  = errors.New("pngchunk: missing PNG signature")
	ErrTruncated     = errors.New("pngchunk: chunk extends past end of stream")
	ErrChunkNotFound = errors.New("pngchunk: chunk not found")
	ErrBadType       = errors.New("pngchunk: chunk type must be 4 ASCII letters")
)

// Chunk is a view into a PNG stream. Data aliases the stream.
type Chunk struct {
	Offset int    // offset of the length field
	Type   string // 4 ASCII bytes
	Data   []byte
	CRC    uint32 // CRC as stored in the stream
}

// Len is the total encoded size of the chunk, framing included.
func (c Chunk) Len() int { return headerLen + len(c.Data) + trailerLen }

// End is the offset of the byte following the chunk.
func (c Chunk) End() int { return c.Offset + c.Len() }

// ComputedCRC is the CRC-32 of type+data.
func (c Chunk) ComputedCRC() uint32 {
	return pngcrc.Update(pngcrc.Checksum([]byte(c.Type)), c.Data)
}

// Valid reports whether the stored CRC matches type+data.
func (c Chunk) Valid() bool { return c.CRC == c.ComputedCRC() }

// HasSignature reports whether stream starts with the PNG signature.
func HasSignature(stream []byte) bool {
	return bytes.HasPrefix(stream, Signature)
}

// Iterator walks the chunks of a PNG stream by their declared lengths,
// starting right after the signature. Usage mirrors bufio.Scanner:
//
//	it := pngchunk.NewIterator(stream)
//	for it.Next() {
//		c := it.Chunk()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Iteration stops after IEND, at the end of the stream, or at the first
// framing error. An iterator is single-use; create a new one to restart.
type Iterator struct {
	buf  []byte
	pos  int
	cur  Chunk
	err  error
	done bool
}

// NewIterator returns an iterator over stream.
func NewIterator(stream []byte) *Iterator {
	it := &Iterator{buf: stream, pos: len(Signature)}
	if !HasSignature(stream) {
		it.err = ErrBadSignature
		it.done = true
	}
	return it
}

// Next advances to the next chunk.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if it.pos == len(it.buf) {
		it.done = true
		return false
	}
	if len(it.buf)-it.pos < headerLen+trailerLen {
		return it.fail(fmt.Errorf("%w: %d trailing bytes at offset %d", ErrTruncated, len(it.buf)-it.pos, it.pos))
	}

	n := binary.BigEndian.Uint32(it.buf[it.pos:])
	if uint64(n) > uint64(len(it.buf)-it.pos-headerLen-trailerLen) {
		return it.fail(fmt.Errorf("%w: length %d at offset %d", ErrTruncated, n, it.pos))
	}
	typ := it.buf[it.pos+4 : it.pos+8]
	if !validType(typ) {
		return it.fail(fmt.Errorf("%w: %q at offset %d", ErrBadType, typ, it.pos))
	}

	dataStart := it.pos + headerLen
	dataEnd := dataStart + int(n)
	it.cur = Chunk{
		Offset: it.pos,
		Type:   string(typ),
		Data:   it.buf[dataStart:dataEnd:dataEnd],
		CRC:    binary.BigEndian.Uint32(it.buf[dataEnd:]),
	}
	it.pos = dataEnd + trailerLen
	if it.cur.Type == TypeIEND {
		it.done = true
	}
	return true
}

func (it *Iterator) fail(err error) bool {
	it.err = err
	it.done = true
	return false
}

// Chunk returns the chunk produced by the last successful Next.
func (it *Iterator) Chunk() Chunk { return it.cur }

// Err returns the framing error that stopped the iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Locate returns the offset of the first chunk of type typ. Declared lengths
// are followed first; if that walk hits malformed framing before finding the
// chunk, the stream is scanned byte by byte instead (see Scan).
func Locate(stream []byte, typ string) (int, error) {
	it := NewIterator(stream)
	for it.Next() {
		if it.Chunk().Type == typ {
			return it.Chunk().Offset, nil
		}
	}
	if it.Err() == nil {
		return -1, ErrChunkNotFound
	}
	return Scan(stream, typ)
}

// Scan looks for typ at every byte offset, ignoring chunk boundaries. A
// candidate must declare a length that fits in the stream; an IEND candidate
// must declare a zero length.
func Scan(stream []byte, typ string) (int, error) {
	t := []byte(typ)
	for i := 0; i+headerLen+trailerLen <= len(stream); i++ {
		if !bytes.Equal(stream[i+4:i+8], t) {
			continue
		}
		n := binary.BigEndian.Uint32(stream[i:])
		if typ == TypeIEND && n != 0 {
			continue
		}
		if uint64(n) > uint64(len(stream)-i-headerLen-trailerLen) {
			continue
		}
		return i, nil
	}
	return -1, ErrChunkNotFound
}

// Build encodes a chunk with its length prefix and CRC trailer.
func Build(typ string, data []byte) ([]byte, error) {
	if !validType([]byte(typ)) {
		return nil, fmt.Errorf("%w: %q", ErrBadType, typ)
	}
	if len(data) > math.MaxInt32 {
		return nil, fmt.Errorf("pngchunk: data too large (%d bytes)", len(data))
	}

	out := make([]byte, headerLen+len(data)+trailerLen)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(data)))
	copy(out[4:8], typ)
	copy(out[headerLen:], data)
	crc := pngcrc.Checksum(out[4 : headerLen+len(data)])
	binary.BigEndian.PutUint32(out[headerLen+len(data):], crc)
	return out, nil
}

// SpliceBefore returns a new stream with chunk inserted at offset.
// stream is not modified.
func SpliceBefore(stream []byte, offset int, chunk []byte) []byte {
	out := make([]byte, 0, len(stream)+len(chunk))
	out = append(out, stream[:offset]...)
	out = append(out, chunk...)
	return append(out, stream[offset:]...)
}

// InsertBeforeEnd builds a chunk and splices it in front of IEND.
func InsertBeforeEnd(stream []byte, typ string, data []byte) ([]byte, error) {
	off, err := Locate(stream, TypeIEND)
	if err != nil {
		return nil, err
	}
	c, err := Build(typ, data)
	if err != nil {
		return nil, err
	}
	return SpliceBefore(stream, off, c), nil
}

func validType(t []byte) bool {
	if len(t) != 4 {
		return false
	}
	for _, b := range t {
		if (b < 'A' || b > 'Z') && (b < 'a' || b > 'z') {
			return false
		}
	}
	return true
}
