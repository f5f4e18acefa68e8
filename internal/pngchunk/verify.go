package pngchunk

import "fmt"

// Problem describes one structural defect found by Verify.
type Problem struct {
	Offset int
	Msg    string
}

func (p Problem) String() string { return fmt.Sprintf("offset %d: %s", p.Offset, p.Msg) }

// Verify walks every chunk and reports CRC mismatches and ordering defects
// (IHDR must come first, IEND last, nothing after IEND). The chunks read
// before a framing error are still returned.
func Verify(stream []byte) ([]Chunk, []Problem) {
	var (
		chunks   []Chunk
		problems []Problem
	)
	it := NewIterator(stream)
	for it.Next() {
		c := it.Chunk()
		if len(chunks) == 0 && c.Type != TypeIHDR {
			problems = append(problems, Problem{c.Offset, fmt.Sprintf("first chunk is %s, want IHDR", c.Type)})
		}
		if !c.Valid() {
			problems = append(problems, Problem{c.Offset, fmt.Sprintf("%s: crc %08x, computed %08x", c.Type, c.CRC, c.ComputedCRC())})
		}
		chunks = append(chunks, c)
	}
	if err := it.Err(); err != nil {
		problems = append(problems, Problem{it.pos, err.Error()})
		return chunks, problems
	}

	if len(chunks) == 0 || chunks[len(chunks)-1].Type != TypeIEND {
		problems = append(problems, Problem{len(stream), "missing IEND"})
	} else if end := chunks[len(chunks)-1].End(); end != len(stream) {
		problems = append(problems, Problem{end, fmt.Sprintf("%d bytes after IEND", len(stream)-end)})
	}
	return chunks, problems
}
