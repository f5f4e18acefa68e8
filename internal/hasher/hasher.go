// Package hasher fingerprints archive entries with xxHash64.
package hasher

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Len is the length of a full hex digest.
const Len = 16

// Sum returns the xxHash64 of data as lowercase hex, truncated to hexLen
// characters when 0 < hexLen < Len.
func Sum(data []byte, hexLen int) string {
	return format(xxhash.Sum64(data), hexLen)
}

// SumReader is Sum over a stream.
func SumReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return format(h.Sum64(), hexLen), nil
}

// Match reports whether data hashes to want. A truncated want is compared
// on its own length.
func Match(data []byte, want string) bool {
	if want == "" || len(want) > Len {
		return false
	}
	return Sum(data, len(want)) == want
}

func format(v uint64, hexLen int) string {
	s := fmt.Sprintf("%016x", v)
	if hexLen > 0 && hexLen < len(s) {
		return s[:hexLen]
	}
	return s
}
