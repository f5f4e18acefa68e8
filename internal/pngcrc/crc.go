// Package pngcrc implements the CRC-32 used by PNG chunk trailers
// (ISO 3309 / ITU-T V.42, reflected polynomial 0xEDB88320).
package pngcrc

import "sync"

// Polynomial is the reflected CRC-32 generator polynomial.
const Polynomial = 0xEDB88320

var (
	tableOnce sync.Once
	table     [256]uint32
)

// Table returns the 256-entry lookup table. It is built on first use and
// never modified afterwards, so callers must not write to it.
func Table() *[256]uint32 {
	tableOnce.Do(func() {
		for n := 0; n < 256; n++ {
			c := uint32(n)
			for k := 0; k < 8; k++ {
				if c&1 != 0 {
					c = Polynomial ^ (c >> 1)
				} else {
					c >>= 1
				}
			}
			table[n] = c
		}
	})
	return &table
}

// Update returns the result of adding the bytes in p to crc, where crc is a
// finished checksum (0 for an empty prefix). Update(Checksum(a), b) equals
// Checksum(append(a, b...)).
func Update(crc uint32, p []byte) uint32 {
	t := Table()
	c := ^crc
	for _, b := range p {
		c = t[byte(c)^b] ^ (c >> 8)
	}
	return ^c
}

// Checksum returns the CRC-32 of p.
func Checksum(p []byte) uint32 {
	return Update(0, p)
}
