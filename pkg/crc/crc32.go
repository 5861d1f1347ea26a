// Package crc implements the CRC-32 used by Ethernet and ZIP without a lookup
// table, so it can be chained over arbitrary chunks of data.
package crc

import "hash"

// Poly is the CRC-32 (Ethernet, ZIP, etc.) polynomial in reversed bit order
const Poly = 0xedb88320

// Size of a CRC-32 checksum in bytes
const Size = 4

// Update continues crc with buf. The first call has to pass 0.
func Update(crc uint32, buf []byte) uint32 {
	crc = ^crc
	for _, b := range buf {
		crc ^= uint32(b)
		for k := 0; k < 8; k++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ Poly
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}

// Checksum returns the CRC-32 of data
func Checksum(data []byte) uint32 {
	return Update(0, data)
}

type digest struct {
	crc uint32
}

// New returns a hash.Hash32 computing the same checksum as Update
func New() hash.Hash32 {
	return &digest{}
}

func (d *digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return d.crc }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *digest) Reset() { d.crc = 0 }

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 1 }
