// Package crcutil provides the two CRC variants spec.md's Design Notes
// insists be pinned down exactly, since the original firmware mixed a
// CRC-32/IEEE path with a CRC-32/XZ path and at times mixed endian
// conventions: CRC-16/CCITT-FALSE for the host frame (§3, §6) and
// CRC-32/XZ for bitmap transmission (§4.10). Both are computed with
// github.com/snksoft/crc rather than hand-rolled tables, the way
// github.jpl.nasa.gov/bdube/golab (snksoft/crc in its go.mod) reaches
// for the same library instead of hash/crc32 or a hand-rolled table.
package crcutil

import "github.com/snksoft/crc"

// CCITTFalse are the parameters spec.md §3 pins for the host framed
// packet: poly 0x1021, init 0xFFFF, no reflect, no final xor.
var CCITTFalse = &crc.Parameters{
	Width:      16,
	Polynomial: 0x1021,
	Init:       0xFFFF,
	ReflectIn:  false,
	ReflectOut: false,
	FinalXor:   0x0000,
}

// XZ32 are the parameters spec.md §4.10 pins for the bitmap CRC:
// CRC-32/XZ (reflected, init 0xFFFFFFFF, final xor 0xFFFFFFFF).
var XZ32 = &crc.Parameters{
	Width:      32,
	Polynomial: 0x04C11DB7,
	Init:       0xFFFFFFFF,
	ReflectIn:  true,
	ReflectOut: true,
	FinalXor:   0xFFFFFFFF,
}

// CCITTFalse16 computes the CRC-16/CCITT-FALSE checksum of data.
func CCITTFalse16(data []byte) uint16 {
	return uint16(crc.CalculateCRC(CCITTFalse, data))
}

// XZ computes the CRC-32/XZ checksum of data.
func XZ(data []byte) uint32 {
	return uint32(crc.CalculateCRC(XZ32, data))
}
