package crcutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCCITTFalseKnownVector(t *testing.T) {
	// "123456789" -> 0x29B1 is the standard CRC-16/CCITT-FALSE test vector.
	require.Equal(t, uint16(0x29B1), CCITTFalse16([]byte("123456789")))
}

func TestXZKnownVector(t *testing.T) {
	// "123456789" -> 0xCBF43926 is the standard CRC-32 (and CRC-32/XZ) test vector.
	require.Equal(t, uint32(0xCBF43926), XZ([]byte("123456789")))
}

func TestCCITTFalseEmpty(t *testing.T) {
	require.Equal(t, uint16(0xFFFF), CCITTFalse16(nil))
}
