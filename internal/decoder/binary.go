package decoder

import (
	"bytes"
	"encoding/binary"
)

// discriminatorLen is the size of an Anchor instruction discriminator.
const discriminatorLen = 8

func readUint64LE(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset : offset+8])
}

// readUint128LE returns the low and high halves of a little-endian u128.
func readUint128LE(data []byte, offset int) (lo, hi uint64) {
	lo = binary.LittleEndian.Uint64(data[offset : offset+8])
	hi = binary.LittleEndian.Uint64(data[offset+8 : offset+16])
	return lo, hi
}

func hasPrefix(data []byte, disc [discriminatorLen]byte) bool {
	return len(data) >= discriminatorLen && bytes.Equal(data[:discriminatorLen], disc[:])
}

// putUint64LE appends v to dst in little-endian order.
func putUint64LE(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}
