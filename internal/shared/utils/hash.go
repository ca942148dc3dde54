package utils

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strconv"
)

// Hasher reduces strings to 32-bit values for compact header hashes
type Hasher struct{}

// DefaultHasher returns the hasher used for CAT path hashes
func DefaultHasher() *Hasher {
	return &Hasher{}
}

// Hash32 returns the last four bytes of the MD5 digest of s as a big-endian uint32
func (h *Hasher) Hash32(s string) uint32 {
	sum := md5.Sum([]byte(s))
	return binary.BigEndian.Uint32(sum[12:16])
}

// RotateLeft32 rotates v left by one bit within 32 bits
func RotateLeft32(v uint32) uint32 {
	return (v << 1) | (v >> 31)
}

// PathHash chains name onto a referring hash: rotl(seed) XOR hash32(name)
func (h *Hasher) PathHash(name string, seed uint32) uint32 {
	return RotateLeft32(seed) ^ h.Hash32(name)
}

// FormatHash32 renders v as eight lowercase hex digits
func FormatHash32(v uint32) string {
	return fmt.Sprintf("%08x", v)
}

// ParseHash32 parses a hex hash. Empty or malformed input yields 0 and false.
func ParseHash32(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
