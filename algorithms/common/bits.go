package common

import "math/bits"

// Fixed-point helpers shared by the frontend stages.

// MostSignificantBit32 returns the 1-based position of the highest set bit,
// or 0 for n == 0.
func MostSignificantBit32(n uint32) int {
	return bits.Len32(n)
}

// MostSignificantBit64 is the 64-bit variant of MostSignificantBit32.
func MostSignificantBit64(n uint64) int {
	return bits.Len64(n)
}

// SaturateUint16 clamps v to [0, 65535].
func SaturateUint16(v uint32) uint16 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// SaturateInt16 clamps v to [-32768, 32767].
func SaturateInt16(v int32) int16 {
	if v > 0x7FFF {
		return 0x7FFF
	}
	if v < -0x8000 {
		return -0x8000
	}
	return int16(v)
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
