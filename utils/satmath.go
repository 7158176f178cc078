package utils

import "math"

// SatAddU32 adds without wrapping; the result is clamped at math.MaxUint32.
func SatAddU32(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}

// SatSubU32 subtracts without underflow; the result is clamped at zero.
func SatSubU32(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

func SatAddU64(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func SatSubU64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// CheckedAddU64 reports false instead of wrapping. Money paths use it so an
// overflow rejects the instruction rather than clamping a balance.
func CheckedAddU64(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

func CheckedSubU64(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}
