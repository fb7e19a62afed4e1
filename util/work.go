package util

import (
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/holiman/uint256"
)

// Width is the bit width of targets, hashes and difficulty lengths. It equals the
// digest length of chainhash.DoubleHashH, so every hash maps onto [0, 2^Width).
const Width = 256

// MaxTarget is 2^Width - 1, the easiest possible target.
var MaxTarget = new(uint256.Int).SetAllOne()

// Invert returns MAX - x over Width bits. Invert(Invert(x)) == x for every x.
func Invert(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Not(x)
}

// Sum returns (a + b) mod 2^Width.
func Sum(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Add(a, b)
}

// HashToInt reads a digest the way chainhash prints it: the byte order is reversed
// and the result is taken as a big-endian unsigned integer, so hash.String() and
// Uint256ToHex(HashToInt(hash)) are the same text.
func HashToInt(hash *chainhash.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(bt.ReverseBytes(hash.CloneBytes()))
}

// MeetsTarget reports whether hash <= target, both compared as Width-bit unsigned integers.
func MeetsTarget(hash *chainhash.Hash, target *uint256.Int) bool {
	if hash == nil || target == nil {
		return false
	}

	return HashToInt(hash).Cmp(target) <= 0
}

// TargetFromHex parses a hex target of up to 64 characters, left padded with zeros.
func TargetFromHex(s string) (*uint256.Int, error) {
	return Uint256FromHex(s)
}
