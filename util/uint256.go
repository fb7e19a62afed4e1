package util

import (
	"encoding/hex"
	"strings"

	"github.com/halocoin/halominer/errors"
	"github.com/holiman/uint256"
)

// Uint256ToHex renders x as exactly 64 lower case hex characters.
func Uint256ToHex(x *uint256.Int) string {
	b := x.Bytes32()
	return hex.EncodeToString(b[:])
}

// Uint256FromHex is the inverse of Uint256ToHex. Shorter inputs are left padded with zeros.
func Uint256FromHex(s string) (*uint256.Int, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")

	if len(s) > Width/4 {
		return nil, errors.NewInvalidArgumentError("hex value %q is wider than %d bits", s, Width)
	}

	if len(s)%2 == 1 {
		s = "0" + s
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid hex value %q", s, err)
	}

	return new(uint256.Int).SetBytes(b), nil
}
