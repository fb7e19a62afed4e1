package blockchain

import (
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/util"
	"github.com/holiman/uint256"
)

// TargetFunc maps a block height to its difficulty target. A block at that height is
// solved when its proof of work hash is at or below the returned value.
type TargetFunc func(height uint32) *uint256.Int

// ConstantTarget returns a TargetFunc that yields target for every height.
// Each call returns a fresh copy, callers may modify it.
func ConstantTarget(target *uint256.Int) TargetFunc {
	t := target.Clone()

	return func(_ uint32) *uint256.Int {
		return t.Clone()
	}
}

// ConstantTargetFromHex parses a 64 character hex target, as found in the
// blockchain_initial_target setting.
func ConstantTargetFromHex(s string) (TargetFunc, error) {
	target, err := util.TargetFromHex(s)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid target %q", s, err)
	}

	return ConstantTarget(target), nil
}
