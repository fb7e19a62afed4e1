package util

import (
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvert(t *testing.T) {
	t.Run("zero and max", func(t *testing.T) {
		assert.True(t, Invert(uint256.NewInt(0)).Eq(MaxTarget))
		assert.True(t, Invert(MaxTarget).IsZero())
	})

	t.Run("involution", func(t *testing.T) {
		for _, x := range []*uint256.Int{
			uint256.NewInt(1),
			uint256.NewInt(0xdeadbeef),
			new(uint256.Int).Lsh(uint256.NewInt(1), 255),
			MaxTarget,
		} {
			assert.True(t, Invert(Invert(x)).Eq(x), x.Hex())
		}
	})

	t.Run("does not modify argument", func(t *testing.T) {
		x := uint256.NewInt(5)
		_ = Invert(x)
		assert.Equal(t, uint64(5), x.Uint64())
	})
}

func TestSum(t *testing.T) {
	assert.Equal(t, uint64(7), Sum(uint256.NewInt(3), uint256.NewInt(4)).Uint64())

	// wraps at 2^Width
	assert.Equal(t, uint64(1), Sum(MaxTarget, uint256.NewInt(2)).Uint64())
}

func TestHashToInt(t *testing.T) {
	hash, err := chainhash.NewHashFromStr("00000000000000000000000000000000000000000000000000000000000001ff")
	require.NoError(t, err)

	assert.Equal(t, uint64(0x1ff), HashToInt(hash).Uint64())
	assert.Equal(t, hash.String(), Uint256ToHex(HashToInt(hash)))
}

func TestMeetsTarget(t *testing.T) {
	hash, err := chainhash.NewHashFromStr("0000000000000000000000000000000000000000000000000000000000000100")
	require.NoError(t, err)

	assert.True(t, MeetsTarget(hash, uint256.NewInt(0x100)))
	assert.True(t, MeetsTarget(hash, MaxTarget))
	assert.False(t, MeetsTarget(hash, uint256.NewInt(0xff)))
	assert.False(t, MeetsTarget(hash, uint256.NewInt(0)))
	assert.False(t, MeetsTarget(nil, MaxTarget))
	assert.False(t, MeetsTarget(hash, nil))
}

func TestUint256Hex(t *testing.T) {
	t.Run("fixed width", func(t *testing.T) {
		s := Uint256ToHex(uint256.NewInt(1))
		assert.Len(t, s, 64)
		assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000001", s)
	})

	t.Run("parse", func(t *testing.T) {
		x, err := Uint256FromHex("0x1ff")
		require.NoError(t, err)
		assert.Equal(t, uint64(0x1ff), x.Uint64())

		x, err = TargetFromHex("0000ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
		require.NoError(t, err)
		assert.True(t, x.Eq(new(uint256.Int).Rsh(MaxTarget, 16)))
	})

	t.Run("too wide", func(t *testing.T) {
		_, err := Uint256FromHex("1" + Uint256ToHex(MaxTarget))
		require.Error(t, err)
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := Uint256FromHex("xyz")
		require.Error(t, err)
	})
}
