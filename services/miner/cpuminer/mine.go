// Package cpuminer searches the nonce space of a candidate block on the CPU.
package cpuminer

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/util"
	"github.com/holiman/uint256"
)

// DefaultMaxAttempts is the attempt budget of a single bounded Mine call.
const DefaultMaxAttempts uint64 = 100000

// RandomNonce returns a uniformly random start nonce in [1, 2^63).
// Parallel workers start from independent random points and count upwards.
func RandomNonce() uint64 {
	var b [8]byte

	for {
		_, _ = rand.Read(b[:])

		if nonce := binary.LittleEndian.Uint64(b[:]) >> 1; nonce != 0 {
			return nonce
		}
	}
}

// Search hashes candidate with increasing nonces until the proof of work meets the
// target or ctx is done. The solved block is sent to results once. There is no
// attempt cap. The number of hashes computed is returned.
func Search(ctx context.Context, candidate *model.Block, results chan<- *model.Block) (uint64, error) {
	block := candidate.Clone()

	hasher, err := powHasher(block)
	if err != nil {
		return 0, err
	}

	nonce, attempts, found := search(ctx.Done(), hasher, block.Target, RandomNonce(), 0)
	if !found {
		return attempts, nil
	}

	block.Nonce = &nonce

	select {
	case results <- block:
	case <-ctx.Done():
	}

	return attempts, nil
}

// Mine is the bounded variant of Search for single worker use. It computes at most
// maxAttempts hashes. Running out of attempts is reported as an
// errors.ErrThresholdExceeded coded error, leaving the retry to the caller.
func Mine(ctx context.Context, candidate *model.Block, maxAttempts uint64) (*model.Block, uint64, error) {
	if maxAttempts == 0 {
		return nil, 0, errors.NewInvalidArgumentError("[Mine] attempt budget must be positive")
	}

	block := candidate.Clone()

	hasher, err := powHasher(block)
	if err != nil {
		return nil, 0, err
	}

	startNonce := RandomNonce()

	nonce, attempts, found := search(ctx.Done(), hasher, block.Target, startNonce, maxAttempts)
	if found {
		block.Nonce = &nonce
		return block, attempts, nil
	}

	if ctx.Err() != nil {
		return nil, attempts, errors.NewContextCanceledError("[Mine] search of block %d cancelled after %d attempts", block.Height, attempts, ctx.Err())
	}

	return nil, attempts, errors.NewThresholdExceededError("[Mine] no solution for block %d in %d attempts from nonce %d", block.Height, attempts, startNonce)
}

func powHasher(block *model.Block) (*model.PowHasher, error) {
	if block.Target == nil {
		return nil, errors.NewBlockInvalidError("[Mine] candidate %d has no target", block.Height)
	}

	halfHash, err := block.HalfHash()
	if err != nil {
		return nil, errors.NewBlockInvalidError("[Mine] candidate %d cannot be hashed", block.Height, err)
	}

	return model.NewPowHasher(halfHash), nil
}

// search is the hot loop shared by Search and Mine. A limit of 0 means unbounded.
func search(done <-chan struct{}, hasher *model.PowHasher, target *uint256.Int, nonce, limit uint64) (uint64, uint64, bool) {
	var attempts uint64

	for limit == 0 || attempts < limit {
		select {
		case <-done:
			return 0, attempts, false
		default:
		}

		hash := hasher.Hash(nonce)
		attempts++

		if util.MeetsTarget(&hash, target) {
			return nonce, attempts, true
		}

		nonce++
	}

	return 0, attempts, false
}
