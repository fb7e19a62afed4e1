// Package blockchain defines the persistence layer of the devnet chain service.
//
// A Store keeps one linear chain of solved blocks indexed by height and by hash. It
// performs no validation beyond uniqueness; linkage and proof of work are checked by
// the chain service before StoreBlock is called.
package blockchain

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/halocoin/halominer/model"
)

type Store interface {
	// Health reports 200 when the backing storage can be reached.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// GetBestHeight returns the height of the head block, or -1 when no block has been stored.
	GetBestHeight(ctx context.Context) (int64, error)

	// GetBlockByHeight returns errors.ErrBlockNotFound when nothing is stored at height.
	GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error)

	// GetBlock returns errors.ErrBlockNotFound for an unknown hash.
	GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error)
	GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error)

	// StoreBlock returns a BLOCK_EXISTS error when the height or the hash is already taken.
	StoreBlock(ctx context.Context, block *model.Block) error

	Close() error
}
