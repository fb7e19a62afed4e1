// Package blockchain is the chain service the miner talks to.
//
// ClientI is the narrow view of the chain that the mining coordinator needs: the head,
// the pending transactions, the difficulty curve and a way to hand over solved blocks.
// Blockchain is the in-process devnet implementation backed by a blockchain store.
package blockchain

import (
	"context"

	"github.com/halocoin/halominer/model"
	"github.com/holiman/uint256"
)

// ChainState is the synchronisation state of the chain as seen by the miner.
type ChainState int

const (
	// ChainStateNormal means the local head is current and mining makes sense.
	ChainStateNormal ChainState = iota
	// ChainStateSyncing means the node is catching up with peers. Mining is paused.
	ChainStateSyncing
	// ChainStateStopped means the chain service is not running.
	ChainStateStopped
)

func (s ChainState) String() string {
	switch s {
	case ChainStateNormal:
		return "NORMAL"
	case ChainStateSyncing:
		return "SYNCING"
	case ChainStateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ClientI defines the interface for chain client operations used by the miner.
type ClientI interface {
	// Health checks the health status of the chain service.
	//
	// Returns:
	// - HTTP status code (200 for healthy, 503 for unhealthy)
	// - Human-readable status message with health details
	// - Error if the health check encounters an unexpected failure
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// GetChainState returns the current synchronisation state.
	GetChainState(ctx context.Context) (ChainState, error)

	// GetBestHeight returns the height of the head block, or -1 when the chain is empty.
	GetBestHeight(ctx context.Context) (int64, error)

	// GetBlockByHeight returns the block at height on the current chain.
	// An errors.ErrBlockNotFound coded error is returned when the height is above the head.
	GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error)

	// GetPendingTransactions returns a snapshot of the transaction pool. The caller owns the slice.
	GetPendingTransactions(ctx context.Context) ([]*model.Transaction, error)

	// Target returns the difficulty target for a block at height.
	Target(height uint32) *uint256.Int

	// SubmitMinedBlock enqueues a solved block for processing and returns immediately.
	// A full queue is reported as a SERVICE_UNAVAILABLE error, which is retryable.
	// Acceptance into the chain is decided asynchronously and is not reported back.
	SubmitMinedBlock(ctx context.Context, block *model.Block) error
}
