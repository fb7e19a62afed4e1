// Package memory keeps the chain in process memory. It is used by tests and by
// short-lived devnets that do not need to survive a restart.
package memory

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
)

type Memory struct {
	mu         sync.RWMutex
	blocks     map[chainhash.Hash]*model.Block
	byHeight   map[uint32]*model.Block
	bestHeight int64
	closed     bool
}

func New() *Memory {
	return &Memory{
		blocks:     map[chainhash.Hash]*model.Block{},
		byHeight:   map[uint32]*model.Block{},
		bestHeight: -1,
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return http.StatusServiceUnavailable, "memory store is closed", nil
	}

	return http.StatusOK, "OK", nil
}

func (m *Memory) GetBestHeight(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.bestHeight, nil
}

func (m *Memory) GetBlockByHeight(_ context.Context, height uint32) (*model.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	block, ok := m.byHeight[height]
	if !ok {
		return nil, errors.NewBlockNotFoundError("no block at height %d", height)
	}

	return block.Clone(), nil
}

func (m *Memory) GetBlock(_ context.Context, blockHash *chainhash.Hash) (*model.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	block, ok := m.blocks[*blockHash]
	if !ok {
		return nil, errors.NewBlockNotFoundError("block %s not found", blockHash)
	}

	return block.Clone(), nil
}

func (m *Memory) GetBlockExists(_ context.Context, blockHash *chainhash.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blocks[*blockHash]

	return ok, nil
}

func (m *Memory) StoreBlock(_ context.Context, block *model.Block) error {
	hash, err := block.Hash()
	if err != nil {
		return errors.NewStorageError("failed to hash block %d", block.Height, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[*hash]; ok {
		return errors.NewBlockExistsError("block already exists in the store: %s", hash)
	}

	if _, ok := m.byHeight[block.Height]; ok {
		return errors.NewBlockExistsError("a block already exists at height %d", block.Height)
	}

	stored := block.Clone()
	m.blocks[*hash] = stored
	m.byHeight[block.Height] = stored

	if int64(block.Height) > m.bestHeight {
		m.bestHeight = int64(block.Height)
	}

	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}
