package sql

import (
	"context"
	"database/sql"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
)

func (s *SQL) GetBestHeight(ctx context.Context) (int64, error) {
	var height int64

	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(height), -1) FROM blocks`).Scan(&height); err != nil {
		return -1, errors.NewStorageError("failed to read best height", err)
	}

	return height, nil
}

func (s *SQL) GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error) {
	op := s.responseCache.Begin(s.cacheKey("GetBlockByHeight-%d", height))

	if cached := op.Get(); cached != nil {
		if block, ok := cached.Value().(*model.Block); ok && block != nil {
			return block.Clone(), nil
		}
	}

	block, err := s.queryBlock(ctx, `SELECT block_data FROM blocks WHERE height = $1`, int64(height))
	if err != nil {
		if errors.Is(err, errors.ErrBlockNotFound) {
			return nil, errors.NewBlockNotFoundError("no block at height %d", height, err)
		}

		return nil, err
	}

	op.Set(block.Clone(), cacheTTL)

	return block, nil
}

func (s *SQL) GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error) {
	op := s.responseCache.Begin(s.cacheKey("GetBlock-%s", blockHash))

	if cached := op.Get(); cached != nil {
		if block, ok := cached.Value().(*model.Block); ok && block != nil {
			return block.Clone(), nil
		}
	}

	block, err := s.queryBlock(ctx, `SELECT block_data FROM blocks WHERE hash = $1`, blockHash.CloneBytes())
	if err != nil {
		return nil, err
	}

	op.Set(block.Clone(), cacheTTL)

	return block, nil
}

func (s *SQL) GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error) {
	var exists bool

	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM blocks WHERE hash = $1)`, blockHash.CloneBytes()).Scan(&exists)
	if err != nil {
		return false, errors.NewStorageError("failed to check block %s", blockHash, err)
	}

	return exists, nil
}

func (s *SQL) queryBlock(ctx context.Context, q string, arg interface{}) (*model.Block, error) {
	var data []byte

	if err := s.db.QueryRowContext(ctx, q, arg).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("block not found", err)
		}

		return nil, errors.NewStorageError("failed to read block", err)
	}

	block, err := model.NewBlockFromBytes(data)
	if err != nil {
		return nil, errors.NewStorageError("stored block is corrupt", err)
	}

	return block, nil
}
