package sql

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// StoreBlock appends block to the blocks table. The parent row is resolved from
// the previous hash, genesis has no parent.
func (s *SQL) StoreBlock(ctx context.Context, block *model.Block) error {
	hash, err := block.Hash()
	if err != nil {
		return errors.NewStorageError("failed to hash block %d", block.Height, err)
	}

	data, err := block.Bytes()
	if err != nil {
		return errors.NewStorageError("failed to serialize block %d", block.Height, err)
	}

	var previousHash interface{}
	if block.PrevHash != nil {
		previousHash = block.PrevHash.CloneBytes()
	}

	target := block.Target.Bytes32()
	diffLength := block.DiffLength.Bytes32()

	q := `
		INSERT INTO blocks (
			 parent_id
			,hash
			,previous_hash
			,height
			,block_time
			,target
			,diff_length
			,tx_count
			,block_data
		) VALUES ((SELECT id FROM blocks WHERE hash = $2), $1, $2, $3, $4, $5, $6, $7, $8)
	`

	if _, err = s.db.ExecContext(ctx, q,
		hash.CloneBytes(),
		previousHash,
		int64(block.Height),
		block.Time,
		target[:],
		diffLength[:],
		len(block.Txs),
		data,
	); err != nil {
		return s.parseSQLError(err, hash)
	}

	s.responseCache.DeleteAll()

	s.logger.Debugf("[StoreBlock] stored block %d %s", block.Height, hash)

	return nil
}

// parseSQLError turns unique constraint violations of either backend into BLOCK_EXISTS errors.
func (*SQL) parseSQLError(err error, hash *chainhash.Hash) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // Duplicate constraint violation
		return errors.NewBlockExistsError("block already exists in the database: %s", hash, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code()&0xff) == sqlite3.SQLITE_CONSTRAINT {
		return errors.NewBlockExistsError("block already exists in the database: %s", hash, err)
	}

	return errors.NewStorageError("failed to store block", err)
}
