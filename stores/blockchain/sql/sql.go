// Package sql implements the blockchain store on top of database/sql. Postgres is
// reached through lib/pq, sqlite and in-memory sqlite through modernc.org/sqlite.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/settings"
	"github.com/halocoin/halominer/ulogger"
	"github.com/halocoin/halominer/util"
)

const cacheTTL = 2 * time.Minute

type SQL struct {
	db            *sql.DB
	engine        util.SQLEngine
	logger        ulogger.Logger
	responseCache *GenerationalCache
}

func New(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*SQL, error) {
	logger = logger.New("bcsql")

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	switch util.SQLEngine(storeURL.Scheme) {
	case util.Postgres:
		if err = createPostgresSchema(db); err != nil {
			return nil, errors.NewStorageError("failed to create postgres schema", err)
		}

	case util.Sqlite, util.SqliteMemory:
		if err = createSqliteSchema(db); err != nil {
			return nil, errors.NewStorageError("failed to create sqlite schema", err)
		}

	default:
		return nil, errors.NewStorageError("unknown database engine: %s", storeURL.Scheme)
	}

	return &SQL{
		db:            db,
		engine:        util.SQLEngine(storeURL.Scheme),
		logger:        logger,
		responseCache: NewGenerationalCache(),
	}, nil
}

func (s *SQL) GetDB() *sql.DB {
	return s.db
}

func (s *SQL) GetDBEngine() util.SQLEngine {
	return s.engine
}

func (s *SQL) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, fmt.Sprintf("%s database is not reachable", s.engine), err
	}

	return http.StatusOK, "OK", nil
}

func (s *SQL) Close() error {
	s.responseCache.Stop()
	return s.db.Close()
}

func (s *SQL) cacheKey(format string, args ...interface{}) chainhash.Hash {
	return chainhash.HashH([]byte(fmt.Sprintf(format, args...)))
}

func createPostgresSchema(db *sql.DB) error {
	if _, err := db.Exec(`
      CREATE TABLE IF NOT EXISTS blocks (
	    id              BIGSERIAL PRIMARY KEY
	    ,parent_id      BIGINT NULL REFERENCES blocks(id)
	    ,hash           BYTEA NOT NULL
	    ,previous_hash  BYTEA NULL
	    ,height         BIGINT NOT NULL
	    ,block_time     BIGINT NOT NULL
	    ,target         BYTEA NOT NULL
	    ,diff_length    BYTEA NOT NULL
	    ,tx_count       BIGINT NOT NULL
	    ,block_data     BYTEA NOT NULL
	    ,inserted_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create blocks table", err)
	}

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_hash ON blocks (hash);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create ux_blocks_hash index", err)
	}

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_height ON blocks (height);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create ux_blocks_height index", err)
	}

	return nil
}

func createSqliteSchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blocks (
		 id             INTEGER PRIMARY KEY AUTOINCREMENT
		,parent_id      INTEGER NULL REFERENCES blocks(id)
		,hash           BLOB NOT NULL
		,previous_hash  BLOB NULL
		,height         BIGINT NOT NULL
		,block_time     BIGINT NOT NULL
		,target         BLOB NOT NULL
		,diff_length    BLOB NOT NULL
		,tx_count       BIGINT NOT NULL
		,block_data     BLOB NOT NULL
		,inserted_at    TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create blocks table", err)
	}

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_hash ON blocks (hash);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create ux_blocks_hash index", err)
	}

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_height ON blocks (height);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create ux_blocks_height index", err)
	}

	return nil
}
