package blockchain

import (
	"net/url"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/settings"
	"github.com/halocoin/halominer/stores/blockchain/memory"
	"github.com/halocoin/halominer/stores/blockchain/sql"
	"github.com/halocoin/halominer/ulogger"
)

// NewStore picks the implementation from the url scheme: memory, sqlite, sqlitememory or postgres.
func NewStore(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (Store, error) {
	if storeURL == nil {
		return nil, errors.NewConfigurationError("blockchain store url is not set")
	}

	switch storeURL.Scheme {
	case "memory":
		return memory.New(), nil
	case "postgres":
		fallthrough
	case "sqlitememory":
		fallthrough
	case "sqlite":
		return sql.New(logger, storeURL, tSettings)
	}

	return nil, errors.NewStorageError("unknown scheme: %s", storeURL.Scheme)
}
