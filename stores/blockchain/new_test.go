package blockchain

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/settings"
	"github.com/halocoin/halominer/ulogger"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChain(t *testing.T, n int) []*model.Block {
	t.Helper()

	blocks := make([]*model.Block, 0, n)

	for i := 0; i < n; i++ {
		b := &model.Block{
			Version:    "test",
			Txs:        []*model.Transaction{model.NewMintTransaction([]byte{0x02, byte(i)})},
			Height:     uint32(i), //nolint:gosec // small test values
			Time:       int64(1000 + i),
			Target:     uint256.NewInt(uint64(i + 1)),
			DiffLength: uint256.NewInt(uint64(i + 100)),
		}

		if i > 0 {
			prev, err := blocks[i-1].Hash()
			require.NoError(t, err)

			b.PrevHash = prev
		}

		blocks = append(blocks, b.WithNonce(uint64(i)))
	}

	return blocks
}

func TestStores(t *testing.T) {
	for _, storeURL := range []string{"memory:///", "sqlitememory:///blockchain"} {
		t.Run(storeURL, func(t *testing.T) {
			ctx := context.Background()

			u, err := url.Parse(storeURL)
			require.NoError(t, err)

			store, err := NewStore(ulogger.TestLogger{}, u, settings.NewSettings())
			require.NoError(t, err)

			defer func() {
				_ = store.Close()
			}()

			status, _, err := store.Health(ctx, false)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, status)

			t.Run("empty chain", func(t *testing.T) {
				height, err := store.GetBestHeight(ctx)
				require.NoError(t, err)
				assert.Equal(t, int64(-1), height)

				_, err = store.GetBlockByHeight(ctx, 0)
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
			})

			chain := testChain(t, 3)

			t.Run("store and read back", func(t *testing.T) {
				for _, b := range chain {
					require.NoError(t, store.StoreBlock(ctx, b))
				}

				height, err := store.GetBestHeight(ctx)
				require.NoError(t, err)
				assert.Equal(t, int64(2), height)

				for _, b := range chain {
					hash, err := b.Hash()
					require.NoError(t, err)

					byHeight, err := store.GetBlockByHeight(ctx, b.Height)
					require.NoError(t, err)

					storedHash, err := byHeight.Hash()
					require.NoError(t, err)
					assert.Equal(t, *hash, *storedHash)

					byHash, err := store.GetBlock(ctx, hash)
					require.NoError(t, err)
					assert.Equal(t, b.Height, byHash.Height)

					exists, err := store.GetBlockExists(ctx, hash)
					require.NoError(t, err)
					assert.True(t, exists)
				}
			})

			t.Run("cached reads are isolated", func(t *testing.T) {
				first, err := store.GetBlockByHeight(ctx, 1)
				require.NoError(t, err)

				first.Target.SetUint64(999)

				second, err := store.GetBlockByHeight(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, uint64(2), second.Target.Uint64())
			})

			t.Run("duplicate", func(t *testing.T) {
				err := store.StoreBlock(ctx, chain[1])
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrBlockExists))
			})

			t.Run("unknown hash", func(t *testing.T) {
				unknown := testChain(t, 5)[4]

				hash, err := unknown.Hash()
				require.NoError(t, err)

				exists, err := store.GetBlockExists(ctx, hash)
				require.NoError(t, err)
				assert.False(t, exists)

				_, err = store.GetBlock(ctx, hash)
				assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
			})
		})
	}
}

func TestNewStoreUnknownScheme(t *testing.T) {
	u, err := url.Parse("redis://localhost")
	require.NoError(t, err)

	_, err = NewStore(ulogger.TestLogger{}, u, settings.NewSettings())
	require.Error(t, err)

	_, err = NewStore(ulogger.TestLogger{}, nil, settings.NewSettings())
	require.Error(t, err)
}
