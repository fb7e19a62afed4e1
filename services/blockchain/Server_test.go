package blockchain

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/settings"
	"github.com/halocoin/halominer/stores/blockchain/memory"
	"github.com/halocoin/halominer/ulogger"
	"github.com/halocoin/halominer/util"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

var minerKey = []byte{0x02, 0xaa, 0xbb}

func newTestBlockchain(t *testing.T, target *uint256.Int) *Blockchain {
	t.Helper()

	tSettings := settings.NewSettings()
	tSettings.BlockChain.BlocksQueueSize = 4

	b, err := New(context.Background(), ulogger.TestLogger{}, tSettings, memory.New(), ConstantTarget(target))
	require.NoError(t, err)

	return b
}

// nextBlock builds the successor of prev the same way a miner would, solved with nonce 1.
func nextBlock(t *testing.T, b *Blockchain, prev *model.Block, txs ...*model.Transaction) *model.Block {
	t.Helper()

	block := &model.Block{
		Version: "test",
		Txs:     append(txs, model.NewMintTransaction(minerKey)),
		Time:    time.Now().UnixMilli(),
	}

	if prev == nil {
		block.Target = b.Target(0)
		block.DiffLength = util.Invert(block.Target)
	} else {
		prevHash, err := prev.Hash()
		require.NoError(t, err)

		block.Height = prev.Height + 1
		block.Target = b.Target(block.Height)
		block.DiffLength = util.Sum(prev.DiffLength, util.Invert(block.Target))
		block.PrevHash = prevHash
	}

	return block.WithNonce(1)
}

func TestProcessBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("genesis and successor", func(t *testing.T) {
		b := newTestBlockchain(t, util.MaxTarget)

		height, err := b.GetBestHeight(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), height)

		genesis := nextBlock(t, b, nil)
		require.NoError(t, b.ProcessBlock(ctx, genesis))

		spend := &model.Transaction{Type: "spend", Count: 1, PubKeys: []string{"aa"}, Signatures: []string{"sig"}, To: "bb", Amount: 5}
		keep := &model.Transaction{Type: "spend", Count: 2, PubKeys: []string{"aa"}, Signatures: []string{"sig"}, To: "cc", Amount: 6}
		require.NoError(t, b.AddTransaction(ctx, spend))
		require.NoError(t, b.AddTransaction(ctx, keep))

		block1 := nextBlock(t, b, genesis, spend)
		require.NoError(t, b.ProcessBlock(ctx, block1))

		height, err = b.GetBestHeight(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), height)

		head, err := b.GetBlockByHeight(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, head.Txs, 2)

		pending, err := b.GetPendingTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "cc", pending[0].To)
	})

	t.Run("rejections", func(t *testing.T) {
		b := newTestBlockchain(t, util.MaxTarget)
		genesis := nextBlock(t, b, nil)

		notGenesis := nextBlock(t, b, genesis)
		require.True(t, errors.Is(b.ProcessBlock(ctx, notGenesis), errors.ErrBlockInvalid))

		require.NoError(t, b.ProcessBlock(ctx, genesis))

		tests := []struct {
			name   string
			mutate func(block *model.Block) *model.Block
		}{
			{"no nonce", func(block *model.Block) *model.Block {
				block.Nonce = nil
				return block
			}},
			{"wrong target", func(block *model.Block) *model.Block {
				block.Target = uint256.NewInt(5)
				return block
			}},
			{"wrong height", func(block *model.Block) *model.Block {
				block.Height = 5
				return block
			}},
			{"wrong link", func(block *model.Block) *model.Block {
				block.PrevHash = nil
				return block
			}},
			{"wrong diffLength", func(block *model.Block) *model.Block {
				block.DiffLength = uint256.NewInt(1)
				return block
			}},
			{"missing mint", func(block *model.Block) *model.Block {
				block.Txs = block.Txs[:0]
				return block
			}},
			{"two mints", func(block *model.Block) *model.Block {
				block.Txs = append([]*model.Transaction{model.NewMintTransaction(minerKey)}, block.Txs...)
				return block
			}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				block := tt.mutate(nextBlock(t, b, genesis))

				err := b.ProcessBlock(ctx, block)
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
			})
		}

		height, err := b.GetBestHeight(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), height)
	})

	t.Run("duplicate", func(t *testing.T) {
		b := newTestBlockchain(t, util.MaxTarget)
		genesis := nextBlock(t, b, nil)

		require.NoError(t, b.ProcessBlock(ctx, genesis))
		require.Error(t, b.ProcessBlock(ctx, genesis))
	})

	t.Run("target not met", func(t *testing.T) {
		b := newTestBlockchain(t, uint256.NewInt(0))

		err := b.ProcessBlock(ctx, nextBlock(t, b, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "above target")
	})
}

func TestSubmitMinedBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("queue full is retryable", func(t *testing.T) {
		tSettings := settings.NewSettings()
		tSettings.BlockChain.BlocksQueueSize = 1

		b, err := New(ctx, ulogger.TestLogger{}, tSettings, memory.New(), ConstantTarget(util.MaxTarget))
		require.NoError(t, err)

		genesis := nextBlock(t, b, nil)
		require.NoError(t, b.SubmitMinedBlock(ctx, genesis))

		err = b.SubmitMinedBlock(ctx, genesis)
		require.Error(t, err)
		assert.True(t, errors.IsRetryableError(err))

		require.Error(t, b.SubmitMinedBlock(ctx, nil))
	})

	t.Run("start processes the queue", func(t *testing.T) {
		b := newTestBlockchain(t, util.MaxTarget)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		state, err := b.GetChainState(ctx)
		require.NoError(t, err)
		assert.Equal(t, ChainStateStopped, state)

		readyCh := make(chan struct{})
		done := make(chan error, 1)

		go func() {
			done <- b.Start(ctx, readyCh)
		}()

		<-readyCh

		state, err = b.GetChainState(ctx)
		require.NoError(t, err)
		assert.Equal(t, ChainStateNormal, state)

		require.NoError(t, b.SubmitMinedBlock(ctx, nextBlock(t, b, nil)))

		require.Eventually(t, func() bool {
			height, err := b.GetBestHeight(ctx)
			return err == nil && height == 0
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, b.CatchUpBlocks(ctx))

		state, err = b.GetChainState(ctx)
		require.NoError(t, err)
		assert.Equal(t, ChainStateSyncing, state)

		require.NoError(t, b.Run(ctx))

		cancel()
		require.NoError(t, <-done)

		require.NoError(t, b.Stop(context.Background()))
		assert.Equal(t, FSMStateStopped, b.GetFSMCurrentState())

		// stopping twice is a no-op
		require.NoError(t, b.Stop(context.Background()))
	})
}

func TestProcessBlockKeepsUnminedDuplicates(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t, util.MaxTarget)

	genesis := nextBlock(t, b, nil)
	require.NoError(t, b.ProcessBlock(ctx, genesis))

	spend := &model.Transaction{Type: "spend", Count: 1, PubKeys: []string{"aa"}, Signatures: []string{"sig"}, To: "bb", Amount: 5}
	other := &model.Transaction{Type: "spend", Count: 2, PubKeys: []string{"aa"}, Signatures: []string{"sig"}, To: "cc", Amount: 1}

	for _, tx := range []*model.Transaction{spend, spend, other, spend} {
		dup := *tx
		require.NoError(t, b.AddTransaction(ctx, &dup))
	}

	// two of the three identical spends are mined
	block1 := nextBlock(t, b, genesis, spend, spend)
	require.NoError(t, b.ProcessBlock(ctx, block1))

	pending, err := b.GetPendingTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "cc", pending[0].To)
	assert.Equal(t, "bb", pending[1].To)
}

func TestAddTransaction(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t, util.MaxTarget)

	require.Error(t, b.AddTransaction(ctx, nil))
	require.Error(t, b.AddTransaction(ctx, model.NewMintTransaction(minerKey)))

	require.NoError(t, b.AddTransaction(ctx, &model.Transaction{Type: "spend", Count: 1}))

	pending, err := b.GetPendingTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// the snapshot is a copy
	pending[0] = nil

	pending, err = b.GetPendingTransactions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, pending[0])
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	b := newTestBlockchain(t, util.MaxTarget)

	status, msg, err := b.Health(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", msg)

	status, msg, err = b.Health(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, msg, "BlockchainStore")
}

func TestConstantTarget(t *testing.T) {
	target := uint256.NewInt(42)
	fn := ConstantTarget(target)

	got := fn(7)
	got.SetUint64(1)

	assert.Equal(t, uint64(42), fn(7).Uint64())
	assert.Equal(t, uint64(42), target.Uint64())

	fn, err := ConstantTargetFromHex(settings.DefaultInitialTarget)
	require.NoError(t, err)
	assert.True(t, fn(0).Eq(new(uint256.Int).Rsh(util.MaxTarget, 16)))

	_, err = ConstantTargetFromHex("not hex")
	require.Error(t, err)
}

func TestProcessBlockSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	defer otel.SetTracerProvider(noop.NewTracerProvider())

	ctx := context.Background()
	b := newTestBlockchain(t, util.MaxTarget)
	genesis := nextBlock(t, b, nil)

	require.NoError(t, b.ProcessBlock(ctx, genesis))
	require.Error(t, b.ProcessBlock(ctx, genesis))

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	for _, span := range ended {
		assert.Equal(t, "Blockchain:ProcessBlock", span.Name())
	}

	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}
