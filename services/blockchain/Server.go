package blockchain

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/settings"
	blockchainstore "github.com/halocoin/halominer/stores/blockchain"
	"github.com/halocoin/halominer/ulogger"
	"github.com/halocoin/halominer/util"
	"github.com/halocoin/halominer/util/health"
	"github.com/halocoin/halominer/util/tracing"
	"github.com/holiman/uint256"
	"github.com/looplab/fsm"
	"github.com/ordishs/go-utils"
	"go.opentelemetry.io/otel/attribute"
)

// Blockchain is a single node devnet chain. It owns the transaction pool and appends
// submitted blocks that extend the head and meet their target. There is no fork
// handling: a block that does not extend the current head is rejected.
type Blockchain struct {
	logger             ulogger.Logger
	settings           *settings.Settings
	store              blockchainstore.Store
	target             TargetFunc
	finiteStateMachine *fsm.FSM
	blocksCh           chan *model.Block
	processMu          sync.Mutex
	txPoolMu           sync.RWMutex
	txPool             []*model.Transaction
}

// New creates the chain service. A nil target uses ConstantTarget of the
// blockchain_initial_target setting.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, store blockchainstore.Store, target TargetFunc) (*Blockchain, error) {
	initPrometheusMetrics()

	if store == nil {
		return nil, errors.NewInvalidArgumentError("[Blockchain] store is required")
	}

	if target == nil {
		var err error

		if target, err = ConstantTargetFromHex(tSettings.BlockChain.InitialTarget); err != nil {
			return nil, err
		}
	}

	b := &Blockchain{
		logger:   logger,
		settings: tSettings,
		store:    store,
		target:   target,
		blocksCh: make(chan *model.Block, max(tSettings.BlockChain.BlocksQueueSize, 1)),
		txPool:   make([]*model.Transaction, 0),
	}

	b.finiteStateMachine = b.NewFiniteStateMachine()

	return b, nil
}

func (b *Blockchain) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		// Add liveness checks here. Don't include dependency checks.
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "BlockchainStore", Check: b.store.Health},
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (b *Blockchain) Init(_ context.Context) error {
	return nil
}

// Start moves the chain to RUNNING and processes submitted blocks until ctx is done.
func (b *Blockchain) Start(ctx context.Context, readyCh chan<- struct{}) error {
	if err := b.finiteStateMachine.Event(ctx, FSMEventRun); err != nil {
		return errors.NewServiceError("[Blockchain] failed to start", err)
	}

	b.logger.Infof("[Blockchain] running, block queue capacity %d", cap(b.blocksCh))

	if readyCh != nil {
		close(readyCh)
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Infof("[Blockchain] Stopping block processing")
			return nil

		case block := <-b.blocksCh:
			prometheusBlockchainQueueDepth.Set(float64(len(b.blocksCh)))

			if err := b.ProcessBlock(ctx, block); err != nil {
				b.logger.Warnf("[Blockchain] rejected block %d: %v", block.Height, err)
			}
		}
	}
}

func (b *Blockchain) Stop(ctx context.Context) error {
	if !b.finiteStateMachine.Can(FSMEventStop) {
		return nil
	}

	if err := b.finiteStateMachine.Event(ctx, FSMEventStop); err != nil {
		return errors.NewServiceError("[Blockchain] failed to stop", err)
	}

	return nil
}

// CatchUpBlocks marks the node as syncing. Miners pause until Run is called.
func (b *Blockchain) CatchUpBlocks(ctx context.Context) error {
	if err := b.finiteStateMachine.Event(ctx, FSMEventCatchUpBlocks); err != nil {
		return errors.NewProcessingError("[Blockchain] cannot catch up from state %s", b.finiteStateMachine.Current(), err)
	}

	return nil
}

// Run returns a syncing node to normal operation.
func (b *Blockchain) Run(ctx context.Context) error {
	if err := b.finiteStateMachine.Event(ctx, FSMEventRun); err != nil {
		return errors.NewProcessingError("[Blockchain] cannot run from state %s", b.finiteStateMachine.Current(), err)
	}

	return nil
}

func (b *Blockchain) GetFSMCurrentState() string {
	return b.finiteStateMachine.Current()
}

func (b *Blockchain) GetChainState(_ context.Context) (ChainState, error) {
	return chainStateFromFSM(b.finiteStateMachine.Current()), nil
}

func (b *Blockchain) GetBestHeight(ctx context.Context) (int64, error) {
	return b.store.GetBestHeight(ctx)
}

func (b *Blockchain) GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error) {
	return b.store.GetBlockByHeight(ctx, height)
}

func (b *Blockchain) GetPendingTransactions(_ context.Context) ([]*model.Transaction, error) {
	b.txPoolMu.RLock()
	defer b.txPoolMu.RUnlock()

	txs := make([]*model.Transaction, len(b.txPool))
	copy(txs, b.txPool)

	return txs, nil
}

func (b *Blockchain) Target(height uint32) *uint256.Int {
	return b.target(height)
}

func (b *Blockchain) SubmitMinedBlock(ctx context.Context, block *model.Block) error {
	if block == nil {
		return errors.NewInvalidArgumentError("[Blockchain] cannot submit a nil block")
	}

	select {
	case <-ctx.Done():
		return errors.NewContextCanceledError("[Blockchain] submit of block %d cancelled", block.Height, ctx.Err())
	case b.blocksCh <- block:
		prometheusBlockchainQueueDepth.Set(float64(len(b.blocksCh)))
		return nil
	default:
		return errors.NewServiceUnavailableError("[Blockchain] block queue is full (%d)", cap(b.blocksCh))
	}
}

// AddTransaction appends tx to the pending pool. Mint transactions are created by
// miners only and are refused.
func (b *Blockchain) AddTransaction(_ context.Context, tx *model.Transaction) error {
	if tx == nil {
		return errors.NewTxInvalidError("[Blockchain] transaction is nil")
	}

	if tx.IsMint() {
		return errors.NewTxInvalidError("[Blockchain] mint transactions cannot be added to the pool")
	}

	b.txPoolMu.Lock()
	b.txPool = append(b.txPool, tx)
	size := len(b.txPool)
	b.txPoolMu.Unlock()

	prometheusBlockchainTxPoolSize.Set(float64(size))

	return nil
}

// ProcessBlock validates block against the current head and appends it.
func (b *Blockchain) ProcessBlock(ctx context.Context, block *model.Block) (err error) {
	start := time.Now()

	ctx, span := tracing.Start(ctx, "Blockchain:ProcessBlock", attribute.Int64("height", int64(block.Height)))

	b.processMu.Lock()
	defer b.processMu.Unlock()

	defer func() {
		prometheusBlockchainProcessBlock.Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
	}()

	if err = b.validateBlock(ctx, block); err != nil {
		prometheusBlockchainBlocksRejected.Inc()
		return err
	}

	if err = b.store.StoreBlock(ctx, block); err != nil {
		prometheusBlockchainBlocksRejected.Inc()
		return err
	}

	b.removeMinedTransactions(block.Txs)

	prometheusBlockchainBlocksAccepted.Inc()

	b.logger.Infof("[Blockchain] accepted block %d with %d txs", block.Height, len(block.Txs))

	return nil
}

func (b *Blockchain) validateBlock(ctx context.Context, block *model.Block) error {
	if block.Nonce == nil {
		return errors.NewBlockInvalidError("[ProcessBlock] block %d has no nonce", block.Height)
	}

	target := b.target(block.Height)
	if block.Target == nil || !block.Target.Eq(target) {
		return errors.NewBlockInvalidError("[ProcessBlock] block %d does not carry the target for its height", block.Height)
	}

	solved, powHash, err := block.HasMetTargetDifficulty()
	if err != nil {
		return errors.NewBlockInvalidError("[ProcessBlock] block %d cannot be hashed", block.Height, err)
	}

	if !solved {
		return errors.NewBlockInvalidError("[ProcessBlock] block %d proof of work %s is above target", block.Height, utils.ReverseAndHexEncodeSlice(powHash[:]))
	}

	if err = validateMint(block); err != nil {
		return err
	}

	head, err := b.store.GetBestHeight(ctx)
	if err != nil {
		return err
	}

	if head < 0 {
		if !block.IsGenesis() {
			return errors.NewBlockInvalidError("[ProcessBlock] chain is empty, expected genesis but got block %d", block.Height)
		}

		if block.DiffLength == nil || !block.DiffLength.Eq(util.Invert(target)) {
			return errors.NewBlockInvalidError("[ProcessBlock] genesis diffLength does not match its target")
		}

		return nil
	}

	if int64(block.Height) != head+1 {
		return errors.NewBlockInvalidError("[ProcessBlock] block %d does not extend head %d", block.Height, head)
	}

	//nolint:gosec // G115: head is a stored uint32 height
	prev, err := b.store.GetBlockByHeight(ctx, uint32(head))
	if err != nil {
		return err
	}

	prevHash, err := prev.Hash()
	if err != nil {
		return errors.NewBlockInvalidError("[ProcessBlock] head block %d cannot be hashed", head, err)
	}

	if block.PrevHash == nil || !block.PrevHash.IsEqual(prevHash) {
		return errors.NewBlockInvalidError("[ProcessBlock] block %d does not link to head %s", block.Height, prevHash)
	}

	if block.DiffLength == nil || !block.DiffLength.Eq(util.Sum(prev.DiffLength, util.Invert(target))) {
		return errors.NewBlockInvalidError("[ProcessBlock] block %d diffLength does not follow its parent", block.Height)
	}

	return nil
}

// validateMint checks that the block ends with its only mint transaction.
func validateMint(block *model.Block) error {
	if len(block.Txs) == 0 || !block.Txs[len(block.Txs)-1].IsMint() {
		return errors.NewBlockInvalidError("[ProcessBlock] block %d does not end with a mint transaction", block.Height)
	}

	for _, tx := range block.Txs[:len(block.Txs)-1] {
		if tx.IsMint() {
			return errors.NewBlockInvalidError("[ProcessBlock] block %d has more than one mint transaction", block.Height)
		}
	}

	return nil
}

// removeMinedTransactions drops one pool entry per mined transaction, so identical
// pending transactions that were not all mined stay in the pool.
func (b *Blockchain) removeMinedTransactions(txs []*model.Transaction) {
	mined := make(map[chainhash.Hash]int, len(txs))

	for _, tx := range txs {
		if hash, err := tx.Hash(); err == nil {
			mined[*hash]++
		}
	}

	b.txPoolMu.Lock()
	defer b.txPoolMu.Unlock()

	remaining := make([]*model.Transaction, 0, len(b.txPool))

	for _, tx := range b.txPool {
		hash, err := tx.Hash()
		if err == nil && mined[*hash] > 0 {
			mined[*hash]--
			continue
		}

		remaining = append(remaining, tx)
	}

	b.txPool = remaining

	prometheusBlockchainTxPoolSize.Set(float64(len(b.txPool)))
}
