// Package miner is the mining coordinator. It builds candidate blocks from the chain
// head, searches them on a pool of CPU workers and hands solved blocks to the chain.
package miner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/services/blockchain"
	"github.com/halocoin/halominer/settings"
	"github.com/halocoin/halominer/ulogger"
	"github.com/halocoin/halominer/util/health"
	"github.com/halocoin/halominer/util/retry"
	"github.com/halocoin/halominer/util/tracing"
	"github.com/halocoin/halominer/wallet"
	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
)

// submitBackoff is the base wait between retries of a rejected submission.
const submitBackoff = 100 * time.Millisecond

// round is the snapshot a candidate was built from.
type round struct {
	generation *Generation
	headHeight int64
	txPoolHash *chainhash.Hash
	started    time.Time
}

type Miner struct {
	logger             ulogger.Logger
	settings           *settings.Settings
	blockchainClient   blockchain.ClientI
	wallet             wallet.Wallet
	builder            *TemplateBuilder
	pool               *WorkerPool
	finiteStateMachine *fsm.FSM
	enabled            atomic.Bool
	round              *round
	solved             *model.Block
	idleReason         string
}

// NewMiner creates the coordinator. When w is nil the wallet is loaded from the
// miner_wallet_private_key setting, and without a key the miner stays idle.
func NewMiner(_ context.Context, logger ulogger.Logger, tSettings *settings.Settings, blockchainClient blockchain.ClientI, w wallet.Wallet, opts ...PoolOption) (*Miner, error) {
	initPrometheusMetrics()

	if blockchainClient == nil {
		return nil, errors.NewInvalidArgumentError("[NewMiner] blockchain client is required")
	}

	if w == nil {
		if tSettings.Miner.WalletPrivateKey == "" {
			w = wallet.NoKeyWallet{}
		} else {
			keyWallet, err := wallet.NewKeyWallet(tSettings.Miner.WalletPrivateKey, false)
			if err != nil {
				return nil, errors.NewConfigurationError("[NewMiner] invalid miner_wallet_private_key", err)
			}

			w = keyWallet
		}
	}

	poolOpts := append([]PoolOption{WithStopTimeout(tSettings.Miner.WorkerStopTimeout)}, opts...)

	m := &Miner{
		logger:           logger,
		settings:         tSettings,
		blockchainClient: blockchainClient,
		wallet:           w,
		builder:          NewTemplateBuilder(tSettings.Miner.BlockVersion, blockchainClient.Target),
		pool:             NewWorkerPool(logger, tSettings.Miner.CoreCount, poolOpts...),
	}

	m.enabled.Store(tSettings.Miner.Enabled)
	m.finiteStateMachine = m.NewFiniteStateMachine()

	return m, nil
}

func (m *Miner) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		// Add liveness checks here. Don't include dependency checks.
		// If the service is stuck return http.StatusServiceUnavailable
		// to indicate a restart is needed
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "BlockchainClient", Check: m.blockchainClient.Health},
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (m *Miner) Init(_ context.Context) error {
	if keyWallet, ok := m.wallet.(*wallet.KeyWallet); ok {
		m.logger.Infof("[Miner] Mining to %s", keyWallet.Address())
	}

	return nil
}

// Start runs the coordinator loop until ctx is done. On the way out every worker is
// stopped, a worker that could not be stopped is returned as an error.
func (m *Miner) Start(ctx context.Context, readyCh chan<- struct{}) error {
	m.logger.Infof("[Miner] Starting miner with %d workers", m.pool.CoreCount())

	setStateGauge(m.finiteStateMachine.Current())

	if readyCh != nil {
		close(readyCh)
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Infof("[Miner] Stopping miner as ctx is done")
			return m.Stop(context.WithoutCancel(ctx))
		default:
		}

		switch m.finiteStateMachine.Current() {
		case StateIdle:
			m.idle(ctx)
		case StateBuilding:
			m.build(ctx)
		case StateSearching:
			m.search(ctx)
		case StateHandoff:
			m.handoff(ctx)
		case StateStopped:
			// a build racing with Stop may have spawned workers after the pool was stopped
			return m.pool.Close()
		}
	}
}

// Stop terminates the workers, closes the pool so no later round can spawn new ones,
// and moves the coordinator to STOPPED. It is safe to call more than once.
func (m *Miner) Stop(ctx context.Context) error {
	err := m.pool.Close()
	if err != nil {
		m.logger.Errorf("[Miner] failed to stop search workers: %v", err)
	}

	if m.finiteStateMachine.Can(EventStop) {
		if fsmErr := m.finiteStateMachine.Event(ctx, EventStop); fsmErr != nil {
			m.logger.Warnf("[Miner] failed to send STOP event: %v", fsmErr)
		}
	}

	return err
}

// SetEnabled switches mining on or off. A disabled miner finishes nothing: the running
// generation is dropped at the next poll and the coordinator idles.
func (m *Miner) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

func (m *Miner) GetFSMCurrentState() string {
	return m.finiteStateMachine.Current()
}

func (m *Miner) idle(ctx context.Context) {
	if reason := m.notReadyReason(ctx); reason != "" {
		if reason != m.idleReason {
			m.logger.Infof("[Miner] Not mining: %s", reason)
			m.idleReason = reason
		}

		sleep(ctx, m.settings.Miner.IdlePollInterval)

		return
	}

	m.idleReason = ""
	m.event(ctx, EventBuild)
}

func (m *Miner) build(ctx context.Context) {
	r, candidate, err := m.prepareCandidate(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warnf("[Miner] failed to build candidate: %v", err)
		}

		m.round = nil
		m.stopPool()
		sleep(ctx, m.settings.Miner.IdlePollInterval)
		m.event(ctx, EventPause)

		return
	}

	r.generation, err = m.pool.Restart(ctx, candidate)
	if r.generation == nil {
		// the pool was closed by Stop while the candidate was being built
		m.logger.Infof("[Miner] Not searching block %d: %v", candidate.Height, err)
		m.round = nil

		return
	}

	if err != nil {
		m.logger.Errorf("[Miner] %v", err)
	}

	m.round = r

	m.logger.Debugf("[Miner] Searching block %d with %d txs on generation %s", candidate.Height, len(candidate.Txs), r.generation.ID)

	m.event(ctx, EventSearch)
}

func (m *Miner) prepareCandidate(ctx context.Context) (*round, *model.Block, error) {
	pubKey, ok := m.wallet.MinerPublicKey()
	if !ok {
		return nil, nil, errors.NewConfigurationError("no miner public key")
	}

	height, err := m.blockchainClient.GetBestHeight(ctx)
	if err != nil {
		return nil, nil, err
	}

	var prev *model.Block

	if height >= 0 {
		//nolint:gosec // G115: height is a non-negative block height
		if prev, err = m.blockchainClient.GetBlockByHeight(ctx, uint32(height)); err != nil {
			return nil, nil, err
		}
	}

	txs, err := m.blockchainClient.GetPendingTransactions(ctx)
	if err != nil {
		return nil, nil, err
	}

	txPoolHash, err := model.TxPoolHash(txs)
	if err != nil {
		return nil, nil, errors.NewProcessingError("failed to hash the tx pool", err)
	}

	candidate, err := m.builder.Build(prev, txs, pubKey)
	if err != nil {
		return nil, nil, err
	}

	return &round{
		headHeight: height,
		txPoolHash: txPoolHash,
		started:    time.Now(),
	}, candidate, nil
}

func (m *Miner) search(ctx context.Context) {
	g := m.round.generation

	timer := time.NewTimer(m.settings.Miner.ResultPollTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case block := <-g.Results():
		m.found(ctx, block)
		return
	case <-timer.C:
	}

	if reason := m.notReadyReason(ctx); reason != "" {
		m.logger.Infof("[Miner] Pausing: %s", reason)
		m.idleReason = reason
		m.round = nil
		m.stopPool()
		m.event(ctx, EventPause)

		return
	}

	if reason := m.staleReason(ctx); reason != "" {
		prometheusMinerRestarts.WithLabelValues(reason).Inc()
		m.logger.Infof("[Miner] Candidate %d is stale (%s), restarting", g.Candidate.Height, reason)
		m.event(ctx, EventRestart)

		return
	}

	if g.AllDead() {
		select {
		case block := <-g.Results():
			m.found(ctx, block)
		default:
			prometheusMinerRestarts.WithLabelValues("all_dead").Inc()
			m.logger.Warnf("[Miner] All workers of generation %s exited without a result, restarting", g.ID)
			m.event(ctx, EventRestart)
		}
	}
}

// staleReason names what changed since the round was built, or returns "" while the
// candidate is still current.
func (m *Miner) staleReason(ctx context.Context) string {
	height, err := m.blockchainClient.GetBestHeight(ctx)
	if err != nil {
		m.logger.Warnf("[Miner] failed to get best height: %v", err)
		return ""
	}

	if height != m.round.headHeight {
		return "height"
	}

	txs, err := m.blockchainClient.GetPendingTransactions(ctx)
	if err != nil {
		m.logger.Warnf("[Miner] failed to get pending transactions: %v", err)
		return ""
	}

	txPoolHash, err := model.TxPoolHash(txs)
	if err != nil || !txPoolHash.IsEqual(m.round.txPoolHash) {
		return "txpool"
	}

	return ""
}

func (m *Miner) found(ctx context.Context, block *model.Block) {
	m.solved = block
	m.event(ctx, EventFound)
}

// handoff forwards the first solution of the round. The generation is stopped
// before submitting, so a later or duplicate solution of the same round is never read.
func (m *Miner) handoff(ctx context.Context) {
	block, r := m.solved, m.round
	m.solved, m.round = nil, nil

	m.stopPool()

	if block == nil {
		m.event(ctx, EventBuild)
		return
	}

	blockHash, err := block.Hash()
	if err != nil {
		m.logger.Errorf("[Miner] solved block %d cannot be hashed: %v", block.Height, err)
		m.event(ctx, EventBuild)

		return
	}

	m.logger.Infof("[Miner] Found block %d solution %s, submitting", block.Height, blockHash)

	spanCtx, span := tracing.Start(ctx, "Miner:SubmitMinedBlock",
		attribute.Int64("height", int64(block.Height)),
		attribute.String("hash", blockHash.String()),
	)

	_, err = retry.Retry(spanCtx, m.logger, func() (struct{}, error) {
		return struct{}{}, m.blockchainClient.SubmitMinedBlock(spanCtx, block)
	},
		retry.WithRetryCount(max(m.settings.Miner.SubmitRetryCount, 1)),
		retry.WithBackoffMultiplier(1),
		retry.WithBackoffDurationType(submitBackoff),
		retry.WithRetryIf(errors.IsRetryableError),
		retry.WithMessage(fmt.Sprintf("[Miner] submitting block %d %s", block.Height, blockHash)),
	)

	tracing.EndSpan(span, err)

	switch {
	case err == nil:
		prometheusMinerSubmitted.Inc()

		if r != nil {
			prometheusBlockMined.Observe(time.Since(r.started).Seconds())
		}
	case ctx.Err() != nil:
		return
	default:
		prometheusMinerSubmitErrors.Inc()
		m.logger.Errorf("[Miner] failed to submit block %d %s: %v", block.Height, blockHash, err)
	}

	m.event(ctx, EventBuild)
}

// notReadyReason returns why mining cannot run right now, or "" when it can.
func (m *Miner) notReadyReason(ctx context.Context) string {
	if !m.enabled.Load() {
		return "mining is disabled"
	}

	if _, ok := m.wallet.MinerPublicKey(); !ok {
		return "no miner public key"
	}

	state, err := m.blockchainClient.GetChainState(ctx)
	if err != nil {
		return fmt.Sprintf("chain state unavailable: %v", err)
	}

	if state == blockchain.ChainStateSyncing {
		return "chain is syncing"
	}

	return ""
}

func (m *Miner) stopPool() {
	if err := m.pool.Stop(); err != nil {
		m.logger.Errorf("[Miner] failed to stop search workers: %v", err)
	}
}

func (m *Miner) event(ctx context.Context, event string) {
	if m.finiteStateMachine.Current() == StateStopped {
		return
	}

	if err := m.finiteStateMachine.Event(ctx, event); err != nil && ctx.Err() == nil {
		m.logger.Warnf("[Miner] %s event from state %s failed: %v", event, m.finiteStateMachine.Current(), err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
