package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/services/blockchain"
	"github.com/halocoin/halominer/services/miner"
	"github.com/halocoin/halominer/services/miner/cpuminer"
	blockchainstore "github.com/halocoin/halominer/stores/blockchain"
	"github.com/halocoin/halominer/ulogger"
	"github.com/halocoin/halominer/util/retry"
	"github.com/halocoin/halominer/wallet"
	"github.com/urfave/cli/v2"
)

func mineCommand() *cli.Command {
	return &cli.Command{
		Name:  "mine",
		Usage: "mine blocks on a single worker with a bounded attempt budget and exit",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "blocks",
				Usage: "number of blocks to mine",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "fresh nonce ranges to try per block before giving up",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "blockchain store url",
				Value: "memory:///",
			},
			&cli.StringFlag{
				Name:  "wif",
				Usage: "miner private key in WIF, a throwaway key is generated when unset",
			},
		},
		Action: mine,
	}
}

func mine(c *cli.Context) error {
	tSettings, err := settingsFromFlags(c)
	if err != nil {
		return err
	}

	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel))

	storeURL, err := url.Parse(c.String("store"))
	if err != nil {
		return errors.NewConfigurationError("invalid store url %q", c.String("store"), err)
	}

	store, err := blockchainstore.NewStore(logger.New("bcstore"), storeURL, tSettings)
	if err != nil {
		return err
	}

	defer func() {
		_ = store.Close()
	}()

	wifKey := tSettings.Miner.WalletPrivateKey
	if wifKey == "" {
		if wifKey, err = wallet.GenerateWIF(false); err != nil {
			return err
		}

		logger.Warnf("no miner key configured, crediting a throwaway key")
	}

	keyWallet, err := wallet.NewKeyWallet(wifKey, false)
	if err != nil {
		return err
	}

	chain, err := blockchain.New(c.Context, logger.New("bchn"), tSettings, store, nil)
	if err != nil {
		return err
	}

	pubKey, _ := keyWallet.MinerPublicKey()

	m := &offlineMiner{
		logger:      logger,
		chain:       chain,
		builder:     miner.NewTemplateBuilder(tSettings.Miner.BlockVersion, chain.Target),
		pubKey:      pubKey,
		maxAttempts: tSettings.Miner.MaxAttempts,
		retries:     c.Int("retries"),
	}

	return m.mineBlocks(c.Context, c.App.Writer, c.Int("blocks"))
}

type offlineChain interface {
	GetBestHeight(ctx context.Context) (int64, error)
	GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error)
	GetPendingTransactions(ctx context.Context) ([]*model.Transaction, error)
	ProcessBlock(ctx context.Context, block *model.Block) error
}

// offlineMiner extends a chain one block at a time without the worker pool.
type offlineMiner struct {
	logger      ulogger.Logger
	chain       offlineChain
	builder     *miner.TemplateBuilder
	pubKey      []byte
	maxAttempts uint64
	retries     int
}

// mineBlocks mines count blocks and writes the height and hash of each to w.
func (m *offlineMiner) mineBlocks(ctx context.Context, w io.Writer, count int) error {
	for i := 0; i < count; i++ {
		block, err := m.mineNext(ctx)
		if err != nil {
			return err
		}

		hash, err := block.Hash()
		if err != nil {
			return errors.NewProcessingError("mined block %d cannot be hashed", block.Height, err)
		}

		if _, err = fmt.Fprintf(w, "%d %s\n", block.Height, hash); err != nil {
			return errors.NewProcessingError("failed to write block %d", block.Height, err)
		}
	}

	return nil
}

// mineNext builds a candidate on the current head, mines it with a fresh random
// nonce range per try and appends the solution.
func (m *offlineMiner) mineNext(ctx context.Context) (*model.Block, error) {
	var prev *model.Block

	height, err := m.chain.GetBestHeight(ctx)
	if err != nil {
		return nil, err
	}

	if height >= 0 {
		//nolint:gosec // G115: height is a stored uint32 height
		if prev, err = m.chain.GetBlockByHeight(ctx, uint32(height)); err != nil {
			return nil, err
		}
	}

	txs, err := m.chain.GetPendingTransactions(ctx)
	if err != nil {
		return nil, err
	}

	candidate, err := m.builder.Build(prev, txs, m.pubKey)
	if err != nil {
		return nil, err
	}

	var total uint64

	block, err := retry.Retry(ctx, m.logger, func() (*model.Block, error) {
		solved, attempts, err := cpuminer.Mine(ctx, candidate, m.maxAttempts)
		total += attempts

		return solved, err
	},
		retry.WithRetryCount(max(m.retries, 1)),
		retry.WithBackoffMultiplier(0),
		retry.WithBackoffDurationType(time.Millisecond),
		retry.WithRetryIf(errors.IsExhausted),
		retry.WithMessage(fmt.Sprintf("[Mine] block %d not solved, retrying", candidate.Height)),
	)
	if err != nil {
		return nil, err
	}

	if err = m.chain.ProcessBlock(ctx, block); err != nil {
		return nil, err
	}

	m.logger.Infof("[Mine] mined block %d after %d attempts", block.Height, total)

	return block, nil
}
