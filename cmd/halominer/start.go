package main

import (
	"context"
	"net/url"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/services/blockchain"
	"github.com/halocoin/halominer/services/miner"
	"github.com/halocoin/halominer/settings"
	blockchainstore "github.com/halocoin/halominer/stores/blockchain"
	"github.com/halocoin/halominer/ulogger"
	"github.com/halocoin/halominer/util/servicemanager"
	"github.com/halocoin/halominer/util/tracing"
	"github.com/urfave/cli/v2"
)

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "run the devnet chain and the miner until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "store",
				Usage: "blockchain store url, overrides blockchain_store",
			},
			&cli.StringFlag{
				Name:  "wif",
				Usage: "miner private key in WIF, overrides miner_wallet_private_key",
			},
			&cli.IntFlag{
				Name:  "cores",
				Usage: "number of search workers, overrides miner_core_count",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "address of the metrics and health server, overrides metrics_listen_address",
			},
		},
		Action: start,
	}
}

func start(c *cli.Context) error {
	tSettings, err := settingsFromFlags(c)
	if err != nil {
		return err
	}

	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel))

	if tSettings.Tracing.Enabled {
		tp, err := tracing.InitTracer(c.Context, tSettings, version)
		if err != nil {
			return err
		}

		defer func() {
			if err := tracing.ShutdownTracer(context.WithoutCancel(c.Context), tp); err != nil {
				logger.Errorf("failed to shut down tracer: %v", err)
			}
		}()
	}

	store, err := blockchainstore.NewStore(logger.New("bcstore"), tSettings.BlockChain.StoreURL, tSettings)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("failed to close blockchain store: %v", err)
		}
	}()

	sm := servicemanager.NewServiceManager(c.Context, logger)

	chain, err := blockchain.New(sm.Ctx, logger.New("bchn"), tSettings, store, nil)
	if err != nil {
		return err
	}

	minerService, err := miner.NewMiner(sm.Ctx, logger.New("minr"), tSettings, chain, nil)
	if err != nil {
		return err
	}

	if err = sm.AddService("Blockchain", chain); err != nil {
		return err
	}

	if err = sm.AddService("Miner", minerService); err != nil {
		return err
	}

	if err = sm.AddService("HTTP", newHTTPServer(logger.New("http"), tSettings.MetricsListenAddress, sm, chain)); err != nil {
		return err
	}

	return sm.Wait()
}

func settingsFromFlags(c *cli.Context) (*settings.Settings, error) {
	tSettings := settings.NewSettings()

	if c.IsSet("store") {
		storeURL, err := url.Parse(c.String("store"))
		if err != nil {
			return nil, errors.NewConfigurationError("invalid store url %q", c.String("store"), err)
		}

		tSettings.BlockChain.StoreURL = storeURL
	}

	if c.IsSet("wif") {
		tSettings.Miner.WalletPrivateKey = c.String("wif")
	}

	if c.IsSet("cores") {
		tSettings.Miner.CoreCount = c.Int("cores")
	}

	if c.IsSet("listen") {
		tSettings.MetricsListenAddress = c.String("listen")
	}

	return tSettings, nil
}
