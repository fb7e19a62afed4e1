package main

import (
	"fmt"
	"io"

	"github.com/halocoin/halominer/wallet"
	"github.com/urfave/cli/v2"
)

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "generate a miner private key",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mainnet",
				Usage: "encode for mainnet instead of testnet",
			},
		},
		Action: func(c *cli.Context) error {
			return generateKey(c.App.Writer, c.Bool("mainnet"))
		},
	}
}

func generateKey(w io.Writer, isMainnet bool) error {
	wifKey, err := wallet.GenerateWIF(isMainnet)
	if err != nil {
		return err
	}

	keyWallet, err := wallet.NewKeyWallet(wifKey, isMainnet)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "miner_wallet_private_key=%s\naddress=%s\n", wifKey, keyWallet.Address())

	return err
}
