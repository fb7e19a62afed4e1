// Package wallet supplies the public key that mined blocks credit.
package wallet

import (
	"encoding/hex"

	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/halocoin/halominer/errors"
	"github.com/libsv/go-bk/bec"
	"github.com/libsv/go-bk/chaincfg"
	"github.com/libsv/go-bk/wif"
)

// Wallet is what the miner needs from key management. The second return value is
// false while no key is loaded, in which case the miner does not build blocks.
type Wallet interface {
	MinerPublicKey() ([]byte, bool)
}

// KeyWallet holds a single private key decoded from WIF.
type KeyWallet struct {
	privateKey *wif.WIF
	address    string
}

func NewKeyWallet(wifKey string, isMainnet bool) (*KeyWallet, error) {
	if wifKey == "" {
		return nil, errors.NewConfigurationError("wallet private key is empty")
	}

	pk, err := wif.DecodeWIF(wifKey)
	if err != nil {
		return nil, errors.NewConfigurationError("can't decode priv key", err)
	}

	pubKeyHex := hex.EncodeToString(pk.PrivKey.PubKey().SerialiseCompressed())

	walletAddress, err := bscript.NewAddressFromPublicKeyString(pubKeyHex, isMainnet)
	if err != nil {
		return nil, errors.NewProcessingError("can't create address", err)
	}

	return &KeyWallet{
		privateKey: pk,
		address:    walletAddress.AddressString,
	}, nil
}

// MinerPublicKey returns the compressed public key.
func (w *KeyWallet) MinerPublicKey() ([]byte, bool) {
	return w.privateKey.PrivKey.PubKey().SerialiseCompressed(), true
}

func (w *KeyWallet) Address() string {
	return w.address
}

// NoKeyWallet is a wallet without a key. A miner given this wallet stays idle.
type NoKeyWallet struct{}

func (NoKeyWallet) MinerPublicKey() ([]byte, bool) {
	return nil, false
}

// GenerateWIF creates a fresh compressed private key and returns it in WIF.
func GenerateWIF(isMainnet bool) (string, error) {
	privateKey, err := bec.NewPrivateKey(bec.S256())
	if err != nil {
		return "", errors.NewProcessingError("can't generate private key", err)
	}

	net := &chaincfg.TestNet
	if isMainnet {
		net = &chaincfg.MainNet
	}

	w, err := wif.NewWIF(privateKey, net, true)
	if err != nil {
		return "", errors.NewProcessingError("can't encode private key", err)
	}

	return w.String(), nil
}
