package model

import (
	"encoding/hex"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

const (
	TxTypeMint = "mint"

	// MintSignature is the placeholder signature of a mint transaction. Mints are
	// authorised by the proof of work, not by a key.
	MintSignature = "first_sig"
)

// Transaction is the subset of a ledger transaction the miner needs to carry into a block.
// The miner never inspects anything but Type.
type Transaction struct {
	Type       string   `json:"type"`
	Count      uint64   `json:"count"`
	PubKeys    []string `json:"pubkeys"`
	Signatures []string `json:"signatures"`
	To         string   `json:"to,omitempty"`
	Amount     uint64   `json:"amount,omitempty"`
}

// NewMintTransaction credits pubKey with the block reward.
func NewMintTransaction(pubKey []byte) *Transaction {
	return &Transaction{
		Type:       TxTypeMint,
		Count:      0,
		PubKeys:    []string{hex.EncodeToString(pubKey)},
		Signatures: []string{MintSignature},
	}
}

func (tx *Transaction) IsMint() bool {
	return tx.Type == TxTypeMint
}

// Hash identifies a transaction by its canonical encoding.
func (tx *Transaction) Hash() (*chainhash.Hash, error) {
	b, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	hash := chainhash.HashH(b)

	return &hash, nil
}
