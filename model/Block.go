package model

import (
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/util"
	"github.com/holiman/uint256"
)

// Block is both the candidate handed to the search workers and the solved block
// handed back to the chain service. A candidate has a nil Nonce.
type Block struct {
	// Version is the protocol tag of the node that built the block.
	Version string

	// Txs holds the pending transactions followed by exactly one mint transaction.
	Txs []*Transaction

	// Height of the block, genesis is 0.
	Height uint32

	// Time the block was created in unix milliseconds.
	Time int64

	// Target is the largest header hash that solves this block.
	Target *uint256.Int

	// DiffLength is the accumulated difficulty of the chain ending in this block.
	DiffLength *uint256.Int

	// PrevHash is the hash of the previous block, nil for genesis.
	PrevHash *chainhash.Hash

	// Nonce is set once a solution has been found.
	Nonce *uint64
}

// blockJSON is the canonical wire form. Field order is part of the hash and must not change.
type blockJSON struct {
	Version    string         `json:"version"`
	Txs        []*Transaction `json:"txs"`
	Height     uint32         `json:"length"`
	Time       int64          `json:"time"`
	DiffLength string         `json:"diffLength"`
	Target     string         `json:"target"`
	PrevHash   string         `json:"prevHash,omitempty"`
	Nonce      *uint64        `json:"nonce,omitempty"`
}

func NewBlockFromBytes(b []byte) (*Block, error) {
	block := &Block{}
	if err := json.Unmarshal(b, block); err != nil {
		return nil, errors.NewBlockInvalidError("error decoding block", err)
	}

	return block, nil
}

func (b *Block) MarshalJSON() ([]byte, error) {
	if b.Target == nil || b.DiffLength == nil {
		return nil, errors.NewBlockInvalidError("block %d is missing target or diffLength", b.Height)
	}

	bj := blockJSON{
		Version:    b.Version,
		Txs:        b.Txs,
		Height:     b.Height,
		Time:       b.Time,
		DiffLength: util.Uint256ToHex(b.DiffLength),
		Target:     util.Uint256ToHex(b.Target),
		Nonce:      b.Nonce,
	}

	if b.PrevHash != nil {
		bj.PrevHash = b.PrevHash.String()
	}

	return json.Marshal(bj)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var bj blockJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return err
	}

	target, err := util.Uint256FromHex(bj.Target)
	if err != nil {
		return err
	}

	diffLength, err := util.Uint256FromHex(bj.DiffLength)
	if err != nil {
		return err
	}

	var prevHash *chainhash.Hash
	if bj.PrevHash != "" {
		if prevHash, err = chainhash.NewHashFromStr(bj.PrevHash); err != nil {
			return errors.NewBlockInvalidError("invalid prevHash %q", bj.PrevHash, err)
		}
	}

	*b = Block{
		Version:    bj.Version,
		Txs:        bj.Txs,
		Height:     bj.Height,
		Time:       bj.Time,
		Target:     target,
		DiffLength: diffLength,
		PrevHash:   prevHash,
		Nonce:      bj.Nonce,
	}

	return nil
}

// Bytes returns the canonical serialization that every hash in the chain is taken over.
func (b *Block) Bytes() ([]byte, error) {
	return b.MarshalJSON()
}

// Hash is the identity of the block, including its nonce. A successor stores it as PrevHash.
func (b *Block) Hash() (*chainhash.Hash, error) {
	bytes, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	hash := chainhash.DoubleHashH(bytes)

	return &hash, nil
}

// HalfHash is the hash of the block without its nonce. It stays constant while the nonce is searched.
func (b *Block) HalfHash() (*chainhash.Hash, error) {
	unsolved := *b
	unsolved.Nonce = nil

	return unsolved.Hash()
}

// PowHash is the hash compared against the target.
func (b *Block) PowHash() (*chainhash.Hash, error) {
	if b.Nonce == nil {
		return nil, errors.NewBlockInvalidError("block %d has no nonce", b.Height)
	}

	halfHash, err := b.HalfHash()
	if err != nil {
		return nil, err
	}

	hash := NewPowHasher(halfHash).Hash(*b.Nonce)

	return &hash, nil
}

// HasMetTargetDifficulty reports whether the proof of work hash is at or below the target.
func (b *Block) HasMetTargetDifficulty() (bool, *chainhash.Hash, error) {
	hash, err := b.PowHash()
	if err != nil {
		return false, nil, err
	}

	return util.MeetsTarget(hash, b.Target), hash, nil
}

func (b *Block) IsGenesis() bool {
	return b.Height == 0 && b.PrevHash == nil
}

// Clone returns a copy that can be mutated without affecting b. Transactions are
// shared, they are never modified once built.
func (b *Block) Clone() *Block {
	c := *b

	c.Txs = make([]*Transaction, len(b.Txs))
	copy(c.Txs, b.Txs)

	if b.Target != nil {
		c.Target = b.Target.Clone()
	}

	if b.DiffLength != nil {
		c.DiffLength = b.DiffLength.Clone()
	}

	if b.PrevHash != nil {
		h := *b.PrevHash
		c.PrevHash = &h
	}

	if b.Nonce != nil {
		n := *b.Nonce
		c.Nonce = &n
	}

	return &c
}

// WithNonce returns a solved copy of b.
func (b *Block) WithNonce(nonce uint64) *Block {
	c := b.Clone()
	c.Nonce = &nonce

	return c
}

func (b *Block) String() string {
	prev := "<genesis>"
	if b.PrevHash != nil {
		prev = b.PrevHash.String()
	}

	nonce := "<unsolved>"
	if b.Nonce != nil {
		nonce = fmt.Sprintf("%d", *b.Nonce)
	}

	target := "<nil>"
	if b.Target != nil {
		target = hex.EncodeToString(b.Target.Bytes())
	}

	return fmt.Sprintf("height: %d, prev: %s, txs: %d, target: %s, nonce: %s", b.Height, prev, len(b.Txs), target, nonce)
}
