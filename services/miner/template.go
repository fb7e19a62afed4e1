package miner

import (
	"time"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/services/blockchain"
	"github.com/halocoin/halominer/util"
	"github.com/kpango/fastime"
)

// TemplateBuilder turns the chain head, the pending transactions and the miner key
// into an unsolved candidate block.
type TemplateBuilder struct {
	version string
	target  blockchain.TargetFunc
	now     func() time.Time
}

func NewTemplateBuilder(version string, target blockchain.TargetFunc) *TemplateBuilder {
	return &TemplateBuilder{
		version: version,
		target:  target,
		now:     fastime.Now,
	}
}

// WithClock replaces the clock used to stamp candidates.
func (tb *TemplateBuilder) WithClock(now func() time.Time) *TemplateBuilder {
	tb.now = now
	return tb
}

// Build returns the genesis candidate when prev is nil, otherwise the successor of prev.
// The transactions of txPool are copied in order and the mint transaction crediting
// minerPubKey is appended last.
func (tb *TemplateBuilder) Build(prev *model.Block, txPool []*model.Transaction, minerPubKey []byte) (*model.Block, error) {
	if len(minerPubKey) == 0 {
		return nil, errors.NewInvalidArgumentError("[BuildCandidate] miner public key is required")
	}

	txs := make([]*model.Transaction, 0, len(txPool)+1)

	candidate := &model.Block{
		Version: tb.version,
		Time:    tb.now().UnixMilli(),
	}

	if prev == nil {
		candidate.Target = tb.target(0)
		candidate.DiffLength = util.Invert(candidate.Target)
		candidate.Txs = append(txs, model.NewMintTransaction(minerPubKey))

		return candidate, nil
	}

	if prev.Target == nil || prev.DiffLength == nil {
		return nil, errors.NewBlockInvalidError("[BuildCandidate] previous block %d is missing its target or diffLength", prev.Height)
	}

	prevHash, err := prev.Hash()
	if err != nil {
		return nil, errors.NewBlockInvalidError("[BuildCandidate] previous block %d cannot be hashed", prev.Height, err)
	}

	candidate.Height = prev.Height + 1
	candidate.Target = tb.target(candidate.Height)
	candidate.DiffLength = util.Sum(prev.DiffLength, util.Invert(candidate.Target))
	candidate.PrevHash = prevHash

	txs = append(txs, txPool...)
	candidate.Txs = append(txs, model.NewMintTransaction(minerPubKey))

	return candidate, nil
}
