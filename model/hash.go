package model

import (
	"strconv"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	jsoniter "github.com/json-iterator/go"
)

// json renders structs in declaration order and maps with sorted keys, which keeps
// every serialization that feeds a hash deterministic.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PowRecord is what the proof of work hash is taken over.
type PowRecord struct {
	HalfHash string `json:"halfHash"`
	Nonce    uint64 `json:"nonce"`
}

func (r PowRecord) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// PowHasher hashes PowRecords for a fixed halfHash without re-encoding the constant part.
// Hash(n) equals chainhash.DoubleHashH of PowRecord{halfHash, n}.Bytes().
// A PowHasher reuses its buffer and must not be shared between goroutines.
type PowHasher struct {
	prefix []byte
	buf    []byte
}

func NewPowHasher(halfHash *chainhash.Hash) *PowHasher {
	prefix := []byte(`{"halfHash":"` + halfHash.String() + `","nonce":`)

	return &PowHasher{
		prefix: prefix,
		buf:    make([]byte, 0, len(prefix)+21),
	}
}

func (p *PowHasher) Hash(nonce uint64) chainhash.Hash {
	p.buf = append(p.buf[:0], p.prefix...)
	p.buf = strconv.AppendUint(p.buf, nonce, 10)
	p.buf = append(p.buf, '}')

	return chainhash.DoubleHashH(p.buf)
}

// TxPoolHash summarises a pending transaction snapshot so that two snapshots can be
// compared for equality cheaply.
func TxPoolHash(txs []*Transaction) (*chainhash.Hash, error) {
	if txs == nil {
		txs = []*Transaction{}
	}

	b, err := json.Marshal(txs)
	if err != nil {
		return nil, err
	}

	hash := chainhash.HashH(b)

	return &hash, nil
}
