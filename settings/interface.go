package settings

import (
	"net/url"
	"time"
)

type MinerSettings struct {
	// Enabled gates the coordinator. While false the miner idles.
	Enabled bool
	// CoreCount is the number of search workers per generation. -1 (or 0) means one per CPU.
	CoreCount int
	// BlockVersion is the protocol tag stamped into every block.
	BlockVersion string
	// WalletPrivateKey is the WIF key whose public key is credited by the mint transaction.
	WalletPrivateKey string
	// MaxAttempts bounds a single offline search (see cpuminer.Mine).
	MaxAttempts uint64
	// IdlePollInterval is how long the coordinator sleeps while mining preconditions are unmet.
	IdlePollInterval time.Duration
	// ResultPollTimeout bounds each wait on the result channel.
	ResultPollTimeout time.Duration
	// WorkerStopTimeout is how long a pool waits for cancelled workers to exit.
	WorkerStopTimeout time.Duration
	SubmitRetryCount  int
}

type BlockChainSettings struct {
	StoreURL *url.URL
	// InitialTarget is the hex encoded 256-bit target used by the devnet difficulty curve.
	InitialTarget   string
	BlocksQueueSize int
}

type TracingSettings struct {
	Enabled bool
	// CollectorURL is the OTLP/HTTP endpoint spans are exported to.
	CollectorURL *url.URL
	SampleRate   float64
}

type Settings struct {
	ClientName           string
	DataFolder           string
	LogLevel             string
	MetricsListenAddress string
	Miner                MinerSettings
	BlockChain           BlockChainSettings
	Tracing              TracingSettings
}
