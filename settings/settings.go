// Package settings reads the gocore configuration (settings.conf / settings_local.conf
// and environment overrides) into typed structs.
package settings

import (
	"time"
)

// DefaultInitialTarget needs on average 2^16 hashes per block.
const DefaultInitialTarget = "0000ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

func NewSettings() *Settings {
	return &Settings{
		ClientName:           getString("clientName", "halominer"),
		DataFolder:           getString("dataFolder", "data"),
		LogLevel:             getString("logLevel", "INFO"),
		MetricsListenAddress: getString("metrics_listen_address", ":9091"),
		Miner: MinerSettings{
			Enabled:          getBool("miner_enabled", true),
			CoreCount:        getInt("miner_core_count", -1),
			BlockVersion:     getString("miner_block_version", "0.0011"),
			WalletPrivateKey: getString("miner_wallet_private_key", ""),
			//nolint:gosec // G115: negative values are rejected below
			MaxAttempts:       uint64(max(getInt("miner_max_attempts", 100000), 1)),
			IdlePollInterval:  getDuration("miner_idle_poll_interval", 100*time.Millisecond),
			ResultPollTimeout: getDuration("miner_result_poll_timeout", 500*time.Millisecond),
			WorkerStopTimeout: getDuration("miner_worker_stop_timeout", 5*time.Second),
			SubmitRetryCount:  getInt("miner_submit_retry_count", 3),
		},
		BlockChain: BlockChainSettings{
			StoreURL:        getURL("blockchain_store", "sqlite:///blockchain"),
			InitialTarget:   getString("blockchain_initial_target", DefaultInitialTarget),
			BlocksQueueSize: getInt("blockchain_blocks_queue_size", 16),
		},
		Tracing: TracingSettings{
			Enabled:      getBool("tracing_enabled", false),
			CollectorURL: getURL("tracing_collector_url", "http://localhost:4318"),
			SampleRate:   getFloat64("tracing_sample_rate", 0.01),
		},
	}
}
