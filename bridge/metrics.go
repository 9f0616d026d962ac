// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import "github.com/luxfi/geth/metrics"

// Metrics are registered go-ethereum-style counters/gauges scoped to this
// validator's confirmation pipeline.
var (
	confirmationsSubmitted   = metrics.NewRegisteredCounter("bridge/confirmations/submitted", nil)
	confirmationsConfirmed   = metrics.NewRegisteredCounter("bridge/confirmations/confirmed", nil)
	confirmationsResubmitted = metrics.NewRegisteredCounter("bridge/confirmations/resubmitted", nil)

	foreignFetcherCursor = metrics.NewRegisteredGauge("bridge/fetcher/foreign/cursor", nil)
	homeFetcherCursor    = metrics.NewRegisteredGauge("bridge/fetcher/home/cursor", nil)

	pendingTransactionQueueDepth = metrics.NewRegisteredGauge("bridge/sender/pending_queue_depth", nil)
	validatorBalanceWei          = metrics.NewRegisteredGauge("bridge/validator/balance_wei", nil)
)
