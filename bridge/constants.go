// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import "time"

// Event names as emitted on-chain; used to look up event descriptors and
// build log filters.
const (
	TransferEventName     = "Transfer"
	ConfirmationEventName = "Confirmation"
	CompletionEventName   = "Completion"
)

const (
	// HomeChainStepDuration is the approximate home-chain block time, used
	// both as the validator-status/confirmation poll interval and as the
	// planner's sync persistence window.
	HomeChainStepDuration = 5 * time.Second

	// ApplicationCleanupTimeout bounds how long the supervisor waits for all
	// components to exit on stop before force-exiting the process.
	ApplicationCleanupTimeout = 10 * time.Second

	// confirmationGracePeriodSteps is multiplied by the home chain's
	// max_reorg_depth to give the number of home-chain blocks a submitted
	// confirmation transaction is allowed to sit without a receipt before
	// the sender assumes it was dropped from the mempool and resubmits with
	// the same nonce.
	confirmationGracePeriodSteps = 10
)

// maxConsecutiveFatalFilterErrors bounds how many times in a row a fetcher
// will tolerate a filter-too-large response for the same cursor before
// giving up and reporting ErrFatalRPC: a single occurrence is usually a
// transient provider hiccup, but a range that keeps failing at the same
// bounds will never succeed on its own.
const maxConsecutiveFatalFilterErrors = 3
