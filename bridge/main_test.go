// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies every fetcher/planner/sender goroutine started by a
// test in this package has exited once its context was cancelled.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
