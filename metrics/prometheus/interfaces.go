// (c) 2025 Hanzo Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package prometheus

import "github.com/luxfi/geth/metrics"

var _ Registry = (*metrics.StandardRegistry)(nil)

// Registry is the subset of metrics.Registry a Gatherer needs to walk: the
// bridge always registers against metrics.DefaultRegistry, a
// *metrics.StandardRegistry, but keeping the gatherer against this narrow
// interface lets a test exercise it with a handful of fake entries instead
// of the real registry.
type Registry interface {
	// Each calls fn once per registered metric, in arbitrary order.
	Each(func(string, any))
	// Get returns the metric registered under name, or nil.
	Get(string) any
}
