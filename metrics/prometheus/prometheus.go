// (c) 2021-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package prometheus

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/luxfi/geth/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// bridgeMetricHelp carries a human-readable description for every counter
// and gauge bridge/metrics.go registers, keyed by the name passed to
// metrics.NewRegisteredCounter/NewRegisteredGauge. A name with no entry
// here still gathers fine, just without Help text -- this map only needs
// to be kept in sync for metrics an operator would actually want
// explained on a dashboard, not for completeness.
var bridgeMetricHelp = map[string]string{
	"bridge/confirmations/submitted":    "confirmation transactions submitted to the home bridge contract",
	"bridge/confirmations/confirmed":    "confirmation transactions observed buried past max_reorg_depth",
	"bridge/confirmations/resubmitted":  "confirmation transactions resubmitted after exceeding the confirmation grace period",
	"bridge/fetcher/foreign/cursor":     "foreign chain event fetcher cursor, in block number",
	"bridge/fetcher/home/cursor":        "home chain event fetcher cursor, in block number",
	"bridge/sender/pending_queue_depth": "confirmation transactions awaiting a buried receipt",
	"bridge/validator/balance_wei":      "validator account balance on the home chain, in wei",
}

// Gatherer implements prometheus.Gatherer by converting every counter and
// gauge in a Registry -- the only two metric kinds this validator ever
// registers, see bridge/metrics.go -- into Prometheus metric families.
// Histograms, meters, timers and the other kinds go-ethereum's metrics
// package supports have no bridge call site and are rejected rather than
// silently handled, so a future metric of an unsupported kind fails loudly
// at scrape time instead of vanishing from the exposition output.
type Gatherer struct {
	registry Registry
}

var _ prometheus.Gatherer = (*Gatherer)(nil)

// NewGatherer returns a Gatherer exposing every metric in registry.
func NewGatherer(registry Registry) *Gatherer {
	return &Gatherer{registry: registry}
}

var (
	errMetricSkip             = errors.New("metric skipped")
	errMetricTypeNotSupported = errors.New("metric type is not supported")
)

// Gather implements prometheus.Gatherer.
func (g *Gatherer) Gather() ([]*dto.MetricFamily, error) {
	var names []string
	g.registry.Each(func(name string, _ any) {
		names = append(names, name)
	})
	sort.Strings(names)

	mfs := make([]*dto.MetricFamily, 0, len(names))
	for _, name := range names {
		mf, err := metricFamily(g.registry, name)
		switch {
		case errors.Is(err, errMetricSkip):
			continue
		case err != nil:
			return nil, err
		}
		mfs = append(mfs, mf)
	}
	return mfs, nil
}

func ptrTo[T any](x T) *T { return &x }

// exposedName rewrites a bridge metric's slash-separated registry name
// (e.g. "bridge/confirmations/submitted") into the underscore form
// Prometheus metric names require.
func exposedName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

func metricFamily(registry Registry, name string) (*dto.MetricFamily, error) {
	metric := registry.Get(name)
	if metric == nil {
		return nil, fmt.Errorf("%w: %q metric is nil", errMetricSkip, name)
	}

	help := bridgeMetricHelp[name]
	exposed := exposedName(name)

	switch m := metric.(type) {
	case *metrics.Counter:
		return &dto.MetricFamily{
			Name: &exposed,
			Help: &help,
			Type: dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{{
				Counter: &dto.Counter{Value: ptrTo(float64(m.Snapshot().Count()))},
			}},
		}, nil

	case *metrics.Gauge:
		return &dto.MetricFamily{
			Name: &exposed,
			Help: &help,
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Gauge: &dto.Gauge{Value: ptrTo(float64(m.Snapshot().Value()))},
			}},
		}, nil

	default:
		return nil, fmt.Errorf("%w: metric %q type %T (bridge only registers Counter and Gauge)",
			errMetricTypeNotSupported, name, metric)
	}
}
