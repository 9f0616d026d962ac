// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"net/http"

	gethmetrics "github.com/luxfi/geth/metrics"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/bridge/metrics/prometheus"
)

// ServeMetrics exposes every registered metrics.Counter/Gauge over HTTP at
// /metrics in Prometheus exposition format, until ctx is cancelled. It
// shares gethmetrics.DefaultRegistry with the rest of the process, so the
// fetcher, sender and balance-watcher gauges registered in metrics.go
// appear automatically.
func ServeMetrics(ctx context.Context, addr string) error {
	gatherer := prometheus.NewGatherer(gethmetrics.DefaultRegistry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return server.Close()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Error("metrics server exited", "error", err)
		return err
	}
}
