// Package metrics serves the process's Prometheus registry over plain HTTP.
// It is an external collaborator per spec §1/§6 — not on the hot path —
// grounded on hakandemirdev-kroma/utils/service/metrics/server.go.
package metrics

import (
	"context"
	"net"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"

	"github.com/archon-rollup/archon-batcher/op-service/httputil"
)

// Config describes where to serve metrics.
type Config struct {
	Enabled    bool
	ListenAddr string
	ListenPort int
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.ListenAddr, strconv.Itoa(c.ListenPort))
}

// ListenAndServe starts a Prometheus text endpoint and blocks until ctx is
// canceled or the server fails. Callers typically run this in its own
// goroutine.
func ListenAndServe(ctx context.Context, log log.Logger, r *prometheus.Registry, cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	addr := cfg.Addr()
	log.Info("starting metrics server", "addr", addr)
	server := &http.Server{
		Addr: addr,
		Handler: promhttp.InstrumentMetricHandler(
			r, promhttp.HandlerFor(r, promhttp.HandlerOpts{}),
		),
	}
	return httputil.ListenAndServeContext(ctx, server)
}
