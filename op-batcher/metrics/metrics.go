// Package metrics defines the batcher's domain-level metrics surface,
// grounded on the Metricer interface consumed throughout
// op-batcher/batcher/{driver,channel_manager}.go in the wider monorepo this
// service is patterned after.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/archon-rollup/archon-batcher/op-service/eth"
)

// Metricer is the full set of batch-submission observability points, so a
// real exporter can be swapped in without touching actor code.
type Metricer interface {
	RecordLatestL1Block(id eth.BlockID)
	RecordL2BlocksAdded(count int, pending int)
	RecordChannelOpened(id string, blocksInChannel int)
	RecordChannelClosed(id string, numFrames int, inputBytes, outputBytes int)
	RecordBatchTxSubmitted()
	RecordBatchTxFailed()
	RecordL2Reorg()
}

const namespace = "archon_batcher"

// PrometheusMetrics is the concrete Metricer backed by a
// prometheus.Registry, the way hakandemirdev-kroma wires its metrics server.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	latestL1Block   prometheus.Gauge
	l2BlocksAdded   prometheus.Counter
	blocksPending   prometheus.Gauge
	channelsOpened  prometheus.Counter
	channelsClosed  prometheus.Counter
	framesPerChan   prometheus.Histogram
	channelInBytes  prometheus.Counter
	channelOutBytes prometheus.Counter
	txSubmitted     prometheus.Counter
	txFailed        prometheus.Counter
	l2Reorgs        prometheus.Counter
}

func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Name: name, Help: help}
	}
	m := &PrometheusMetrics{
		registry: registry,
		latestL1Block: prometheus.NewGauge(prometheus.GaugeOpts(
			factory("latest_l1_block", "Latest L1 block number observed by the driver"))),
		l2BlocksAdded: prometheus.NewCounter(prometheus.CounterOpts(
			factory("l2_blocks_added_total", "Number of L2 blocks ingested into block state"))),
		blocksPending: prometheus.NewGauge(prometheus.GaugeOpts(
			factory("l2_blocks_pending", "Number of L2 blocks ingested but not yet channeled"))),
		channelsOpened: prometheus.NewCounter(prometheus.CounterOpts(
			factory("channels_opened_total", "Number of channels opened"))),
		channelsClosed: prometheus.NewCounter(prometheus.CounterOpts(
			factory("channels_closed_total", "Number of channels closed"))),
		framesPerChan: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "frames_per_channel", Help: "Frame count per closed channel",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		channelInBytes: prometheus.NewCounter(prometheus.CounterOpts(
			factory("channel_input_bytes_total", "Uncompressed bytes packed into channels"))),
		channelOutBytes: prometheus.NewCounter(prometheus.CounterOpts(
			factory("channel_output_bytes_total", "Compressed bytes produced by channels"))),
		txSubmitted: prometheus.NewCounter(prometheus.CounterOpts(
			factory("batch_tx_submitted_total", "L1 batch transactions confirmed"))),
		txFailed: prometheus.NewCounter(prometheus.CounterOpts(
			factory("batch_tx_failed_total", "L1 batch transactions that failed to confirm"))),
		l2Reorgs: prometheus.NewCounter(prometheus.CounterOpts(
			factory("l2_reorgs_total", "L2 reorgs detected by block state"))),
	}
	registry.MustRegister(
		m.latestL1Block, m.l2BlocksAdded, m.blocksPending, m.channelsOpened,
		m.channelsClosed, m.framesPerChan, m.channelInBytes, m.channelOutBytes,
		m.txSubmitted, m.txFailed, m.l2Reorgs,
	)
	return m
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *PrometheusMetrics) RecordLatestL1Block(id eth.BlockID) {
	m.latestL1Block.Set(float64(id.Number))
}

func (m *PrometheusMetrics) RecordL2BlocksAdded(count int, pending int) {
	m.l2BlocksAdded.Add(float64(count))
	m.blocksPending.Set(float64(pending))
}

func (m *PrometheusMetrics) RecordChannelOpened(_ string, _ int) {
	m.channelsOpened.Inc()
}

func (m *PrometheusMetrics) RecordChannelClosed(_ string, numFrames int, inputBytes, outputBytes int) {
	m.channelsClosed.Inc()
	m.framesPerChan.Observe(float64(numFrames))
	m.channelInBytes.Add(float64(inputBytes))
	m.channelOutBytes.Add(float64(outputBytes))
}

func (m *PrometheusMetrics) RecordBatchTxSubmitted() { m.txSubmitted.Inc() }
func (m *PrometheusMetrics) RecordBatchTxFailed()    { m.txFailed.Inc() }
func (m *PrometheusMetrics) RecordL2Reorg()          { m.l2Reorgs.Inc() }

// NoopMetrics discards everything; used by tests and any caller that does
// not want a Prometheus registry.
type NoopMetrics struct{}

func (NoopMetrics) RecordLatestL1Block(eth.BlockID)           {}
func (NoopMetrics) RecordL2BlocksAdded(int, int)              {}
func (NoopMetrics) RecordChannelOpened(string, int)           {}
func (NoopMetrics) RecordChannelClosed(string, int, int, int) {}
func (NoopMetrics) RecordBatchTxSubmitted()                   {}
func (NoopMetrics) RecordBatchTxFailed()                      {}
func (NoopMetrics) RecordL2Reorg()                            {}
