// Package telemetry registers the Prometheus metrics shared by the engine
// and the tile-store daemon. The daemon serves them on /metrics; embedded
// engines expose them through whatever registry the host process scrapes.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwash_flushes_total",
		Help: "Completed flush attempts, success or failure.",
	})
	FlushFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwash_flush_failures_total",
		Help: "Flushes that failed and left strokes buffered for retry.",
	})
	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkwash_flush_duration_seconds",
		Help:    "Wall time of save round trips to the tile store.",
		Buckets: prometheus.DefBuckets,
	})
	StrokesFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwash_strokes_flushed_total",
		Help: "Strokes durably handed to the tile store.",
	})
	StrokesAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwash_strokes_appended_total",
		Help: "Strokes appended to tiles by the daemon.",
	})
	StrokesEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwash_strokes_evicted_total",
		Help: "Expired strokes pruned from stored tiles.",
	})
	InkConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwash_ink_consumed_total",
		Help: "Ink units debited across all flushes seen by the daemon.",
	})
	TileLoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwash_tile_loads_total",
		Help: "Tile documents served by the daemon.",
	})
	MalformedTilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwash_malformed_tiles_total",
		Help: "Tiles skipped because their key failed to parse.",
	})
	OpenSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwash_open_subscriptions",
		Help: "Currently open tile subscriptions on the daemon.",
	})
)
