package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecard_refreshes_total",
			Help: "Conversation refreshes by resulting state",
		},
		[]string{"state"},
	)

	SupersededFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scorecard_superseded_fetches_total",
			Help: "Fetch results discarded because a newer request had started",
		},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "scorecard_fetch_duration_seconds",
			Help: "Duration of conversation fetches in seconds",
		},
	)

	FeedReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecard_feed_reconnects_total",
			Help: "Change feed reconnect attempts by outcome",
		},
		[]string{"outcome"},
	)

	FeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecard_feed_events_total",
			Help: "Change notifications received by table and operation",
		},
		[]string{"table", "op"},
	)

	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scorecard_aggregation_duration_seconds",
			Help:    "Duration of stats aggregation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"group_by"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scorecard_websocket_clients",
			Help: "Number of connected dashboard websocket clients",
		},
	)
)
