// Package metrics exposes Prometheus instrumentation for the discovery
// pipeline. Collectors are registered once at package init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts counts outbound HTTP attempts per source, including retries.
	FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grantdiscovery",
		Subsystem: "fetch",
		Name:      "attempts_total",
		Help:      "Outbound HTTP attempts, labelled by source and outcome.",
	}, []string{"source", "outcome"})

	// FetchRetries counts retried attempts after transient failures.
	FetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grantdiscovery",
		Subsystem: "fetch",
		Name:      "retries_total",
		Help:      "Retries triggered by transient status codes or timeouts.",
	}, []string{"source"})

	// UpsertOutcomes counts opportunity upserts by result.
	UpsertOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grantdiscovery",
		Subsystem: "store",
		Name:      "upserts_total",
		Help:      "Opportunity upserts, labelled inserted/updated/unchanged/error.",
	}, []string{"outcome"})

	// DiscoveryDuration observes wall-clock time of full discovery runs.
	DiscoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "grantdiscovery",
		Subsystem: "discovery",
		Name:      "run_duration_seconds",
		Help:      "Duration of complete discovery runs.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// SourceFailures counts adapters that contributed nothing to a run.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grantdiscovery",
		Subsystem: "discovery",
		Name:      "source_failures_total",
		Help:      "Adapter failures recorded during discovery, by source.",
	}, []string{"source"})

	// MatchesScored counts fit-score computations, split cache hit vs computed.
	MatchesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grantdiscovery",
		Subsystem: "scoring",
		Name:      "matches_total",
		Help:      "Match results produced, labelled computed/cached.",
	}, []string{"origin"})
)
