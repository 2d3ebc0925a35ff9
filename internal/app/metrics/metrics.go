// Package metrics registers the Prometheus counters for the resolution
// and click pipeline. Everything here is best-effort observability; no
// counter failure ever affects a redirect.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts resolutions served entirely from Redis.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulseurl_cache_hits_total",
		Help: "Resolutions answered by the cache without a store read.",
	})

	// CacheMisses counts resolutions that fell through to the store.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulseurl_cache_misses_total",
		Help: "Resolutions that required a store read.",
	})

	// ClickJobsDropped counts click recordings rejected because the
	// background queue was full.
	ClickJobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulseurl_click_jobs_dropped_total",
		Help: "Click recordings dropped due to a full background queue.",
	})

	// PublishFailures counts click events that could not be handed to the
	// event channel.
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulseurl_click_publish_failures_total",
		Help: "Click events that failed to publish to the event channel.",
	})

	// DeadLetters counts events the consumer gave up on after bounded
	// redelivery.
	DeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulseurl_click_dead_letters_total",
		Help: "Click events skipped after exhausting redeliveries.",
	})
)
