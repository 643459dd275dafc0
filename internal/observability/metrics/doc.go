// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Business metrics (queue items, decisions, feed entries, workers)
//   - Database query metrics
//   - Application performance metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "infinite-feed/internal/observability/metrics"
//
//	func claimAndProcess(ctx context.Context) {
//	    start := time.Now()
//	    // ... process one queue item ...
//
//	    metrics.RecordItemProcessed("generate_video", true, time.Since(start))
//	}
package metrics
