// Package metrics keeps process-wide counters and serves them in the
// Prometheus text format.
package metrics

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

var startTime = time.Now()

// HTTP metrics
var (
	httpRequestsTotal atomic.Int64
	httpErrorsTotal   atomic.Int64
)

// Feed metrics
var (
	rendersTotal       atomic.Int64
	staleRendersTotal  atomic.Int64
	loadFailuresTotal  atomic.Int64
	opsResolvedTotal   atomic.Int64
	opsRolledBackTotal atomic.Int64
	opsRejectedTotal   atomic.Int64
)

// Local store metrics
var (
	storeBackend atomic.Value
)

func IncrementRequests() { httpRequestsTotal.Add(1) }
func IncrementErrors()   { httpErrorsTotal.Add(1) }

// IncrementRenders counts a full feed render that reached the tree.
func IncrementRenders() { rendersTotal.Add(1) }

// IncrementStaleRenders counts a render discarded because a newer one had
// started.
func IncrementStaleRenders() { staleRendersTotal.Add(1) }

func IncrementLoadFailures() { loadFailuresTotal.Add(1) }

// IncrementResolved counts an optimistic operation confirmed by the server.
func IncrementResolved() { opsResolvedTotal.Add(1) }

// IncrementRollbacks counts an optimistic operation reverted after a
// failure.
func IncrementRollbacks() { opsRolledBackTotal.Add(1) }

// IncrementRejected counts a duplicate submission refused while the first
// was in flight.
func IncrementRejected() { opsRejectedTotal.Add(1) }

// SetStoreBackend records which local store backend is active.
func SetStoreBackend(kind string) { storeBackend.Store(kind) }

// Snapshot is a point-in-time copy of the feed counters.
type Snapshot struct {
	Renders      int64
	StaleRenders int64
	LoadFailures int64
	Resolved     int64
	Rollbacks    int64
	Rejected     int64
}

// Read returns the current feed counters.
func Read() Snapshot {
	return Snapshot{
		Renders:      rendersTotal.Load(),
		StaleRenders: staleRendersTotal.Load(),
		LoadFailures: loadFailuresTotal.Load(),
		Resolved:     opsResolvedTotal.Load(),
		Rollbacks:    opsRolledBackTotal.Load(),
		Rejected:     opsRejectedTotal.Load(),
	}
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value any) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %v\n\n", name, value)
}

// Handler serves Prometheus-compatible metrics.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	backend, _ := storeBackend.Load().(string)
	if backend == "" {
		backend = "none"
	}
	fmt.Fprintf(w, "# HELP gardencircle_build_info Build and configuration information\n")
	fmt.Fprintf(w, "# TYPE gardencircle_build_info gauge\n")
	fmt.Fprintf(w, "gardencircle_build_info{store_backend=%q,go_version=%q} 1\n\n", backend, runtime.Version())

	writeMetric(w, "process_start_time_seconds", "gauge", "Unix timestamp of process start", startTime.Unix())
	writeMetric(w, "process_uptime_seconds", "gauge", "Time since process started", fmt.Sprintf("%.0f", time.Since(startTime).Seconds()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	writeMetric(w, "go_goroutines", "gauge", "Number of active goroutines", runtime.NumGoroutine())
	writeMetric(w, "go_memstats_alloc_bytes", "gauge", "Currently allocated memory in bytes", memStats.Alloc)
	writeMetric(w, "go_memstats_heap_inuse_bytes", "gauge", "Heap memory in use", memStats.HeapInuse)
	writeMetric(w, "go_gc_cycles_total", "counter", "Number of completed GC cycles", memStats.NumGC)

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", httpRequestsTotal.Load())
	writeMetric(w, "http_errors_total", "counter", "Total number of HTTP 5xx errors", httpErrorsTotal.Load())

	s := Read()
	writeMetric(w, "feed_renders_total", "counter", "Full feed renders applied to the page", s.Renders)
	writeMetric(w, "feed_stale_renders_total", "counter", "Feed renders discarded as superseded", s.StaleRenders)
	writeMetric(w, "feed_load_failures_total", "counter", "Feed reads that degraded to an empty result", s.LoadFailures)
	writeMetric(w, "feed_ops_resolved_total", "counter", "Optimistic operations confirmed by the server", s.Resolved)
	writeMetric(w, "feed_ops_rolled_back_total", "counter", "Optimistic operations reverted after a failure", s.Rollbacks)
	writeMetric(w, "feed_ops_rejected_total", "counter", "Duplicate operations refused while one was pending", s.Rejected)
}
