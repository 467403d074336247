package metrics

import (
	"strconv"
	"time"

	"github.com/namelens/relay/internal/observability"
)

// Dispatcher metrics following Prometheus conventions
var (
	// Dispatch metrics
	DispatchTotal         = "relay_dispatch_total"
	DispatchDuration      = "relay_dispatch_duration_ms"
	RateLimitedTotal      = "relay_rate_limited_total"
	RetriesTotal          = "relay_retries_total"
	DeferredReleaseTotal  = "relay_deferred_release_total"
	TrackedBuckets        = "relay_tracked_buckets"
	GlobalThrottleEngaged = "relay_global_throttle_engaged"
	BatchCallsTotal       = "relay_batch_calls_total"
	HealthCheckTotal      = "relay_health_check_total"
	HealthCheckDuration   = "relay_health_check_duration_ms"
	ServerStartTime       = "relay_server_start_time_seconds"
)

// RecordDispatch records a finished dispatch with its final status.
// status is the HTTP status of the last attempt, or 0 for transport errors.
func RecordDispatch(method string, status int, outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		DispatchTotal,
		1,
		map[string]string{
			"method":  method,
			"status":  strconv.Itoa(status),
			"outcome": outcome,
		},
	)

	_ = observability.TelemetrySystem.Histogram(
		DispatchDuration,
		duration,
		map[string]string{
			"method": method,
		},
	)
}

// RecordRateLimited records a 429 response.
func RecordRateLimited(global bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitedTotal,
			1,
			map[string]string{
				"global": strconv.FormatBool(global),
			},
		)
	}
}

// RecordRetry records a retried attempt and the reason for it.
func RecordRetry(reason string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RetriesTotal,
			1,
			map[string]string{
				"reason": reason,
			},
		)
	}
}

// RecordDeferredRelease records a bucket held past its response.
func RecordDeferredRelease() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(DeferredReleaseTotal, 1, nil)
	}
}

// SetTrackedBuckets sets how many buckets the gate currently tracks.
func SetTrackedBuckets(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(TrackedBuckets, float64(count), nil)
	}
}

// SetGlobalThrottle records whether the global throttle is engaged.
func SetGlobalThrottle(engaged bool) {
	value := 0.0
	if engaged {
		value = 1
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(GlobalThrottleEngaged, value, nil)
	}
}

// RecordBatchCall records one call of a batch run.
func RecordBatchCall(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BatchCallsTotal,
			1,
			map[string]string{
				"outcome": outcome,
			},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
