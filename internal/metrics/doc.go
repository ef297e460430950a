/*
Package metrics provides Prometheus-based metrics for mdshovel.

# Metrics

Counters:
  - mdshovel_operations_started_total: operations launched
  - mdshovel_operations_completed_total: operations finished, success or failure
  - mdshovel_operations_failed_total: operations that failed

Histograms:
  - mdshovel_operation_duration_seconds: end-to-end per-operation latency,
    observed on every completion
  - mdshovel_store_call_duration_seconds{call}: wall latency of individual
    live store calls; dry-run calls are never observed

# Exposition

The Recorder serves GET /metrics in the Prometheus text format on the
configured port. Any other path returns 404 and any other method 405, both
closing the connection; a failed render returns 500. Rendering gathers a
consistent snapshot and never mutates recorder state.

	curl http://localhost:8881/metrics

# Usage

	recorder, err := metrics.NewRecorder(logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := recorder.Start(ctx, cfg.MetricsPort); err != nil {
		log.Fatal(err)
	}
	defer recorder.Stop(ctx)

	recorder.OperationStarted()
	recorder.OperationCompleted(elapsed, true)
	recorder.StoreCall("createDirectory", callElapsed)
*/
package metrics
