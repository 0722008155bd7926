/*
Package observability provides structured logging and metrics collection for
the backup stages.

	Provider (one per process)
	    ├── Logger  (JSON lines, one logger per component)
	    └── Metrics (Prometheus collectors, one set per component)

# Usage

	provider := observability.NewProvider(&observability.Config{
	    ServiceName: "sfbackup",
	    Environment: "production",
	    LogLevel:    "info",
	})
	defer provider.Close()

	log := provider.Logger("stage")
	m := provider.Metrics("stage")

	ctx = observability.WithJob(ctx, "Account", jobID)
	log.Info(ctx, "download started", observability.Fields{"parts": 3})

	start := time.Now()
	m.StartOperation("download")
	defer func() {
	    m.EndOperation("download")
	    m.RecordDuration("download", time.Since(start).Seconds())
	}()

# Context Integration

The logger extracts these typed keys (see types.ContextKeys) when present:
trace_id, request_id, object_name, job_id.

# Metrics

  - {service}_{component}_processed_total: counter [status, type]
  - {service}_{component}_errors_total: counter [error_type, operation]
  - {service}_{component}_duration_seconds: histogram [operation]
  - {service}_{component}_file_size_bytes: histogram [file_type]
  - {service}_{component}_in_progress: gauge [operation]

Collectors register on Config.Registerer, which defaults to
prometheus.DefaultRegisterer so promhttp.Handler() exposes them.

# Testing

	mockLogger := new(mocks.MockLogger)
	mockLogger.On("Info", mock.Anything, mock.Anything, mock.Anything).Maybe()
*/
package observability
