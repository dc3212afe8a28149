package config

import "time"

const (
	envPort         = "PORT"
	envStorePath    = "STORE_PATH"
	envMetricsPort  = "METRICS_PORT"
	envMetricsOn    = "METRICS_ENABLED"
	envOtelEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService  = "OTEL_SERVICE_NAME"
	envOtelInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
	envExportDir    = "EXPORT_DIR"
	envExportDays   = "EXPORT_RETENTION_DAYS"
	envExportCron   = "EXPORT_PRUNE_CRON"
	envGeocodeOn    = "GEOCODE_ENABLED"
	envGeocodeURL   = "GEOCODE_BASE_URL"
	envGeocodeWait  = "GEOCODE_TIMEOUT"

	defaultPort        = "4000"
	defaultStorePath   = "data/tracker.db"
	defaultMetricsPort = "9090"
	defaultExportDir   = "data/exports"
	defaultExportDays  = 90
	// Daily prune at 3 AM server time.
	defaultExportCron     = "0 3 * * *"
	defaultGeocodeURL     = "https://nominatim.openstreetmap.org"
	defaultGeocodeTimeout = 10 * time.Second
)
