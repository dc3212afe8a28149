package config

// Config holds runtime configuration for the server.
type Config struct {
	Port      string
	StorePath string
	Metrics   MetricsConfig
	Exports   ExportsConfig
	Geocode   GeocodeConfig
}

// MetricsConfig controls the telemetry pipeline.
type MetricsConfig struct {
	Enabled      bool
	Port         string
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

// ExportsConfig controls file-based game sharing.
type ExportsConfig struct {
	Dir           string
	RetentionDays int
	PruneCron     string
}

// GeocodeConfig controls reverse geocoding of course coordinates.
type GeocodeConfig struct {
	Enabled bool
	BaseURL string
	Timeout Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Port:      envOrDefault(envPort, defaultPort),
		StorePath: envOrDefault(envStorePath, defaultStorePath),
		Metrics: MetricsConfig{
			Enabled:      boolEnvOrDefault(envMetricsOn, false),
			Port:         envOrDefault(envMetricsPort, defaultMetricsPort),
			ServiceName:  envOrDefault(envOtelService, "disc-golf-tracker"),
			OtlpEndpoint: envOrDefault(envOtelEndpoint, ""),
			OtlpInsecure: boolEnvOrDefault(envOtelInsecure, false),
		},
		Exports: ExportsConfig{
			Dir:           envOrDefault(envExportDir, defaultExportDir),
			RetentionDays: intEnvOrDefault(envExportDays, defaultExportDays),
			PruneCron:     envOrDefault(envExportCron, defaultExportCron),
		},
		Geocode: GeocodeConfig{
			Enabled: boolEnvOrDefault(envGeocodeOn, false),
			BaseURL: envOrDefault(envGeocodeURL, defaultGeocodeURL),
			Timeout: durationEnvOrDefault(envGeocodeWait, defaultGeocodeTimeout),
		},
	}
}
