package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Clustering calibration.
	ThresholdSeconds float64
	StormSpeedMS     float64
	MinClusterSize   int
	MaxCatalogEvents int

	// Covariate-join configuration.
	CovariateURL       string
	CovariateEnabled   bool
	CovariateTimeout   time.Duration
	CovariateCacheSize int
	CovariateRPS       float64
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	threshold, err := parsePositiveFloat("CLUSTER_THRESHOLD_SECONDS", 50000)
	if err != nil {
		return nil, err
	}
	stormSpeed, err := parsePositiveFloat("STORM_MOTION_SPEED_MS", 15)
	if err != nil {
		return nil, err
	}
	minSize, err := parsePositiveInt("MIN_CLUSTER_SIZE", 10)
	if err != nil {
		return nil, err
	}
	maxEvents, err := parsePositiveInt("MAX_CATALOG_EVENTS", 60000)
	if err != nil {
		return nil, err
	}

	covariateTimeoutStr := sharedcfg.EnvOrDefault("COVARIATE_TIMEOUT", "5s")
	covariateTimeout, err2 := time.ParseDuration(covariateTimeoutStr)
	if err2 != nil || covariateTimeout <= 0 {
		return nil, errors.New("invalid COVARIATE_TIMEOUT")
	}
	covariateCacheSize, err := parsePositiveInt("COVARIATE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	covariateRPS, err := parsePositiveFloat("COVARIATE_RPS", 5)
	if err != nil {
		return nil, err
	}

	covariateURL := os.Getenv("COVARIATE_URL")
	covariateEnabled := covariateURL != ""
	if v := os.Getenv("COVARIATE_ENABLED"); v != "" {
		covariateEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "tornado-catalog"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "big-day-clusters"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "bigday-clusterer"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		ThresholdSeconds: threshold,
		StormSpeedMS:     stormSpeed,
		MinClusterSize:   minSize,
		MaxCatalogEvents: maxEvents,

		CovariateURL:       covariateURL,
		CovariateEnabled:   covariateEnabled,
		CovariateTimeout:   covariateTimeout,
		CovariateCacheSize: covariateCacheSize,
		CovariateRPS:       covariateRPS,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.CovariateEnabled && cfg.CovariateURL == "" {
		return nil, errors.New("COVARIATE_ENABLED is true but COVARIATE_URL is not set")
	}

	return cfg, nil
}

func parsePositiveFloat(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}
