// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Source kinds for the dataset loader.
const (
	SourceParquet   = "parquet"
	SourceSnowflake = "snowflake"
)

// Config represents the application configuration
type Config struct {
	// Dataset source selection
	Source    string
	Parquet   *ParquetConfig
	Snowflake *SnowflakeConfig

	// Name of the customer-identifier column in the demographics dataset,
	// renamed to the canonical "ID" at load time.
	DemographicsIDColumn string

	// Logging
	LogLevel  string
	LogFormat string
}

// ParquetConfig holds the locations of the three columnar input files
type ParquetConfig struct {
	TransactionsPath string
	DemographicsPath string
	SamplePath       string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Source:               getEnv("DATASET_SOURCE", SourceParquet),
		DemographicsIDColumn: getEnv("DEMOGRAPHICS_ID_COLUMN", "cust_id"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}

	switch cfg.Source {
	case SourceParquet:
		pqCfg, err := LoadParquetConfig()
		if err != nil {
			return nil, errors.New("failed to load parquet configuration: " + err.Error())
		}
		cfg.Parquet = pqCfg
	case SourceSnowflake:
		snowCfg, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
		}
		cfg.Snowflake = snowCfg
	default:
		return nil, fmt.Errorf("unknown dataset source %q (want %q or %q)",
			cfg.Source, SourceParquet, SourceSnowflake)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadParquetConfig loads the parquet file locations from environment variables
func LoadParquetConfig() (*ParquetConfig, error) {
	txns := os.Getenv("TRANSACTIONS_PATH")
	if txns == "" {
		return nil, errors.New("TRANSACTIONS_PATH environment variable is required")
	}

	demo := os.Getenv("DEMOGRAPHICS_PATH")
	if demo == "" {
		return nil, errors.New("DEMOGRAPHICS_PATH environment variable is required")
	}

	sample := os.Getenv("CAMPAIGN_SAMPLE_PATH")
	if sample == "" {
		return nil, errors.New("CAMPAIGN_SAMPLE_PATH environment variable is required")
	}

	return &ParquetConfig{
		TransactionsPath: txns,
		DemographicsPath: demo,
		SamplePath:       sample,
	}, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.Source == SourceParquet && c.Parquet == nil {
		return errors.New("parquet configuration is required")
	}

	if c.Source == SourceSnowflake && c.Snowflake == nil {
		return errors.New("snowflake configuration is required")
	}

	if c.DemographicsIDColumn == "" {
		return errors.New("demographics identifier column must not be empty")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
