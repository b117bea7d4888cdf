package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setParquetEnv(t *testing.T) {
	t.Setenv("DATASET_SOURCE", SourceParquet)
	t.Setenv("TRANSACTIONS_PATH", "/data/transactions.parquet")
	t.Setenv("DEMOGRAPHICS_PATH", "/data/demographics.parquet")
	t.Setenv("CAMPAIGN_SAMPLE_PATH", "/data/campaign_sample.parquet")
}

func TestLoadConfig_ParquetDefaults(t *testing.T) {
	setParquetEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, SourceParquet, cfg.Source)
	require.NotNil(t, cfg.Parquet)
	assert.Equal(t, "/data/transactions.parquet", cfg.Parquet.TransactionsPath)
	assert.Equal(t, "/data/demographics.parquet", cfg.Parquet.DemographicsPath)
	assert.Equal(t, "/data/campaign_sample.parquet", cfg.Parquet.SamplePath)
	assert.Equal(t, "cust_id", cfg.DemographicsIDColumn)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Nil(t, cfg.Snowflake)
}

func TestLoadConfig_OverridesIDColumnAndLogging(t *testing.T) {
	setParquetEnv(t)
	t.Setenv("DEMOGRAPHICS_ID_COLUMN", "customer_key")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "customer_key", cfg.DemographicsIDColumn)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadConfig_MissingParquetPath(t *testing.T) {
	setParquetEnv(t)
	t.Setenv("CAMPAIGN_SAMPLE_PATH", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAMPAIGN_SAMPLE_PATH")
}

func TestLoadConfig_UnknownSource(t *testing.T) {
	t.Setenv("DATASET_SOURCE", "csv")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv")
}

func TestLoadConfig_Snowflake(t *testing.T) {
	t.Setenv("DATASET_SOURCE", SourceSnowflake)
	t.Setenv("SNOWFLAKE_USER", "loader")
	t.Setenv("SNOWFLAKE_PASSWORD", "secret")
	t.Setenv("SNOWFLAKE_ACCOUNT", "org-acct")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.NotNil(t, cfg.Snowflake)
	assert.Equal(t, "loader", cfg.Snowflake.User)
	assert.Equal(t, "ANALYTICS", cfg.Snowflake.Database)
	assert.Equal(t, "PUBLIC", cfg.Snowflake.Schema)
	assert.Equal(t, "TRANSACTIONS", cfg.Snowflake.TransactionsTable)
	assert.Equal(t, "DEMOGRAPHICS", cfg.Snowflake.DemographicsTable)
	assert.Equal(t, "CAMPAIGN_SAMPLE", cfg.Snowflake.SampleTable)
	assert.Nil(t, cfg.Parquet)
}

func TestLoadConfig_SnowflakeMissingCredentials(t *testing.T) {
	t.Setenv("DATASET_SOURCE", SourceSnowflake)
	t.Setenv("SNOWFLAKE_USER", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNOWFLAKE_USER")
}
