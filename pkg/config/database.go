// pkg/config/database.go
package config

import (
	"errors"
	"os"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// SnowflakeConfig holds Snowflake connection parameters and the warehouse
// tables the three datasets are loaded from.
type SnowflakeConfig struct {
	User          string
	Password      string
	Account       string
	Warehouse     string
	Database      string
	Schema        string
	Role          string
	Authenticator gosnowflake.AuthType

	// Source tables
	TransactionsTable string
	DemographicsTable string
	SampleTable       string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Query timeout
	QueryTimeout time.Duration
}

// LoadSnowflakeConfig loads Snowflake configuration from environment variables
func LoadSnowflakeConfig() (*SnowflakeConfig, error) {
	user := os.Getenv("SNOWFLAKE_USER")
	if user == "" {
		return nil, errors.New("SNOWFLAKE_USER environment variable is required")
	}

	password := os.Getenv("SNOWFLAKE_PASSWORD")
	if password == "" {
		return nil, errors.New("SNOWFLAKE_PASSWORD environment variable is required")
	}

	account := os.Getenv("SNOWFLAKE_ACCOUNT")
	if account == "" {
		return nil, errors.New("SNOWFLAKE_ACCOUNT environment variable is required")
	}

	warehouse := os.Getenv("SNOWFLAKE_WAREHOUSE")
	if warehouse == "" {
		return nil, errors.New("SNOWFLAKE_WAREHOUSE environment variable is required")
	}

	// Convert authenticator string to proper type
	authString := getEnv("SNOWFLAKE_AUTHENTICATOR", "snowflake")
	var authenticator gosnowflake.AuthType
	switch authString {
	case "snowflake":
		authenticator = gosnowflake.AuthTypeSnowflake
	case "oauth":
		authenticator = gosnowflake.AuthTypeOAuth
	case "externalbrowser":
		authenticator = gosnowflake.AuthTypeExternalBrowser
	case "username_password_mfa":
		authenticator = gosnowflake.AuthTypeUsernamePasswordMFA
	case "jwt":
		authenticator = gosnowflake.AuthTypeJwt
	case "token":
		authenticator = gosnowflake.AuthTypeTokenAccessor
	case "okta":
		authenticator = gosnowflake.AuthTypeOkta
	default:
		authenticator = gosnowflake.AuthTypeSnowflake
	}

	cfg := &SnowflakeConfig{
		User:          user,
		Password:      password,
		Account:       account,
		Warehouse:     warehouse,
		Database:      getEnv("SNOWFLAKE_DATABASE", "ANALYTICS"),
		Schema:        getEnv("SNOWFLAKE_SCHEMA", "PUBLIC"),
		Role:          getEnv("SNOWFLAKE_ROLE", ""),
		Authenticator: authenticator,

		TransactionsTable: getEnv("SNOWFLAKE_TRANSACTIONS_TABLE", "TRANSACTIONS"),
		DemographicsTable: getEnv("SNOWFLAKE_DEMOGRAPHICS_TABLE", "DEMOGRAPHICS"),
		SampleTable:       getEnv("SNOWFLAKE_SAMPLE_TABLE", "CAMPAIGN_SAMPLE"),

		MaxOpenConns:    getEnvAsInt("SNOWFLAKE_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("SNOWFLAKE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvAsInt("SNOWFLAKE_CONN_MAX_LIFETIME_SECONDS", 600)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvAsInt("SNOWFLAKE_CONN_MAX_IDLE_TIME_SECONDS", 300)) * time.Second,
		QueryTimeout:    time.Duration(getEnvAsInt("SNOWFLAKE_QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	return cfg, nil
}
