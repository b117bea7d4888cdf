// pkg/source/snowflake.go
package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/retailscope/campaign-response/pkg/config"
	"github.com/retailscope/campaign-response/pkg/model"
)

// SnowflakeSource implements DatasetSource over warehouse tables. It also
// implements FeatureAggregator: the count-distinct/sum aggregation is pushed
// down into the engine rather than materializing raw transactions locally.
type SnowflakeSource struct {
	db       *sqlx.DB
	logger   *zap.Logger
	cfg      *config.SnowflakeConfig
	idColumn string
}

// NewSnowflakeSource opens a Snowflake connection pool and verifies it.
func NewSnowflakeSource(ctx context.Context, cfg *config.SnowflakeConfig, idColumn string) (*SnowflakeSource, error) {
	logger := zap.L().Named("snowflake-source")

	// Create DSN using Snowflake's DSN builder
	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Schema:        cfg.Schema,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	ApplyConnectionSettings(
		db.DB,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Set query timeout if configured
	if cfg.QueryTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d",
				int(cfg.QueryTimeout.Seconds())),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	// Verify connection
	if err := PingWithTimeout(ctx, db.DB, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	src := &SnowflakeSource{
		db:       db,
		logger:   logger,
		cfg:      cfg,
		idColumn: idColumn,
	}

	if err := src.validate(); err != nil {
		db.Close()
		return nil, err
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return src, nil
}

// validate verifies the session landed on the expected database.
func (s *SnowflakeSource) validate() error {
	var role, database, warehouse string
	err := s.db.QueryRow("SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	s.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	if database != s.cfg.Database {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, s.cfg.Database)
	}

	return nil
}

// Transactions loads every line item from the transactions table. The
// aliases are quoted: Snowflake folds unquoted identifiers to uppercase,
// and the sqlx struct mapping needs the lowercase column names back.
func (s *SnowflakeSource) Transactions(ctx context.Context) ([]model.TransactionRecord, error) {
	query := fmt.Sprintf(
		`SELECT TO_VARCHAR(cust_id) AS "cust_id", day_num AS "day_num", extended_price AS "extended_price" FROM %s`,
		s.tableRef(s.cfg.TransactionsTable),
	)

	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	var records []model.TransactionRecord
	if err := s.db.SelectContext(qctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to load transactions from %s: %w",
			s.cfg.TransactionsTable, err)
	}

	s.logger.Info("Loaded transactions",
		zap.String("table", s.cfg.TransactionsTable),
		zap.Int("rows", len(records)))

	return records, nil
}

// AggregateFeatures pushes the per-customer aggregation into the engine:
// distinct shopping days and total spend, grouped by customer.
func (s *SnowflakeSource) AggregateFeatures(ctx context.Context) ([]model.CustomerFeatureRow, error) {
	query := fmt.Sprintf(`
		SELECT
			TO_VARCHAR(cust_id) AS cust_id,
			COUNT(DISTINCT day_num) AS txns,
			SUM(extended_price) AS spend
		FROM %s
		GROUP BY cust_id
		ORDER BY cust_id`,
		s.tableRef(s.cfg.TransactionsTable),
	)

	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(qctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate features in %s: %w",
			s.cfg.TransactionsTable, err)
	}
	defer rows.Close()

	var features []model.CustomerFeatureRow
	for rows.Next() {
		var row model.CustomerFeatureRow
		if err := rows.Scan(&row.CustomerID, &row.Txns, &row.Spend); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		features = append(features, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feature rows: %w", err)
	}

	s.logger.Info("Aggregated features in engine",
		zap.String("table", s.cfg.TransactionsTable),
		zap.Int("customers", len(features)))

	return features, nil
}

// Demographics loads the demographics table with its open attribute set.
// The configured identifier column is renamed to the canonical "ID" here.
func (s *SnowflakeSource) Demographics(ctx context.Context) (model.DemographicsTable, error) {
	var out model.DemographicsTable

	query := fmt.Sprintf("SELECT * FROM %s", s.tableRef(s.cfg.DemographicsTable))

	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(qctx, query)
	if err != nil {
		return out, fmt.Errorf("failed to load demographics from %s: %w",
			s.cfg.DemographicsTable, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return out, fmt.Errorf("failed to read demographics schema: %w", err)
	}

	idCol := ""
	attrColumns := make([]string, 0, len(cols))
	for _, col := range cols {
		if strings.EqualFold(col, s.idColumn) {
			if idCol != "" {
				return out, fmt.Errorf("demographics table has duplicate identifier column %q", s.idColumn)
			}
			idCol = col
			continue
		}
		attrColumns = append(attrColumns, col)
	}
	if idCol == "" {
		return out, fmt.Errorf("required column %q not found in %s",
			s.idColumn, s.cfg.DemographicsTable)
	}

	var records []model.DemographicRecord
	for rows.Next() {
		raw := make(map[string]interface{}, len(cols))
		if err := rows.MapScan(raw); err != nil {
			return out, fmt.Errorf("failed to scan demographic row: %w", err)
		}

		id := valueToString(raw[idCol])
		if id == "" {
			return out, fmt.Errorf("demographic row with empty identifier in %s",
				s.cfg.DemographicsTable)
		}

		attrs := make(map[string]string, len(attrColumns))
		for _, col := range attrColumns {
			attrs[col] = valueToString(raw[col])
		}

		records = append(records, model.DemographicRecord{ID: id, Attrs: attrs})
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("error iterating demographic rows: %w", err)
	}

	s.logger.Info("Loaded demographics",
		zap.String("table", s.cfg.DemographicsTable),
		zap.String("idColumn", idCol),
		zap.Strings("attrColumns", attrColumns),
		zap.Int("rows", len(records)))

	out.AttrColumns = attrColumns
	out.Records = records
	return out, nil
}

// CampaignSample loads the campaign sample table. Aliases are quoted for
// the same identifier-folding reason as in Transactions.
func (s *SnowflakeSource) CampaignSample(ctx context.Context) ([]model.CampaignSampleRecord, error) {
	query := fmt.Sprintf(
		`SELECT TO_VARCHAR(cust_id) AS "cust_id", TO_BOOLEAN(respondYes) AS "respondyes" FROM %s`,
		s.tableRef(s.cfg.SampleTable),
	)

	qctx, cancel := s.queryContext(ctx)
	defer cancel()

	var records []model.CampaignSampleRecord
	if err := s.db.SelectContext(qctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to load campaign sample from %s: %w",
			s.cfg.SampleTable, err)
	}

	s.logger.Info("Loaded campaign sample",
		zap.String("table", s.cfg.SampleTable),
		zap.Int("rows", len(records)))

	return records, nil
}

// Close closes the database connection
func (s *SnowflakeSource) Close() error {
	s.logger.Info("Closing Snowflake connection")
	LogConnectionStats(s.logger, s.cfg.Database, s.db.DB)
	return s.db.Close()
}

func (s *SnowflakeSource) tableRef(table string) string {
	return fmt.Sprintf("%s.%s", s.cfg.Schema, table)
}

func (s *SnowflakeSource) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// valueToString normalizes a driver value into the string form used for
// demographic attributes. Nil becomes the empty string.
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
