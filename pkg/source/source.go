// pkg/source/source.go
package source

import (
	"context"
	"fmt"

	"github.com/retailscope/campaign-response/pkg/config"
	"github.com/retailscope/campaign-response/pkg/model"
)

// DatasetSource loads the three input datasets. Implementations discover the
// schema from the source's own metadata; only the column names referenced by
// joins and aggregations are fixed. The demographics customer-identifier
// column is renamed to the canonical "ID" by the implementation, exactly
// once, at load time.
type DatasetSource interface {
	// Transactions returns every line item.
	Transactions(ctx context.Context) ([]model.TransactionRecord, error)

	// Demographics returns one record per customer with the identifier
	// split out from the open attribute set.
	Demographics(ctx context.Context) (model.DemographicsTable, error)

	// CampaignSample returns the customers who received the offer with
	// their response labels.
	CampaignSample(ctx context.Context) ([]model.CampaignSampleRecord, error)

	// Close releases any resources held by the source.
	Close() error
}

// FeatureAggregator is implemented by sources that can push the per-customer
// count-distinct/sum aggregation down into the query engine instead of
// materializing raw transactions locally.
type FeatureAggregator interface {
	AggregateFeatures(ctx context.Context) ([]model.CustomerFeatureRow, error)
}

// New creates the dataset source selected by the configuration.
func New(ctx context.Context, cfg *config.Config) (DatasetSource, error) {
	switch cfg.Source {
	case config.SourceParquet:
		return NewParquetSource(cfg.Parquet, cfg.DemographicsIDColumn), nil
	case config.SourceSnowflake:
		src, err := NewSnowflakeSource(ctx, cfg.Snowflake, cfg.DemographicsIDColumn)
		if err != nil {
			return nil, fmt.Errorf("failed to create Snowflake source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown dataset source %q", cfg.Source)
	}
}
