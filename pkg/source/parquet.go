// pkg/source/parquet.go
package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/retailscope/campaign-response/pkg/config"
	"github.com/retailscope/campaign-response/pkg/model"
)

const readBatchSize = 64 * 1024

// ParquetSource implements DatasetSource over local parquet files. The
// schema of each file is discovered from its embedded metadata.
type ParquetSource struct {
	cfg      *config.ParquetConfig
	idColumn string
	logger   *zap.Logger
	alloc    memory.Allocator
}

// NewParquetSource creates a parquet-backed dataset source. idColumn names
// the customer identifier in the demographics file; it is renamed to the
// canonical "ID" during load.
func NewParquetSource(cfg *config.ParquetConfig, idColumn string) *ParquetSource {
	return &ParquetSource{
		cfg:      cfg,
		idColumn: idColumn,
		logger:   zap.L().Named("parquet-source"),
		alloc:    memory.DefaultAllocator,
	}
}

// Transactions loads the transaction dataset.
func (s *ParquetSource) Transactions(ctx context.Context) ([]model.TransactionRecord, error) {
	tbl, err := s.readTable(ctx, s.cfg.TransactionsPath)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	custIdx, err := fieldIndex(tbl.Schema(), model.TransactionIDColumn)
	if err != nil {
		return nil, fmt.Errorf("transactions %s: %w", s.cfg.TransactionsPath, err)
	}
	dayIdx, err := fieldIndex(tbl.Schema(), model.DayNumColumn)
	if err != nil {
		return nil, fmt.Errorf("transactions %s: %w", s.cfg.TransactionsPath, err)
	}
	priceIdx, err := fieldIndex(tbl.Schema(), model.ExtendedPriceColumn)
	if err != nil {
		return nil, fmt.Errorf("transactions %s: %w", s.cfg.TransactionsPath, err)
	}

	records := make([]model.TransactionRecord, 0, int(tbl.NumRows()))
	err = forEachRecord(tbl, func(rec arrow.Record) error {
		for i := 0; i < int(rec.NumRows()); i++ {
			custID, err := stringAt(rec.Column(custIdx), i)
			if err != nil {
				return fmt.Errorf("column %s: %w", model.TransactionIDColumn, err)
			}
			dayNum, err := intAt(rec.Column(dayIdx), i)
			if err != nil {
				return fmt.Errorf("column %s: %w", model.DayNumColumn, err)
			}
			price, err := floatAt(rec.Column(priceIdx), i)
			if err != nil {
				return fmt.Errorf("column %s: %w", model.ExtendedPriceColumn, err)
			}
			records = append(records, model.TransactionRecord{
				CustomerID:    custID,
				DayNum:        dayNum,
				ExtendedPrice: price,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode transactions from %s: %w", s.cfg.TransactionsPath, err)
	}

	s.logger.Info("Loaded transactions",
		zap.String("path", s.cfg.TransactionsPath),
		zap.Int("rows", len(records)))

	return records, nil
}

// Demographics loads the demographic dataset. The configured identifier
// column becomes the record ID; every remaining column is kept as a string
// attribute in schema order.
func (s *ParquetSource) Demographics(ctx context.Context) (model.DemographicsTable, error) {
	var out model.DemographicsTable

	tbl, err := s.readTable(ctx, s.cfg.DemographicsPath)
	if err != nil {
		return out, err
	}
	defer tbl.Release()

	idIdx, err := fieldIndex(tbl.Schema(), s.idColumn)
	if err != nil {
		return out, fmt.Errorf("demographics %s: %w", s.cfg.DemographicsPath, err)
	}

	// Rename happens here and only here: the identifier is split out of the
	// attribute set under the canonical name.
	attrColumns := make([]string, 0, tbl.Schema().NumFields()-1)
	attrIdx := make([]int, 0, tbl.Schema().NumFields()-1)
	for i, field := range tbl.Schema().Fields() {
		if i == idIdx {
			continue
		}
		attrColumns = append(attrColumns, field.Name)
		attrIdx = append(attrIdx, i)
	}

	records := make([]model.DemographicRecord, 0, int(tbl.NumRows()))
	err = forEachRecord(tbl, func(rec arrow.Record) error {
		for i := 0; i < int(rec.NumRows()); i++ {
			id, err := stringAt(rec.Column(idIdx), i)
			if err != nil {
				return fmt.Errorf("column %s: %w", s.idColumn, err)
			}

			attrs := make(map[string]string, len(attrColumns))
			for j, col := range attrIdx {
				v, err := attrStringAt(rec.Column(col), i)
				if err != nil {
					return fmt.Errorf("column %s: %w", attrColumns[j], err)
				}
				attrs[attrColumns[j]] = v
			}

			records = append(records, model.DemographicRecord{ID: id, Attrs: attrs})
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("failed to decode demographics from %s: %w", s.cfg.DemographicsPath, err)
	}

	s.logger.Info("Loaded demographics",
		zap.String("path", s.cfg.DemographicsPath),
		zap.String("idColumn", s.idColumn),
		zap.Strings("attrColumns", attrColumns),
		zap.Int("rows", len(records)))

	out.AttrColumns = attrColumns
	out.Records = records
	return out, nil
}

// CampaignSample loads the campaign sample dataset.
func (s *ParquetSource) CampaignSample(ctx context.Context) ([]model.CampaignSampleRecord, error) {
	tbl, err := s.readTable(ctx, s.cfg.SamplePath)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	custIdx, err := fieldIndex(tbl.Schema(), model.TransactionIDColumn)
	if err != nil {
		return nil, fmt.Errorf("campaign sample %s: %w", s.cfg.SamplePath, err)
	}
	respIdx, err := fieldIndex(tbl.Schema(), model.RespondColumn)
	if err != nil {
		return nil, fmt.Errorf("campaign sample %s: %w", s.cfg.SamplePath, err)
	}

	records := make([]model.CampaignSampleRecord, 0, int(tbl.NumRows()))
	err = forEachRecord(tbl, func(rec arrow.Record) error {
		for i := 0; i < int(rec.NumRows()); i++ {
			custID, err := stringAt(rec.Column(custIdx), i)
			if err != nil {
				return fmt.Errorf("column %s: %w", model.TransactionIDColumn, err)
			}
			respond, err := boolAt(rec.Column(respIdx), i)
			if err != nil {
				return fmt.Errorf("column %s: %w", model.RespondColumn, err)
			}
			records = append(records, model.CampaignSampleRecord{
				CustomerID: custID,
				RespondYes: respond,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode campaign sample from %s: %w", s.cfg.SamplePath, err)
	}

	s.logger.Info("Loaded campaign sample",
		zap.String("path", s.cfg.SamplePath),
		zap.Int("rows", len(records)))

	return records, nil
}

// Close is a no-op for file-backed sources.
func (s *ParquetSource) Close() error {
	return nil
}

// readTable materializes one parquet file into an arrow table.
func (s *ParquetSource) readTable(ctx context.Context, path string) (arrow.Table, error) {
	f, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}
	defer f.Close()

	reader, err := pqarrow.NewFileReader(f, pqarrow.ArrowReadProperties{BatchSize: readBatchSize}, s.alloc)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader for %s: %w", path, err)
	}

	tbl, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet table %s: %w", path, err)
	}

	return tbl, nil
}

// forEachRecord walks a table in record batches. The callback must not
// retain the record.
func forEachRecord(tbl arrow.Table, fn func(arrow.Record) error) error {
	tr := array.NewTableReader(tbl, readBatchSize)
	defer tr.Release()

	for tr.Next() {
		if err := fn(tr.Record()); err != nil {
			return err
		}
	}
	return tr.Err()
}

// fieldIndex finds a column by name, falling back to a case-insensitive
// match the way warehouse exports often require.
func fieldIndex(schema *arrow.Schema, name string) (int, error) {
	if indices := schema.FieldIndices(name); len(indices) > 0 {
		return indices[0], nil
	}
	for i, field := range schema.Fields() {
		if strings.EqualFold(field.Name, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("required column %q not found in schema", name)
}

// stringAt decodes a cell as a string identifier. Nulls are rejected.
func stringAt(col arrow.Array, i int) (string, error) {
	if col.IsNull(i) {
		return "", fmt.Errorf("unexpected null at row %d", i)
	}
	switch c := col.(type) {
	case *array.String:
		return c.Value(i), nil
	case *array.LargeString:
		return c.Value(i), nil
	case *array.Int64:
		return strconv.FormatInt(c.Value(i), 10), nil
	case *array.Int32:
		return strconv.FormatInt(int64(c.Value(i)), 10), nil
	case *array.Float64:
		return strconv.FormatFloat(c.Value(i), 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported type %s for string column", col.DataType())
	}
}

// attrStringAt decodes a demographic attribute cell; nulls become the empty
// string rather than failing the load.
func attrStringAt(col arrow.Array, i int) (string, error) {
	if col.IsNull(i) {
		return "", nil
	}
	switch c := col.(type) {
	case *array.Boolean:
		return strconv.FormatBool(c.Value(i)), nil
	case *array.Float32:
		return strconv.FormatFloat(float64(c.Value(i)), 'f', -1, 32), nil
	default:
		return stringAt(col, i)
	}
}

// intAt decodes a cell as an integer day number.
func intAt(col arrow.Array, i int) (int64, error) {
	if col.IsNull(i) {
		return 0, fmt.Errorf("unexpected null at row %d", i)
	}
	switch c := col.(type) {
	case *array.Int64:
		return c.Value(i), nil
	case *array.Int32:
		return int64(c.Value(i)), nil
	case *array.Int16:
		return int64(c.Value(i)), nil
	case *array.Float64:
		return int64(c.Value(i)), nil
	default:
		return 0, fmt.Errorf("unsupported type %s for integer column", col.DataType())
	}
}

// floatAt decodes a cell as a monetary amount.
func floatAt(col arrow.Array, i int) (float64, error) {
	if col.IsNull(i) {
		return 0, fmt.Errorf("unexpected null at row %d", i)
	}
	switch c := col.(type) {
	case *array.Float64:
		return c.Value(i), nil
	case *array.Float32:
		return float64(c.Value(i)), nil
	case *array.Int64:
		return float64(c.Value(i)), nil
	case *array.Int32:
		return float64(c.Value(i)), nil
	default:
		return 0, fmt.Errorf("unsupported type %s for numeric column", col.DataType())
	}
}

// boolAt decodes a response label from the representations seen in exports:
// native booleans, 0/1 integers, and y/yes/true/1 strings.
func boolAt(col arrow.Array, i int) (bool, error) {
	if col.IsNull(i) {
		return false, fmt.Errorf("unexpected null at row %d", i)
	}
	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(i), nil
	case *array.Int64:
		return c.Value(i) != 0, nil
	case *array.Int32:
		return c.Value(i) != 0, nil
	case *array.String:
		return parseBoolLabel(c.Value(i))
	case *array.LargeString:
		return parseBoolLabel(c.Value(i))
	default:
		return false, fmt.Errorf("unsupported type %s for boolean column", col.DataType())
	}
}

func parseBoolLabel(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "y", "yes", "t", "true":
		return true, nil
	case "0", "n", "no", "f", "false":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized boolean value %q", s)
	}
}
