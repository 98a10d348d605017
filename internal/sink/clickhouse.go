package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/config"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
)

type clickHouseSink struct {
	conn     driver.Conn
	database string
}

// NewClickHouseSink connects to ClickHouse and creates the warehouse tables if missing
func NewClickHouseSink(ctx context.Context, cfg config.ClickHouseConfig) (Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addrs,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 30 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	s := &clickHouseSink{conn: conn, database: cfg.Database}
	for _, table := range Tables(&domain.Warehouse{}) {
		if err := conn.Exec(ctx, CreateTableSQL(cfg.Database, table)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to create clickhouse table %s: %w", table.Name, err)
		}
	}

	logger.InfoCtx(ctx, "ClickHouse sink ready", zap.Strings("addrs", cfg.Addrs), zap.String("database", cfg.Database))
	return s, nil
}

// CreateTableSQL returns the DDL of an export table. ReplacingMergeTree
// collapses rows re-exported under the same key.
func CreateTableSQL(database string, table Table) string {
	columns := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		columns = append(columns, fmt.Sprintf("`%s` %s", c.Name, c.Type))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s`.`%s` (\n\t%s\n) ENGINE = ReplacingMergeTree\nORDER BY (%s)",
		database, table.Name, strings.Join(columns, ",\n\t"), strings.Join(table.OrderBy, ", "))
}

// InsertSQL returns the batch insert statement of an export table
func InsertSQL(database string, table Table) string {
	names := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		names = append(names, c.Name)
	}
	return fmt.Sprintf("INSERT INTO `%s`.`%s` (%s)", database, table.Name, strings.Join(names, ", "))
}

func (s *clickHouseSink) Export(ctx context.Context, w *domain.Warehouse) error {
	for _, table := range Tables(w) {
		if len(table.Rows) == 0 {
			continue
		}
		if err := s.insert(ctx, table); err != nil {
			return fmt.Errorf("failed to export %s: %w", table.Name, err)
		}
		logger.DebugCtx(ctx, "Exported table to clickhouse",
			zap.String("table", table.Name),
			zap.Int("rows", len(table.Rows)))
	}
	return nil
}

func (s *clickHouseSink) insert(ctx context.Context, table Table) error {
	batch, err := s.conn.PrepareBatch(ctx, InsertSQL(s.database, table))
	if err != nil {
		return err
	}
	defer func() { _ = batch.Close() }()

	for _, row := range table.Rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

func (s *clickHouseSink) Close() error {
	return s.conn.Close()
}
