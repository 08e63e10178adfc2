package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"ETFEngine/pkg/model"
)

// ErrStorage 入库失败（事务已整体回滚）
var ErrStorage = errors.New("存储操作失败")

// 使用 ON CONFLICT 的 UPSERT（以 symbol 唯一键判重）
// 注意：etf_metadata 表需要在 symbol 上建立唯一索引以启用此语法
const upsertSQL = `
INSERT INTO etf_metadata (
    symbol, short_name, category, listing_date,
    tick_unit, tick_steps, trading_hours,
    transaction_tax_rate, lot_size, exchange, distribution_policy
) VALUES (
    :symbol, :short_name, :category, :listing_date,
    :tick_unit, :tick_steps, :trading_hours,
    :transaction_tax_rate, :lot_size, :exchange, :distribution_policy
) ON CONFLICT (symbol) DO UPDATE SET
    short_name = excluded.short_name,
    category = excluded.category,
    listing_date = excluded.listing_date,
    tick_unit = excluded.tick_unit,
    tick_steps = excluded.tick_steps,
    trading_hours = excluded.trading_hours,
    transaction_tax_rate = excluded.transaction_tax_rate,
    lot_size = excluded.lot_size,
    exchange = excluded.exchange,
    distribution_policy = excluded.distribution_policy`

const schemaSQL = `
CREATE TABLE IF NOT EXISTS etf_metadata (
    symbol TEXT PRIMARY KEY,
    short_name TEXT NOT NULL,
    category TEXT NOT NULL,
    listing_date TEXT NOT NULL,
    tick_unit DOUBLE PRECISION NOT NULL,
    tick_steps TEXT NOT NULL,
    trading_hours TEXT NOT NULL,
    transaction_tax_rate DOUBLE PRECISION NOT NULL,
    lot_size INTEGER NOT NULL,
    exchange TEXT NOT NULL,
    distribution_policy TEXT NOT NULL
)`

// metadataRow etf_metadata 的一行，tick_steps/trading_hours 序列化为 JSON 文本
type metadataRow struct {
	Symbol             string  `db:"symbol"`
	ShortName          string  `db:"short_name"`
	Category           string  `db:"category"`
	ListingDate        string  `db:"listing_date"`
	TickUnit           float64 `db:"tick_unit"`
	TickSteps          string  `db:"tick_steps"`
	TradingHours       string  `db:"trading_hours"`
	TransactionTaxRate float64 `db:"transaction_tax_rate"`
	LotSize            int     `db:"lot_size"`
	Exchange           string  `db:"exchange"`
	DistributionPolicy string  `db:"distribution_policy"`
}

func toRow(rec model.ETFMetadata) (metadataRow, error) {
	steps, err := json.Marshal(rec.TickSteps)
	if err != nil {
		return metadataRow{}, fmt.Errorf("序列化 tick_steps 失败: %w", err)
	}
	hours, err := json.Marshal(rec.TradingHours)
	if err != nil {
		return metadataRow{}, fmt.Errorf("序列化 trading_hours 失败: %w", err)
	}
	return metadataRow{
		Symbol:             rec.Symbol,
		ShortName:          rec.ShortName,
		Category:           rec.Category,
		ListingDate:        rec.ListingDate,
		TickUnit:           rec.TickUnit,
		TickSteps:          string(steps),
		TradingHours:       string(hours),
		TransactionTaxRate: rec.TransactionTaxRate,
		LotSize:            rec.LotSize,
		Exchange:           rec.Exchange,
		DistributionPolicy: rec.DistributionPolicy,
	}, nil
}

// Store etf_metadata 的写入端：自管连接池 + 事务性批量 UPSERT
type Store struct {
	db   *sqlx.DB
	pool *Pool
}

// PostgresDSN 由连接参数构建 pgx DSN
func PostgresDSN(host string, port int, user, password, dbname, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)
}

// Open 连接数据库并初始化连接池
func Open(driver, dsn string, poolSize int) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("测试数据库连接失败: %w", err)
	}
	return NewStore(db, poolSize), nil
}

// NewStore 基于已有的 *sqlx.DB 创建 Store（测试时可注入内存库）
func NewStore(db *sqlx.DB, poolSize int) *Store {
	pool := NewPool(poolSize, func(ctx context.Context) (*sqlx.Conn, error) {
		return db.Connx(ctx)
	})
	return &Store{db: db, pool: pool}
}

// Pool 暴露底层连接池（健康检查等场景复用同一个池）
func (s *Store) Pool() *Pool {
	return s.pool
}

// InitSchema 建表（幂等）。生产环境通常由迁移工具负责，测试与首次部署可直接调用
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("创建 etf_metadata 表失败: %w", err)
	}
	return nil
}

// UpsertBatch 将多条记录在单个事务内逐条 UPSERT：
// 全部成功才提交，任何一条失败整体回滚，不产生部分写入。
// 连接无论成败都归还池中。返回受影响行数合计。
func (s *Store) UpsertBatch(ctx context.Context, records []model.ETFMetadata) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer s.pool.Release(conn)

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: 开启事务失败: %v", ErrStorage, err)
	}

	var affected int64
	for _, rec := range records {
		row, err := toRow(rec)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		res, err := tx.NamedExecContext(ctx, upsertSQL, row)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("%w: UPSERT symbol=%s 失败: %v", ErrStorage, rec.Symbol, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: 提交事务失败: %v", ErrStorage, err)
	}
	return affected, nil
}

// HealthCheck 通过池取连接执行最小查询，确认数据库可用
func (s *Store) HealthCheck(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer s.pool.Release(conn)

	var one int
	if err := conn.GetContext(ctx, &one, "SELECT 1"); err != nil || one != 1 {
		return fmt.Errorf("%w: 健康检查失败: %v", ErrStorage, err)
	}
	return nil
}

// Close 关闭池内连接与底层数据库
func (s *Store) Close() {
	s.pool.CloseAll()
	s.db.Close()
}
