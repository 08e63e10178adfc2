// Package database 报表 API 的只读数据访问层（gorm over postgres）
// 写入端走 storage 包的池化 UPSERT，这里只负责查询
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ETFEngine/pkg/config"
	"ETFEngine/pkg/storage"
)

// ETFMetadataRow etf_metadata 的查询视图
// tick_steps / trading_hours 以 JSON 文本存储，原样返回给调用方
type ETFMetadataRow struct {
	Symbol             string  `gorm:"column:symbol;primaryKey" json:"symbol"`
	ShortName          string  `gorm:"column:short_name" json:"short_name"`
	Category           string  `gorm:"column:category" json:"category"`
	ListingDate        string  `gorm:"column:listing_date" json:"listing_date"`
	TickUnit           float64 `gorm:"column:tick_unit" json:"tick_unit"`
	TickSteps          string  `gorm:"column:tick_steps" json:"tick_steps"`
	TradingHours       string  `gorm:"column:trading_hours" json:"trading_hours"`
	TransactionTaxRate float64 `gorm:"column:transaction_tax_rate" json:"transaction_tax_rate"`
	LotSize            int     `gorm:"column:lot_size" json:"lot_size"`
	Exchange           string  `gorm:"column:exchange" json:"exchange"`
	DistributionPolicy string  `gorm:"column:distribution_policy" json:"distribution_policy"`
}

// TableName 指定表名
func (ETFMetadataRow) TableName() string {
	return "etf_metadata"
}

// DB 只读数据库连接
type DB struct {
	db *gorm.DB
}

// New 创建postgres连接
func New(cfg *config.Config) (*DB, error) {
	dbCfg := cfg.Database
	dsn := storage.PostgresDSN(dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.DBName, dbCfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	return &DB{db: db}, nil
}

// GetBySymbol 按证券代号查询单条记录
func (d *DB) GetBySymbol(symbol string) (*ETFMetadataRow, error) {
	var row ETFMetadataRow
	err := d.db.First(&row, "symbol = ?", symbol).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("ETF不存在: %s", symbol)
		}
		return nil, fmt.Errorf("查询ETF元数据失败: %w", err)
	}
	return &row, nil
}

// List 按代号排序返回至多 limit 条记录
func (d *DB) List(limit int) ([]*ETFMetadataRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []*ETFMetadataRow
	err := d.db.Order("symbol").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询ETF列表失败: %w", err)
	}
	return rows, nil
}

// Count 当前已入库的记录总数
func (d *DB) Count() (int64, error) {
	var count int64
	err := d.db.Model(&ETFMetadataRow{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计ETF记录失败: %w", err)
	}
	return count, nil
}

// Ping 确认数据库连接可用
func (d *DB) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层连接失败: %w", err)
	}
	return sqlDB.Ping()
}

// Close 关闭底层连接
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
