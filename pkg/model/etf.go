package model

// TickStep 价格区间与对应的最小升降单位
// Max 为 nil 表示该区间无上界（最后一档）
type TickStep struct {
	Min  float64  `json:"min"`
	Max  *float64 `json:"max"`
	Tick float64  `json:"tick"`
}

// SessionWindow 交易时段（开始/结束，HH:MM）
type SessionWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AfterHours 盘后时段，目前仅零股交易窗口
type AfterHours struct {
	OddLot string `json:"odd_lot"`
}

// TradingHours 交易时间：普通时段 + 盘后零股时段
type TradingHours struct {
	Regular    SessionWindow `json:"regular"`
	AfterHours AfterHours    `json:"after_hours"`
}

// ETFMetadata etf_metadata 表的一条规范化记录
// Symbol 是唯一键，入库采用 UPSERT
type ETFMetadata struct {
	Symbol             string       `json:"symbol" db:"symbol"`
	ShortName          string       `json:"short_name" db:"short_name"`
	Category           string       `json:"category" db:"category"`
	ListingDate        string       `json:"listing_date" db:"listing_date"`
	TickUnit           float64      `json:"tick_unit" db:"tick_unit"`
	TickSteps          []TickStep   `json:"tick_steps" db:"-"`
	TradingHours       TradingHours `json:"trading_hours" db:"-"`
	TransactionTaxRate float64      `json:"transaction_tax_rate" db:"transaction_tax_rate"`
	LotSize            int          `json:"lot_size" db:"lot_size"`
	Exchange           string       `json:"exchange" db:"exchange"`
	DistributionPolicy string       `json:"distribution_policy" db:"distribution_policy"`
}

// FieldSources 记录每个字段的取值来源：true 表示解析失败后回退到默认值
// 不入库，仅用于日志与测试观察
type FieldSources map[string]bool

// 可观察的字段名常量（与 FieldSources 的键对应）
const (
	FieldListingDate        = "listing_date"
	FieldLotSize            = "lot_size"
	FieldTaxRate            = "transaction_tax_rate"
	FieldTickSteps          = "tick_steps"
	FieldDistributionPolicy = "distribution_policy"
)

// 默认值：TWSE 字段缺失或无法解析时的保底
const (
	DefaultTaxRate      = 0.001        // 千分之一
	DefaultLotSize      = 1000         // 受益权单位
	DefaultExchange     = "TWSE"       // 数据来源交易所
	FallbackListingDate = "2000-01-01" // 日期解析失败时的保底
	MissingText         = "未提供"        // 文本字段缺失时的占位
)

// DefaultTradingHours 默认交易时段（TWSE 未提供逐档精确时段时使用）
func DefaultTradingHours() TradingHours {
	return TradingHours{
		Regular:    SessionWindow{Start: "09:00", End: "13:30"},
		AfterHours: AfterHours{OddLot: "13:40-14:30"},
	}
}

// DefaultTickSteps 默认六档升降单位（文字无法解析时使用）
func DefaultTickSteps() []TickStep {
	return []TickStep{
		{Min: 0, Max: f64(10), Tick: 0.01},
		{Min: 10, Max: f64(50), Tick: 0.05},
		{Min: 50, Max: f64(100), Tick: 0.1},
		{Min: 100, Max: f64(500), Tick: 0.5},
		{Min: 500, Max: f64(1000), Tick: 5},
		{Min: 1000, Max: nil, Tick: 10},
	}
}

// MinTick 取所有档位中最小的 tick 作为 tick_unit
// steps 为空时回退默认六档
func MinTick(steps []TickStep) float64 {
	if len(steps) == 0 {
		steps = DefaultTickSteps()
	}
	min := steps[0].Tick
	for _, s := range steps[1:] {
		if s.Tick < min {
			min = s.Tick
		}
	}
	return min
}

func f64(v float64) *float64 {
	return &v
}
