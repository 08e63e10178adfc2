// Package normalizer 将 TWSE 商品内容 JSON 解析为 etf_metadata 的规范化记录
package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"ETFEngine/pkg/model"
)

// ValidationError 原始负载结构缺失或不符合预期，该条记录作废
// 不影响其他代码的处理
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "商品内容结构校验失败: " + e.Reason
}

// IsValidationError 判断错误是否为结构校验失败
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validationErrf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ParseProductContent 将 TWSE 商品内容 JSON 解析为一条 ETFMetadata。
// - 使用 tables[0].fields 与 tables[0].data[0] 按名称对应抽取字段
// - category 优先取「ETF類別」，其次最外层 type，最后兜底 "ETF"
// - 对交易单位/税率/日期/升降单位做必要的正规化与推导，
//   解析失败的字段回退默认值并在 FieldSources 中标记
// 结构缺失（无 tables、无 fields、缺证券代号）返回 ValidationError
func ParseProductContent(detail map[string]interface{}) (*model.ETFMetadata, model.FieldSources, error) {
	stat, _ := detail["stat"].(string)
	if !strings.EqualFold(stat, "ok") {
		return nil, nil, validationErrf("stat 非 ok: %v", detail["stat"])
	}

	tables, ok := detail["tables"].([]interface{})
	if !ok || len(tables) == 0 {
		return nil, nil, validationErrf("tables 结构缺失或为空")
	}
	main, ok := tables[0].(map[string]interface{})
	if !ok {
		return nil, nil, validationErrf("tables[0] 非对象")
	}

	rawFields, ok := main["fields"].([]interface{})
	if !ok || len(rawFields) == 0 {
		return nil, nil, validationErrf("tables[0].fields 缺失")
	}
	rawData, ok := main["data"].([]interface{})
	if !ok || len(rawData) == 0 {
		return nil, nil, validationErrf("tables[0].data 缺失")
	}
	row, ok := rawData[0].([]interface{})
	if !ok {
		return nil, nil, validationErrf("tables[0].data[0] 非数组")
	}

	// 建立字段名到索引的对照表，按名称取值以兼容列序变化
	idx := make(map[string]int, len(rawFields))
	for i, f := range rawFields {
		if name, ok := f.(string); ok {
			idx[name] = i
		}
	}

	getField := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		switch v := row[i].(type) {
		case string:
			return v
		case nil:
			return ""
		default:
			return fmt.Sprint(v)
		}
	}

	// 关键字段：证券代号，缺失直接作废
	symbol := strings.TrimSpace(getField("證券代號"))
	if symbol == "" {
		return nil, nil, validationErrf("缺少必要字段: 證券代號")
	}

	// 简称：优先「ETF簡稱」，次之「名稱」或表标题，再不行用代号兜底
	shortName := strings.TrimSpace(getField("ETF簡稱"))
	if shortName == "" {
		shortName = strings.TrimSpace(getField("名稱"))
	}
	if shortName == "" {
		if title, ok := main["title"].(string); ok {
			shortName = strings.TrimSpace(title)
		}
	}
	if shortName == "" {
		shortName = symbol
	}

	// 类别：优先「ETF類別」，其次最外层 type，最后兜底 "ETF"
	category := strings.TrimSpace(getField("ETF類別"))
	if category == "" {
		if typ, ok := detail["type"].(string); ok {
			category = strings.TrimSpace(typ)
		}
	}
	if category == "" {
		category = "ETF"
	}

	sources := make(model.FieldSources)

	listingDate, parsed := NormalizeDateISO(getField("上市日期"))
	if !parsed {
		listingDate = model.FallbackListingDate
	}
	sources[model.FieldListingDate] = !parsed

	lotSize, parsed := ExtractInt(getField("交易單位"))
	if !parsed {
		lotSize = model.DefaultLotSize
	}
	sources[model.FieldLotSize] = !parsed

	taxRate, parsed := ParseTaxRate(getField("證券交易稅"))
	if !parsed {
		taxRate = model.DefaultTaxRate
	}
	sources[model.FieldTaxRate] = !parsed

	tickSteps, parsed := ParseTickSteps(getField("升降單位"))
	if !parsed {
		tickSteps = model.DefaultTickSteps()
	}
	sources[model.FieldTickSteps] = !parsed

	// 收益分配：先查主表字段，再尝试其它结构位置，最后占位「未提供」
	distribution := strings.TrimSpace(getField("收益分配"))
	if distribution == "" {
		distribution = GuessDistributionPolicy(detail)
	}
	sources[model.FieldDistributionPolicy] = distribution == model.MissingText

	record := &model.ETFMetadata{
		Symbol:             symbol,
		ShortName:          shortName,
		Category:           category,
		ListingDate:        listingDate,
		TickUnit:           model.MinTick(tickSteps),
		TickSteps:          tickSteps,
		TradingHours:       model.DefaultTradingHours(),
		TransactionTaxRate: taxRate,
		LotSize:            lotSize,
		Exchange:           model.DefaultExchange,
		DistributionPolicy: distribution,
	}

	return record, sources, nil
}
