package normalizer

import (
	"testing"

	"ETFEngine/pkg/model"
)

func productPayload(fields []interface{}, row []interface{}) map[string]interface{} {
	return map[string]interface{}{
		"stat": "OK",
		"type": "國內成分股ETF",
		"tables": []interface{}{
			map[string]interface{}{
				"title":  "元大台灣卓越50證券投資信託基金",
				"fields": fields,
				"data":   []interface{}{row},
			},
		},
	}
}

func TestParseProductContent(t *testing.T) {
	detail := productPayload(
		[]interface{}{"證券代號", "ETF簡稱", "ETF類別", "上市日期", "交易單位", "證券交易稅", "升降單位", "收益分配"},
		[]interface{}{"0050", "元大台灣50", "指數股票型", "2003/06/25", "1,000個受益權單位", "0.1%",
			"每受益權單位市價未滿50元者為0.01元；50元以上為0.05元", "半年配"},
	)

	rec, sources, err := ParseProductContent(detail)
	if err != nil {
		t.Fatalf("ParseProductContent: %v", err)
	}

	if rec.Symbol != "0050" {
		t.Errorf("Symbol = %q", rec.Symbol)
	}
	if rec.ShortName != "元大台灣50" {
		t.Errorf("ShortName = %q", rec.ShortName)
	}
	if rec.Category != "指數股票型" {
		t.Errorf("Category = %q", rec.Category)
	}
	if rec.ListingDate != "2003-06-25" {
		t.Errorf("ListingDate = %q", rec.ListingDate)
	}
	if rec.LotSize != 1000 {
		t.Errorf("LotSize = %d", rec.LotSize)
	}
	if rec.TransactionTaxRate != 0.001 {
		t.Errorf("TransactionTaxRate = %v", rec.TransactionTaxRate)
	}
	if len(rec.TickSteps) != 2 {
		t.Errorf("TickSteps = %+v", rec.TickSteps)
	}
	if rec.TickUnit != model.MinTick(rec.TickSteps) {
		t.Errorf("TickUnit = %v, want min tick %v", rec.TickUnit, model.MinTick(rec.TickSteps))
	}
	if rec.Exchange != "TWSE" {
		t.Errorf("Exchange = %q", rec.Exchange)
	}
	if rec.DistributionPolicy != "半年配" {
		t.Errorf("DistributionPolicy = %q", rec.DistributionPolicy)
	}

	for field, usedDefault := range sources {
		if usedDefault {
			t.Errorf("字段 %s 不应回退默认值", field)
		}
	}
}

// 按名称取值必须兼容列序变化
func TestParseProductContentReorderedColumns(t *testing.T) {
	detail := productPayload(
		[]interface{}{"上市日期", "證券代號", "ETF簡稱"},
		[]interface{}{"2011-09-08", "006205", "FB上証"},
	)

	rec, _, err := ParseProductContent(detail)
	if err != nil {
		t.Fatalf("ParseProductContent: %v", err)
	}
	if rec.Symbol != "006205" || rec.ShortName != "FB上証" || rec.ListingDate != "2011-09-08" {
		t.Errorf("record = %+v", rec)
	}
}

func TestParseProductContentDefaults(t *testing.T) {
	detail := productPayload(
		[]interface{}{"證券代號", "上市日期", "交易單位", "證券交易稅", "升降單位"},
		[]interface{}{"00999", "民國92年", "依規定", "依主管機關公告", "依市價分級"},
	)

	rec, sources, err := ParseProductContent(detail)
	if err != nil {
		t.Fatalf("ParseProductContent: %v", err)
	}

	if rec.ListingDate != model.FallbackListingDate {
		t.Errorf("ListingDate = %q, want 保底日期", rec.ListingDate)
	}
	if rec.LotSize != model.DefaultLotSize {
		t.Errorf("LotSize = %d", rec.LotSize)
	}
	if rec.TransactionTaxRate != model.DefaultTaxRate {
		t.Errorf("TransactionTaxRate = %v", rec.TransactionTaxRate)
	}
	if len(rec.TickSteps) != 6 {
		t.Errorf("应回退默认六档, got %d 档", len(rec.TickSteps))
	}
	if rec.TickUnit != 0.01 {
		t.Errorf("TickUnit = %v, want 0.01", rec.TickUnit)
	}
	// 简称回退表标题，类别回退最外层 type
	if rec.ShortName != "元大台灣卓越50證券投資信託基金" {
		t.Errorf("ShortName = %q", rec.ShortName)
	}
	if rec.Category != "國內成分股ETF" {
		t.Errorf("Category = %q", rec.Category)
	}
	if rec.DistributionPolicy != model.MissingText {
		t.Errorf("DistributionPolicy = %q", rec.DistributionPolicy)
	}

	for _, field := range []string{
		model.FieldListingDate, model.FieldLotSize, model.FieldTaxRate,
		model.FieldTickSteps, model.FieldDistributionPolicy,
	} {
		if !sources[field] {
			t.Errorf("字段 %s 应标记为回退默认值", field)
		}
	}
}

func TestParseProductContentMissingSymbol(t *testing.T) {
	detail := productPayload(
		[]interface{}{"ETF簡稱", "上市日期"},
		[]interface{}{"元大台灣50", "2003-06-25"},
	)

	rec, _, err := ParseProductContent(detail)
	if rec != nil {
		t.Fatal("缺代号不应返回记录")
	}
	if !IsValidationError(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestParseProductContentStructuralErrors(t *testing.T) {
	cases := []map[string]interface{}{
		{"stat": "很抱歉，沒有符合條件的資料!"},
		{"stat": "OK"},
		{"stat": "OK", "tables": []interface{}{}},
		{"stat": "OK", "tables": []interface{}{
			map[string]interface{}{"fields": []interface{}{}, "data": []interface{}{}},
		}},
		{"stat": "OK", "tables": []interface{}{
			map[string]interface{}{"fields": []interface{}{"證券代號"}, "data": []interface{}{}},
		}},
	}

	for i, detail := range cases {
		rec, _, err := ParseProductContent(detail)
		if rec != nil || err == nil {
			t.Errorf("case %d: 应返回结构错误, rec=%v err=%v", i, rec, err)
			continue
		}
		if !IsValidationError(err) {
			t.Errorf("case %d: want ValidationError, got %v", i, err)
		}
	}
}

// 收益分配主表缺失时应尝试其它结构位置
func TestParseProductContentDistributionFallback(t *testing.T) {
	detail := productPayload(
		[]interface{}{"證券代號"},
		[]interface{}{"0056"},
	)
	detail["dataList"] = []interface{}{
		[]interface{}{"收益分配", "年配"},
	}

	rec, sources, err := ParseProductContent(detail)
	if err != nil {
		t.Fatalf("ParseProductContent: %v", err)
	}
	if rec.DistributionPolicy != "年配" {
		t.Errorf("DistributionPolicy = %q, want 年配", rec.DistributionPolicy)
	}
	if sources[model.FieldDistributionPolicy] {
		t.Error("从备选位置取得的值不应标记为默认")
	}
}
