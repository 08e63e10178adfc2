package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ETFEngine/pkg/model"
)

var (
	isoDateRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	percentRe = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*%\s*$`)
	permilRe  = regexp.MustCompile(`千分之\s*([一二三四五六七八九十百千萬0-9\.]+)`)
	digitsRe  = regexp.MustCompile(`\d+`)
	numberRe  = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
)

// 中文数字 1~10 的简单映射（税率文字常见「千分之一」等写法）
var cnNumerals = map[string]float64{
	"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

// NormalizeDateISO 支持 2025-05-22 / 2025/05/22 / 2025.05.22 → 2025-05-22
// 仅取前 10 个字符以避免混入时间部分；无法解析时 ok 为 false
func NormalizeDateISO(dateStr string) (string, bool) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return "", false
	}
	if len(s) > 10 {
		s = s[:10]
	}
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, ".", "-")
	m := isoDateRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
}

// ExtractInt 从如「1,000個受益權單位」抽取 1000：
// 移除千分位逗号后取出所有连续数字串拼接解析
func ExtractInt(text string) (int, bool) {
	runs := digitsRe.FindAllString(strings.ReplaceAll(text, ",", ""), -1)
	if len(runs) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.Join(runs, ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseTaxRate 解析交易税率文字，支持：
// - '0.1%' → 0.001
// - '千分之N'（N 为中文数字 1~10 或阿拉伯数字）→ N/1000
// - 明确字样「千分之一」→ 0.001
// 其他格式无法解析，ok 为 false
func ParseTaxRate(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	if m := percentRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v / 100.0, true
		}
	}
	if m := permilRe.FindStringSubmatch(s); m != nil {
		num := m[1]
		if v, ok := cnNumerals[num]; ok {
			return v / 1000.0, true
		}
		if v, err := strconv.ParseFloat(num, 64); err == nil {
			return v / 1000.0, true
		}
	}
	if strings.Contains(s, "千分之一") {
		return 1.0 / 1000.0, true
	}
	return 0, false
}

// ParseTickSteps 尝试从自然语言描述解析价格档位与 tick。
// 例：「每受益權單位市價未滿50元者為0.01元；50元以上為0.05元」
// 实务上描述多变，这里采宽松策略：抽出全部数字，取第一个为门槛、
// 第二个为门槛下 tick、最后一个为门槛上 tick，推估两档区间。
// 数字不足三个时放弃，交由默认六档处理（ok 为 false）。
// 已知近似：超过两档的描述会被压成两档。
func ParseTickSteps(text string) ([]model.TickStep, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, false
	}
	s = strings.ReplaceAll(s, "；", ";")
	s = strings.ReplaceAll(s, "，", ",")

	nums := numberRe.FindAllString(s, -1)
	if len(nums) < 3 {
		return nil, false
	}

	threshold, err1 := strconv.ParseFloat(nums[0], 64)
	tickLow, err2 := strconv.ParseFloat(nums[1], 64)
	tickHigh, err3 := strconv.ParseFloat(nums[len(nums)-1], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, false
	}

	return []model.TickStep{
		{Min: 0, Max: &threshold, Tick: tickLow},
		{Min: threshold, Max: nil, Tick: tickHigh},
	}, true
}

// 收益分配的候选位置：直属对象的 (容器, 键)
var distributionDictCandidates = [][2]string{
	{"data", "配息"}, {"data", "收益分配"}, {"data", "配息頻率"},
	{"fundInfo", "dividendPolicy"}, {"fundInfo", "distribution"},
	{"description", "配息"}, {"description", "收益分配"},
}

// 收益分配的 [键, 值] 数组型容器与关键字
var (
	distributionListContainers = []string{"dataList", "infoList", "basicInfo"}
	distributionKeywords       = []string{"配息", "收益分配", "配息頻率"}
)

// GuessDistributionPolicy 按固定顺序在不同结构位置推估配息政策：
// 先查直属对象键，再查 [key, value] 数组型容器，第一个非空字符串命中即返回；
// 全部落空时返回「未提供」
func GuessDistributionPolicy(detail map[string]interface{}) string {
	for _, cand := range distributionDictCandidates {
		parent, ok := detail[cand[0]].(map[string]interface{})
		if !ok {
			continue
		}
		if v, ok := parent[cand[1]].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	for _, container := range distributionListContainers {
		arr, ok := detail[container].([]interface{})
		if !ok {
			continue
		}
		for _, raw := range arr {
			row, ok := raw.([]interface{})
			if !ok || len(row) < 2 {
				continue
			}
			k := fmt.Sprint(row[0])
			v := fmt.Sprint(row[1])
			if strings.TrimSpace(v) == "" {
				continue
			}
			for _, kw := range distributionKeywords {
				if strings.Contains(k, kw) {
					return strings.TrimSpace(v)
				}
			}
		}
	}

	return model.MissingText
}
