package collector

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RWD 端点（可由配置覆写）
const (
	DefaultListURL        = "https://www.twse.com.tw/rwd/zh/ETF/list?response=json"
	DefaultProductURLTmpl = "https://www.twse.com.tw/rwd/zh/ETF/productContent?id=%s&response=json"
)

// ErrRemoteRejection 端点自身 stat 非 OK：请求在语义上被拒绝（如代码暂不可用），
// 不属于传输层失败，不在客户端层重试，由调用方决定跳过或中止
var ErrRemoteRejection = errors.New("TWSE stat 非 OK")

// TWSEAdapter TWSE RWD 数据源适配器：列表取代码 + 逐一商品内容
type TWSEAdapter struct {
	client         *TWSEClient
	listURL        string
	productURLTmpl string
}

// NewTWSEAdapter 创建TWSE适配器
// listURL/productURLTmpl 为空时使用默认端点
func NewTWSEAdapter(client *TWSEClient, listURL, productURLTmpl string) *TWSEAdapter {
	if listURL == "" {
		listURL = DefaultListURL
	}
	if productURLTmpl == "" {
		productURLTmpl = DefaultProductURLTmpl
	}
	return &TWSEAdapter{
		client:         client,
		listURL:        listURL,
		productURLTmpl: productURLTmpl,
	}
}

// cacheBust 追加毫秒时间戳参数，绕开 CDN 快取
func cacheBust(url string) string {
	return fmt.Sprintf("%s&_=%d", url, time.Now().UnixMilli())
}

// statOK 端点 stat 字段是否为 OK（不区分大小写）
func statOK(data map[string]interface{}) bool {
	stat, _ := data["stat"].(string)
	return strings.EqualFold(stat, "OK")
}

// FetchSymbols 从 TWSE ETF 列表端点解析出所有可用的 ETF 证券代号
// 注意：
// - fields 为 [上市日期, 证券代号, 证券简称, 发行人, 标的指数]，第二栏才是代号
// - 代号栏可能含 <br> 分隔的多币别（如 006205<br>00625K）与括号附注（如 (新台币)）
// 返回结果去重且保持首次出现顺序
func (t *TWSEAdapter) FetchSymbols() ([]string, error) {
	data, err := t.client.GetJSON(cacheBust(t.listURL))
	if err != nil {
		return nil, fmt.Errorf("获取ETF列表失败: %w", err)
	}
	if !statOK(data) {
		return nil, fmt.Errorf("%w: 列表 stat=%v", ErrRemoteRejection, data["stat"])
	}

	var rows []interface{}
	switch v := data["data"].(type) {
	case nil:
		// 缺失视为空列表
	case []interface{}:
		rows = v
	default:
		return nil, fmt.Errorf("列表字段 data 非数组")
	}

	var symbols []string
	seen := make(map[string]struct{})
	for _, raw := range rows {
		row, ok := raw.([]interface{})
		if !ok || len(row) < 2 {
			// 非列表形状或列数不足的行直接跳过，不视为致命
			continue
		}
		codeField, _ := row[1].(string)
		for _, code := range NormalizeCodes(codeField) {
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			symbols = append(symbols, code)
		}
	}

	return symbols, nil
}

// NormalizeCodes 将「证券代号」栏清理为一或多个干净代号：
// - 编码型 <br> 先还原为 <br>，再按 <br> 分段
// - 去掉第一个 '(' 之后的附注（006205(新台币) -> 006205）
// - 去除空白后仅保留英数字元
// - 丢弃空段
func NormalizeCodes(codeField string) []string {
	if codeField == "" {
		return nil
	}
	s := strings.ReplaceAll(codeField, `<br>`, "<br>")

	var out []string
	for _, part := range strings.Split(s, "<br>") {
		if i := strings.Index(part, "("); i >= 0 {
			part = part[:i]
		}
		part = strings.TrimSpace(part)
		var b strings.Builder
		for _, ch := range part {
			if ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' {
				b.WriteRune(ch)
			}
		}
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	return out
}

// FetchDetail 造访商品内容端点，返回单一 ETF 的原始 JSON 负载
// stat 非 OK 时返回 ErrRemoteRejection，调用方可据此跳过该代码
func (t *TWSEAdapter) FetchDetail(symbol string) (map[string]interface{}, error) {
	url := cacheBust(fmt.Sprintf(t.productURLTmpl, symbol))
	data, err := t.client.GetJSON(url)
	if err != nil {
		return nil, fmt.Errorf("获取商品内容失败 code=%s: %w", symbol, err)
	}
	if !statOK(data) {
		return nil, fmt.Errorf("%w: 商品内容 stat=%v code=%s", ErrRemoteRejection, data["stat"], symbol)
	}
	return data, nil
}
