package collector

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// 非 JSON 回应时落盘的最大字节数，用于排查是否被 WAF/HTML 拦截
const snippetLimit = 2048

// ErrExhausted 重试次数用尽后的终止错误，包装最后一次观察到的错误
var ErrExhausted = errors.New("重试次数用尽")

// TWSEClient TWSE RWD 端点的 HTTP 客户端
// 统一处理请求头、Content-Type 校验、线性退避重试与诊断落盘
type TWSEClient struct {
	UserAgent   string
	Retries     int
	Backoff     time.Duration
	Debug       bool
	SnippetPath string
	Client      *http.Client
}

// ClientOptions TWSEClient 的可调参数
type ClientOptions struct {
	Timeout     time.Duration
	Retries     int
	Backoff     time.Duration
	VerifySSL   bool
	Debug       bool
	UserAgent   string
	SnippetPath string
}

// NewTWSEClient 创建新的TWSE客户端
func NewTWSEClient(opts ClientOptions) *TWSEClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 1 {
		opts.Retries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 1200 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "TWA-ETF-Engine/1.0 (+https://example.com)"
	}
	if opts.SnippetPath == "" {
		opts.SnippetPath = "twse_last_error_snippet.txt"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.VerifySSL {
		// TWSE 常见需关闭证书校验以避免被阻挡
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &TWSEClient{
		UserAgent:   opts.UserAgent,
		Retries:     opts.Retries,
		Backoff:     opts.Backoff,
		Debug:       opts.Debug,
		SnippetPath: opts.SnippetPath,
		Client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
}

// headers 基础请求头：RWD 端点常见需要 Referer/Origin
func (c *TWSEClient) headers() map[string]string {
	return map[string]string{
		"User-Agent":      c.UserAgent,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "zh-TW,zh;q=0.9,en;q=0.8",
		"Connection":      "keep-alive",
		"Referer":         "https://www.twse.com.tw/rwd/zh/ETF/",
		"Origin":          "https://www.twse.com.tw",
	}
}

// GetJSON 统一 GET 并解析 JSON：
// - 仅接受 Content-Type 为 application/json 的回应
// - 非 JSON 时将正文前 2048 字节落盘，便于检查是否被拦截
// - 非 2xx 状态码视为失败
// - 重试策略：线性倍增退避 + 少量抖动
// - 解析结果必须是对象（map），标量或数组视为结构错误
func (c *TWSEClient) GetJSON(url string) (map[string]interface{}, error) {
	var lastErr error

	for attempt := 1; attempt <= c.Retries; attempt++ {
		data, err := c.getOnce(url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if c.Debug {
			logrus.Debugf("TWSE 请求第 %d/%d 次失败: %v", attempt, c.Retries, err)
		}
		if attempt == c.Retries {
			break
		}
		// 线性倍增退避 + 抖动，降低节流/风控命中
		sleep := time.Duration(attempt)*c.Backoff + time.Duration(rand.Int63n(int64(250*time.Millisecond)))
		time.Sleep(sleep)
	}

	return nil, fmt.Errorf("%w: %s: %v", ErrExhausted, url, lastErr)
}

// getOnce 单次请求，失败原因交由 GetJSON 决定是否重试
func (c *TWSEClient) getOnce(url string) (map[string]interface{}, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	for k, v := range c.headers() {
		req.Header.Set(k, v)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("执行HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if c.Debug {
		logrus.Debugf("TWSE GET %s -> %d", resp.Request.URL, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("非2xx状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ctype, "application/json") {
		c.dumpSnippet(body)
		return nil, fmt.Errorf("非JSON回应 (Content-Type=%s) 于 %s，正文前%d字节已落盘到 %s",
			ctype, resp.Request.URL, snippetLimit, c.SnippetPath)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("预期JSON对象，实得 null")
	}

	return data, nil
}

// dumpSnippet 将正文片段写入诊断文件，尽力而为，失败不掩盖原错误
func (c *TWSEClient) dumpSnippet(body []byte) {
	snippet := body
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	if err := os.WriteFile(c.SnippetPath, snippet, 0o644); err != nil {
		logrus.Warnf("写入诊断片段失败: %v", err)
	}
}
