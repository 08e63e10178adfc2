package collector

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestClient(opts ClientOptions) *TWSEClient {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Backoff == 0 {
		opts.Backoff = 10 * time.Millisecond
	}
	return NewTWSEClient(opts)
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestNormalizeCodes(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"006205<br>00625K(新臺幣)", []string{"006205", "00625K"}},
		{`006205<br>00625K(新臺幣)`, []string{"006205", "00625K"}},
		{"0050", []string{"0050"}},
		{"0050(新臺幣)", []string{"0050"}},
		{"  0051  ", []string{"0051"}},
		{"(新臺幣)", nil},
		{"", nil},
		{"<br>", nil},
	}
	for _, c := range cases {
		got := NormalizeCodes(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("NormalizeCodes(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFetchSymbols(t *testing.T) {
	body := `{
		"stat": "OK",
		"data": [
			["2003-06-25", "0050", "元大台灣50", "元大", "台灣50指數"],
			["2011-09-08", "006205<br>00625K(新臺幣)", "FB上証", "富邦", "上証180"],
			["skip-me"],
			["2003-06-25", "0050", "重複列", "元大", "台灣50指數"]
		]
	}`
	srv := httptest.NewServer(jsonHandler(body))
	defer srv.Close()

	adapter := NewTWSEAdapter(newTestClient(ClientOptions{Retries: 1}), srv.URL+"/list?response=json", "")
	symbols, err := adapter.FetchSymbols()
	if err != nil {
		t.Fatalf("FetchSymbols: %v", err)
	}

	want := []string{"0050", "006205", "00625K"}
	if !reflect.DeepEqual(symbols, want) {
		t.Fatalf("symbols = %v, want %v", symbols, want)
	}
}

func TestFetchSymbolsNoDuplicatesNoEmpty(t *testing.T) {
	body := `{
		"stat": "ok",
		"data": [
			["d", "0051<br>0051", "x", "y", "z"],
			["d", "(新臺幣)", "x", "y", "z"],
			["d", "0052", "x", "y", "z"]
		]
	}`
	srv := httptest.NewServer(jsonHandler(body))
	defer srv.Close()

	adapter := NewTWSEAdapter(newTestClient(ClientOptions{Retries: 1}), srv.URL+"/list?response=json", "")
	symbols, err := adapter.FetchSymbols()
	if err != nil {
		t.Fatalf("FetchSymbols: %v", err)
	}

	seen := make(map[string]bool)
	for _, s := range symbols {
		if s == "" {
			t.Fatal("返回了空代号")
		}
		if seen[s] {
			t.Fatalf("返回了重复代号: %s", s)
		}
		seen[s] = true
	}
	if !reflect.DeepEqual(symbols, []string{"0051", "0052"}) {
		t.Fatalf("symbols = %v", symbols)
	}
}

func TestFetchSymbolsStatNotOK(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"stat": "很抱歉，沒有符合條件的資料!", "data": []}`))
	defer srv.Close()

	adapter := NewTWSEAdapter(newTestClient(ClientOptions{Retries: 1}), srv.URL+"/list?response=json", "")
	_, err := adapter.FetchSymbols()
	if !errors.Is(err, ErrRemoteRejection) {
		t.Fatalf("want ErrRemoteRejection, got %v", err)
	}
}

func TestFetchDetailStatNotOK(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"stat": "NO_DATA"}`))
	defer srv.Close()

	adapter := NewTWSEAdapter(newTestClient(ClientOptions{Retries: 1}), "", srv.URL+"/product?id=%s&response=json")
	_, err := adapter.FetchDetail("0050")
	if !errors.Is(err, ErrRemoteRejection) {
		t.Fatalf("want ErrRemoteRejection, got %v", err)
	}
}

func TestGetJSONRetriesExhausted(t *testing.T) {
	var mu sync.Mutex
	var attempts []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts = append(attempts, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(ClientOptions{Retries: 3, Backoff: 300 * time.Millisecond})
	_, err := client.GetJSON(srv.URL)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("want ErrExhausted, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(attempts))
	}
	// 线性退避：第二次间隔应大于第一次（300ms+抖动 < 600ms+抖动）
	gap1 := attempts[1].Sub(attempts[0])
	gap2 := attempts[2].Sub(attempts[1])
	if gap2 <= gap1 {
		t.Fatalf("退避间隔未递增: gap1=%v gap2=%v", gap1, gap2)
	}
}

func TestGetJSONNonJSONDumpsSnippet(t *testing.T) {
	html := "<html><body>" + strings.Repeat("WAF ", 1024) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	defer srv.Close()

	snippetPath := filepath.Join(t.TempDir(), "snippet.txt")
	client := newTestClient(ClientOptions{Retries: 1, SnippetPath: snippetPath})
	_, err := client.GetJSON(srv.URL)
	if err == nil {
		t.Fatal("非JSON回应应当失败")
	}

	data, readErr := os.ReadFile(snippetPath)
	if readErr != nil {
		t.Fatalf("诊断片段未落盘: %v", readErr)
	}
	if len(data) != snippetLimit {
		t.Fatalf("片段长度 = %d, want %d", len(data), snippetLimit)
	}
	if string(data) != html[:snippetLimit] {
		t.Fatal("片段内容与正文前缀不符")
	}
}

func TestGetJSONRejectsNonObject(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`[1, 2, 3]`))
	defer srv.Close()

	client := newTestClient(ClientOptions{Retries: 1})
	if _, err := client.GetJSON(srv.URL); err == nil {
		t.Fatal("数组负载应当视为结构错误")
	}
}

func TestGetJSONSuccessAfterRetry(t *testing.T) {
	var mu sync.Mutex
	count := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stat": "OK"}`))
	}))
	defer srv.Close()

	client := newTestClient(ClientOptions{Retries: 3})
	data, err := client.GetJSON(srv.URL)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if stat, _ := data["stat"].(string); stat != "OK" {
		t.Fatalf("stat = %v", data["stat"])
	}
}
