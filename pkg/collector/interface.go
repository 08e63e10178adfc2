package collector

// SymbolSource ETF 代号列表获取接口
type SymbolSource interface {
	FetchSymbols() ([]string, error)
}

// DetailSource ETF 商品内容获取接口
type DetailSource interface {
	FetchDetail(symbol string) (map[string]interface{}, error)
}
