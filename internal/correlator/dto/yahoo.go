package dto

// YahooChartResponse is the response of the Yahoo Finance v8 chart endpoint.
type YahooChartResponse struct {
	Chart YahooChart `json:"chart"`
}

type YahooChart struct {
	Result []YahooChartResult `json:"result"`
	Error  *YahooChartError   `json:"error"`
}

type YahooChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type YahooChartResult struct {
	Meta       YahooChartMeta       `json:"meta"`
	Timestamp  []int64              `json:"timestamp"`
	Indicators YahooChartIndicators `json:"indicators"`
}

type YahooChartMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	Gmtoffset            int    `json:"gmtoffset"`
}

type YahooChartIndicators struct {
	Quote []YahooChartQuote `json:"quote"`
}

// YahooChartQuote holds parallel arrays; Yahoo sends null for missing bars.
type YahooChartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
