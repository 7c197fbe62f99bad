package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"StageScreener/internal/model"
)

// RESTFetcher reads bars from an in-house market data service:
//
//	GET {BaseURL}/api/v1/bars/daily?symbol=X&limit=N
//
// The service answers with a JSON array of unix-second stamped bars in any order.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, 30*time.Second),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

type serviceBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	q := url.Values{"symbol": {symbol}, "limit": {fmt.Sprint(days)}}
	header := http.Header{}
	if f.APIKey != "" {
		header.Set("Authorization", "Bearer "+f.APIKey)
	}

	var raw []serviceBar
	if err := getJSON(ctx, f.Client, f.BaseURL+"/api/v1/bars/daily?"+q.Encode(), header, &raw); err != nil {
		return nil, fmt.Errorf("rest %s: %w", symbol, err)
	}

	bars := make([]model.OHLCV, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, model.OHLCV{
			Date:   model.Midnight(time.Unix(b.Timestamp, 0).UTC()),
			Symbol: symbol,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return lastN(bars, days), nil
}
