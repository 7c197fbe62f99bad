package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"StageScreener/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher reads daily bars from the Yahoo Finance chart API. Requests
// are throttled by a token bucket and guarded by a circuit breaker.
type YahooFetcher struct {
	BaseURL string
	Client  *http.Client
	// Aliases translates index names used in configs to Yahoo tickers.
	Aliases map[string]string

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewYahooFetcher allows rps requests per second with the given burst. The
// breaker opens after five consecutive failures and probes again after 30s.
func NewYahooFetcher(proxyURL string, rps float64, burst int) *YahooFetcher {
	if rps <= 0 {
		rps = 2
	}
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client:  newHTTPClient(proxyURL, 30*time.Second),
		Aliases: map[string]string{
			"SPX":   "^GSPC",
			"SP500": "^GSPC",
			"NDX":   "^NDX",
			"DJI":   "^DJI",
			"RUT":   "^RUT",
		},
		limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1)),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "yahoo",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("circuit breaker state changed")
			},
		}),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) ticker(symbol string) string {
	if t, ok := f.Aliases[symbol]; ok {
		return t
	}
	return symbol
}

// chartResponse mirrors the parts of /v8/finance/chart we read. Quote
// columns hold null on sessions without a print.
type chartResponse struct {
	Chart struct {
		Result []chartSeries `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartSeries struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// value returns column[i], treating nulls and short columns as absent.
func value(column []*float64, i int) (float64, bool) {
	if i >= len(column) || column[i] == nil {
		return 0, false
	}
	return *column[i], true
}

func (q chartQuote) bar(symbol string, ts int64, i int) (model.OHLCV, bool) {
	o, okO := value(q.Open, i)
	h, okH := value(q.High, i)
	l, okL := value(q.Low, i)
	c, okC := value(q.Close, i)
	if !okO || !okH || !okL || !okC {
		return model.OHLCV{}, false
	}
	v, _ := value(q.Volume, i)
	return model.OHLCV{
		Date:   model.Midnight(time.Unix(ts, 0).UTC()),
		Symbol: symbol,
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: v,
	}, true
}

// FetchDailyBars requests the smallest chart range that covers days sessions.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := f.breaker.Execute(func() (any, error) {
		return f.chart(ctx, symbol, chartRange(days))
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	return lastN(out.([]model.OHLCV), days), nil
}

func (f *YahooFetcher) chart(ctx context.Context, symbol, rng string) ([]model.OHLCV, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		f.BaseURL, url.PathEscape(f.ticker(symbol)), rng)

	var resp chartResponse
	header := http.Header{"User-Agent": {"Mozilla/5.0"}}
	if err := getJSON(ctx, f.Client, endpoint, header, &resp); err != nil {
		return nil, err
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("api error %s: %s", e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("empty chart")
	}

	series := resp.Chart.Result[0]
	quote := series.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(series.Timestamp))
	for i, ts := range series.Timestamp {
		if b, ok := quote.bar(symbol, ts, i); ok {
			bars = append(bars, b)
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("empty chart")
	}
	return bars, nil
}

// chartRange picks the smallest Yahoo range covering days trading sessions.
func chartRange(days int) string {
	switch {
	case days <= 20:
		return "1mo"
	case days <= 60:
		return "3mo"
	case days <= 120:
		return "6mo"
	case days <= 250:
		return "1y"
	case days <= 500:
		return "2y"
	default:
		return "5y"
	}
}
