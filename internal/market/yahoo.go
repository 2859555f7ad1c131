package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// YahooProvider fetches quotes and candles from the public Yahoo Finance
// chart API. There is no API key and no published quota; the budget tracker
// registers it with the unlimited sentinel and the adapter spaces requests
// to stay polite.
type YahooProvider struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	lastCall time.Time
	minGap   time.Duration
}

// NewYahooProvider creates a Yahoo Finance adapter.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		baseURL:    "https://query1.finance.yahoo.com/v8/finance/chart",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		minGap:     500 * time.Millisecond,
	}
}

// Name implements MarketDataProvider.
func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) throttle(ctx context.Context) error {
	p.mu.Lock()
	wait := p.minGap - time.Since(p.lastCall)
	p.lastCall = time.Now().Add(wait)
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				ChartPreviousClose  float64 `json:"chartPreviousClose"`
				RegularMarketVolume float64 `json:"regularMarketVolume"`
				RegularMarketTime   int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *YahooProvider) fetchChart(ctx context.Context, symbol string, interval, rng string) (*yahooChart, error) {
	if err := p.throttle(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s?interval=%s&range=%s", p.baseURL, url.PathEscape(symbol), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	// Yahoo rejects requests without a browser-ish user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stock-advisor/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo API error %d: %s", resp.StatusCode, string(body))
	}
	if looksLikeHTML(body) {
		return nil, fmt.Errorf("%w: HTML body from yahoo", ErrMalformedResponse)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty chart result", ErrNoData)
	}
	return &chart, nil
}

// Quotes implements MarketDataProvider by reading the chart metadata, which
// carries the regular-market snapshot alongside the intraday bars.
func (p *YahooProvider) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	quotes := make([]Quote, 0, len(symbols))
	for _, symbol := range symbols {
		chart, err := p.fetchChart(ctx, symbol, "1d", "5d")
		if err != nil {
			return quotes, err
		}

		result := chart.Chart.Result[0]
		meta := result.Meta

		q := Quote{
			Symbol:        symbol,
			Price:         meta.RegularMarketPrice,
			PreviousClose: meta.ChartPreviousClose,
			Volume:        meta.RegularMarketVolume,
			Timestamp:     time.Unix(meta.RegularMarketTime, 0),
		}
		if q.PreviousClose > 0 {
			q.Change = q.Price - q.PreviousClose
			q.ChangePercent = q.Change / q.PreviousClose * 100
		}
		if len(result.Indicators.Quote) > 0 {
			bars := result.Indicators.Quote[0]
			if n := len(bars.Open); n > 0 {
				q.Open = bars.Open[n-1]
				q.High = bars.High[n-1]
				q.Low = bars.Low[n-1]
			}
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Candles implements MarketDataProvider.
func (p *YahooProvider) Candles(ctx context.Context, symbol string, interval Interval) ([]Candle, error) {
	rng := "1y"
	switch interval {
	case IntervalWeekly:
		rng = "5y"
	case IntervalHourly:
		rng = "1mo"
	case Interval15Min:
		rng = "5d"
	}

	chart, err := p.fetchChart(ctx, symbol, string(interval), rng)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil, fmt.Errorf("%w: chart without bars for %s", ErrNoData, symbol)
	}

	bars := result.Indicators.Quote[0]
	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(bars.Close) {
			break
		}
		// Yahoo pads the current bar with zeros before the first trade.
		if bars.Close[i] == 0 {
			continue
		}
		candles = append(candles, Candle{
			Time:   ts,
			Open:   bars.Open[i],
			High:   bars.High[i],
			Low:    bars.Low[i],
			Close:  bars.Close[i],
			Volume: bars.Volume[i],
		})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: empty candle series for %s", ErrNoData, symbol)
	}
	return SortCandles(candles), nil
}
