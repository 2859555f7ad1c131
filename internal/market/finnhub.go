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

// FinnhubProvider fetches quotes and candles from the Finnhub REST API.
// Free tier allows 60 calls/minute; the adapter spaces its own requests and
// the budget tracker caps the hourly total.
type FinnhubProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	lastCall time.Time
	minGap   time.Duration
}

// NewFinnhubProvider creates a Finnhub adapter.
func NewFinnhubProvider(apiKey string) *FinnhubProvider {
	return &FinnhubProvider{
		apiKey:     apiKey,
		baseURL:    "https://finnhub.io/api/v1",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		minGap:     1100 * time.Millisecond, // ~55/min, under the 60/min cap
	}
}

// Name implements MarketDataProvider.
func (p *FinnhubProvider) Name() string { return "finnhub" }

// throttle blocks until the adapter's minimum inter-request gap has elapsed.
func (p *FinnhubProvider) throttle(ctx context.Context) error {
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

type finnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// Quotes implements MarketDataProvider. Finnhub has no batch quote endpoint,
// so symbols are fetched one by one.
func (p *FinnhubProvider) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	quotes := make([]Quote, 0, len(symbols))
	for _, symbol := range symbols {
		if err := p.throttle(ctx); err != nil {
			return quotes, err
		}

		endpoint := fmt.Sprintf("%s/quote?symbol=%s&token=%s", p.baseURL, url.QueryEscape(symbol), p.apiKey)
		body, err := p.get(ctx, endpoint)
		if err != nil {
			return quotes, err
		}

		var fq finnhubQuote
		if err := json.Unmarshal(body, &fq); err != nil {
			return quotes, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if fq.Current == 0 && fq.Timestamp == 0 {
			// Finnhub returns an all-zero object for unknown symbols.
			return quotes, fmt.Errorf("%w: empty quote for %s", ErrNoData, symbol)
		}

		quotes = append(quotes, Quote{
			Symbol:        symbol,
			Price:         fq.Current,
			Change:        fq.Change,
			ChangePercent: fq.ChangePercent,
			High:          fq.High,
			Low:           fq.Low,
			Open:          fq.Open,
			PreviousClose: fq.PreviousClose,
			Timestamp:     time.Unix(fq.Timestamp, 0),
		})
	}
	return quotes, nil
}

type finnhubCandles struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Volume []float64 `json:"v"`
}

// Candles implements MarketDataProvider.
func (p *FinnhubProvider) Candles(ctx context.Context, symbol string, interval Interval) ([]Candle, error) {
	if err := p.throttle(ctx); err != nil {
		return nil, err
	}

	resolution := "D"
	lookback := 400 * 24 * time.Hour
	switch interval {
	case IntervalWeekly:
		resolution = "W"
		lookback = 2 * 365 * 24 * time.Hour
	case IntervalHourly:
		resolution = "60"
		lookback = 30 * 24 * time.Hour
	case Interval15Min:
		resolution = "15"
		lookback = 7 * 24 * time.Hour
	}

	now := time.Now()
	endpoint := fmt.Sprintf("%s/stock/candle?symbol=%s&resolution=%s&from=%d&to=%d&token=%s",
		p.baseURL, url.QueryEscape(symbol), resolution, now.Add(-lookback).Unix(), now.Unix(), p.apiKey)

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var fc finnhubCandles
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fc.Status != "ok" || len(fc.Time) == 0 {
		return nil, fmt.Errorf("%w: status %q for %s", ErrNoData, fc.Status, symbol)
	}
	if len(fc.Close) != len(fc.Time) || len(fc.Open) != len(fc.Time) {
		return nil, fmt.Errorf("%w: ragged candle arrays", ErrMalformedResponse)
	}

	candles := make([]Candle, len(fc.Time))
	for i := range fc.Time {
		candles[i] = Candle{
			Time:   fc.Time[i],
			Open:   fc.Open[i],
			High:   fc.High[i],
			Low:    fc.Low[i],
			Close:  fc.Close[i],
			Volume: fc.Volume[i],
		}
	}
	return SortCandles(candles), nil
}

func (p *FinnhubProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finnhub request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("finnhub read failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("finnhub API error %d: %s", resp.StatusCode, string(body))
	}
	if looksLikeHTML(body) {
		return nil, fmt.Errorf("%w: HTML body from finnhub", ErrMalformedResponse)
	}
	return body, nil
}
