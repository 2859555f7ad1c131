package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// AlphaVantageProvider fetches quotes and daily candles from Alpha Vantage.
// The free tier is limited to 25 requests per day, so this adapter sits
// behind a day-window budget and is normally the fallback, not the primary.
type AlphaVantageProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAlphaVantageProvider creates an Alpha Vantage adapter.
func NewAlphaVantageProvider(apiKey string) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		apiKey:     apiKey,
		baseURL:    "https://www.alphavantage.co/query",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Name implements MarketDataProvider.
func (p *AlphaVantageProvider) Name() string { return "alphavantage" }

// Quotes implements MarketDataProvider using the GLOBAL_QUOTE function.
func (p *AlphaVantageProvider) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	quotes := make([]Quote, 0, len(symbols))
	for _, symbol := range symbols {
		endpoint := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
			p.baseURL, url.QueryEscape(symbol), p.apiKey)

		body, err := p.get(ctx, endpoint)
		if err != nil {
			return quotes, err
		}

		var payload struct {
			GlobalQuote map[string]string `json:"Global Quote"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return quotes, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if len(payload.GlobalQuote) == 0 {
			return quotes, fmt.Errorf("%w: empty global quote for %s", ErrNoData, symbol)
		}

		q := Quote{Symbol: symbol, Timestamp: time.Now()}
		q.Price = avFloat(payload.GlobalQuote, "05. price")
		q.Open = avFloat(payload.GlobalQuote, "02. open")
		q.High = avFloat(payload.GlobalQuote, "03. high")
		q.Low = avFloat(payload.GlobalQuote, "04. low")
		q.Volume = avFloat(payload.GlobalQuote, "06. volume")
		q.PreviousClose = avFloat(payload.GlobalQuote, "08. previous close")
		q.Change = avFloat(payload.GlobalQuote, "09. change")
		if pct, ok := payload.GlobalQuote["10. change percent"]; ok && len(pct) > 1 {
			q.ChangePercent, _ = strconv.ParseFloat(pct[:len(pct)-1], 64)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Candles implements MarketDataProvider. Alpha Vantage only serves daily and
// weekly series on the free tier; intraday requests degrade to daily.
func (p *AlphaVantageProvider) Candles(ctx context.Context, symbol string, interval Interval) ([]Candle, error) {
	function := "TIME_SERIES_DAILY"
	seriesKey := "Time Series (Daily)"
	if interval == IntervalWeekly {
		function = "TIME_SERIES_WEEKLY"
		seriesKey = "Weekly Time Series"
	}

	endpoint := fmt.Sprintf("%s?function=%s&symbol=%s&outputsize=compact&apikey=%s",
		p.baseURL, function, url.QueryEscape(symbol), p.apiKey)

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	raw, ok := payload[seriesKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q for %s", ErrNoData, seriesKey, symbol)
	}

	var series map[string]map[string]string
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	candles := make([]Candle, 0, len(series))
	for date, bar := range series {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		candles = append(candles, Candle{
			Time:   day.Unix(),
			Open:   avFloat(bar, "1. open"),
			High:   avFloat(bar, "2. high"),
			Low:    avFloat(bar, "3. low"),
			Close:  avFloat(bar, "4. close"),
			Volume: avFloat(bar, "5. volume"),
		})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: empty series for %s", ErrNoData, symbol)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

func (p *AlphaVantageProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alphavantage request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage read failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage API error %d: %s", resp.StatusCode, string(body))
	}
	if looksLikeHTML(body) {
		return nil, fmt.Errorf("%w: HTML body from alphavantage", ErrMalformedResponse)
	}
	// Quota exhaustion arrives as a 200 with a "Note" body instead of data.
	if looksLikeRateLimitNote(body) {
		return nil, fmt.Errorf("%w: rate-limit note from alphavantage", ErrMalformedResponse)
	}
	return body, nil
}

func avFloat(m map[string]string, key string) float64 {
	f, _ := strconv.ParseFloat(m[key], 64)
	return f
}
