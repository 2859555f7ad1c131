package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// HTTPSource pulls headlines from a JSON feed endpoint. The endpoint is
// expected to return an array of objects with title, tickers and publishedAt
// (RFC 3339) fields, newest first.
type HTTPSource struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   zerolog.Logger
}

func NewHTTPSource(endpoint, apiKey string, logger zerolog.Logger) *HTTPSource {
	return &HTTPSource{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger.With().Str("component", "news").Logger(),
	}
}

func (s *HTTPSource) Name() string { return "http" }

type wireHeadline struct {
	Title       string   `json:"title"`
	Tickers     []string `json:"tickers"`
	PublishedAt string   `json:"publishedAt"`
}

func (s *HTTPSource) Recent(ctx context.Context, limit int) ([]Headline, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("news endpoint: %w", err)
	}
	q := u.Query()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if s.apiKey != "" {
		q.Set("token", s.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var wire []wireHeadline
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("news decode: %w", err)
	}

	headlines := make([]Headline, 0, len(wire))
	for _, w := range wire {
		if w.Title == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, w.PublishedAt)
		if err != nil {
			// keep the headline, just without a usable timestamp
			ts = time.Time{}
		}
		headlines = append(headlines, Headline{Title: w.Title, Tickers: w.Tickers, PublishedAt: ts})
	}
	s.logger.Debug().Int("count", len(headlines)).Msg("Fetched headlines")
	return headlines, nil
}
