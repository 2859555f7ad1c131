package news

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Headline is one news item. Tickers is optional; general market headlines
// carry none.
type Headline struct {
	Title       string    `json:"title"`
	Tickers     []string  `json:"tickers,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Source provides recent headlines. Implementations should return newest
// first; FilterFor re-sorts defensively.
type Source interface {
	Name() string
	Recent(ctx context.Context, limit int) ([]Headline, error)
}

// FilterFor returns up to n headlines relevant to symbol. A headline matches
// when the symbol appears in its ticker tags or as a word in its title. When
// nothing matches, the most recent general headlines are returned instead so
// the analysis prompt is never news-blind while the source has anything.
func FilterFor(headlines []Headline, symbol string, n int) []Headline {
	if n <= 0 || len(headlines) == 0 {
		return nil
	}
	sorted := make([]Headline, len(headlines))
	copy(sorted, headlines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	symbol = strings.ToUpper(symbol)
	var matched []Headline
	for _, h := range sorted {
		if matchesSymbol(h, symbol) {
			matched = append(matched, h)
			if len(matched) == n {
				return matched
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func matchesSymbol(h Headline, symbol string) bool {
	for _, t := range h.Tickers {
		if strings.ToUpper(t) == symbol {
			return true
		}
	}
	for _, word := range strings.Fields(h.Title) {
		word = strings.Trim(word, ".,:;!?()[]\"'")
		word = strings.TrimPrefix(word, "$")
		if strings.ToUpper(word) == symbol {
			return true
		}
	}
	return false
}

// Titles projects headlines to their title strings for prompt embedding.
func Titles(headlines []Headline) []string {
	out := make([]string, 0, len(headlines))
	for _, h := range headlines {
		out = append(out, h.Title)
	}
	return out
}
