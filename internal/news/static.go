package news

import "context"

// StaticSource serves a fixed headline list. Used in development and tests
// when no feed endpoint is configured.
type StaticSource struct {
	headlines []Headline
}

func NewStaticSource(headlines []Headline) *StaticSource {
	return &StaticSource{headlines: headlines}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Recent(_ context.Context, limit int) ([]Headline, error) {
	out := make([]Headline, len(s.headlines))
	copy(out, s.headlines)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
