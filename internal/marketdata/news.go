package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

// newsLookback bounds how old an article may be and still count as recent
const newsLookback = 7 * 24 * time.Hour

// FileNewsProvider serves articles from a JSON file: an array of
// domain.NewsArticle objects dropped into the data directory by an external
// collector. The file is read once at startup; the nightly run does not
// need fresher news than that.
type FileNewsProvider struct {
	bySymbol map[string][]domain.NewsArticle
	now      func() time.Time
	log      zerolog.Logger
}

// NewFileNewsProvider loads the article file and indexes it by symbol
func NewFileNewsProvider(path string, log zerolog.Logger) (*FileNewsProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading news file: %w", err)
	}

	var articles []domain.NewsArticle
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, fmt.Errorf("parsing news file %s: %w", path, err)
	}

	p := &FileNewsProvider{
		bySymbol: make(map[string][]domain.NewsArticle),
		now:      time.Now,
		log:      log.With().Str("component", "news_provider").Logger(),
	}
	for _, a := range articles {
		symbol := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if symbol == "" {
			continue
		}
		p.bySymbol[symbol] = append(p.bySymbol[symbol], a)
	}
	for _, list := range p.bySymbol {
		sort.Slice(list, func(i, j int) bool {
			return list[i].PublishedAt.After(list[j].PublishedAt)
		})
	}

	p.log.Info().
		Int("articles", len(articles)).
		Int("symbols", len(p.bySymbol)).
		Msg("News file loaded")
	return p, nil
}

// Recent returns the symbol's articles published within the lookback
// window, newest first. A symbol with no coverage returns an empty slice.
func (p *FileNewsProvider) Recent(ctx context.Context, symbol string) ([]domain.NewsArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cutoff := p.now().Add(-newsLookback)
	var recent []domain.NewsArticle
	for _, a := range p.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))] {
		if a.PublishedAt.Before(cutoff) {
			break
		}
		recent = append(recent, a)
	}
	return recent, nil
}
