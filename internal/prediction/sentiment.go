package prediction

import (
	"context"
	"strings"

	"github.com/aristath/vigil/internal/domain"
)

// NewsProvider supplies recent articles for one symbol. Implementations
// must respect the context deadline; a timeout is a per-symbol degradation,
// never a batch failure.
type NewsProvider interface {
	Recent(ctx context.Context, symbol string) ([]domain.NewsArticle, error)
}

// Reading is the output of a sentiment model over a set of articles.
// ArticleCount of zero is a valid "no signal" reading, not an error.
type Reading struct {
	Label        string  // positive, negative, neutral
	Direction    float64 // -1..1
	Confidence   float64 // 0..1
	ArticleCount int
	Sources      []string
}

// SentimentModel scores a batch of news articles
type SentimentModel interface {
	Analyze(articles []domain.NewsArticle) Reading
}

// LexiconSentimentModel scores articles by counting polarity terms. It is
// deliberately simple; the bridge only needs a direction and a confidence
// that track the actual text.
type LexiconSentimentModel struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var defaultPositiveTerms = []string{
	"beat", "beats", "growth", "upgrade", "upgraded", "record", "strong",
	"surge", "rally", "profit", "gain", "gains", "outperform", "raised",
	"bullish", "expand", "expansion", "dividend",
}

var defaultNegativeTerms = []string{
	"miss", "misses", "downgrade", "downgraded", "weak", "loss", "losses",
	"plunge", "lawsuit", "recall", "cut", "cuts", "bearish", "decline",
	"layoff", "layoffs", "probe", "warning", "default",
}

// NewLexiconSentimentModel creates a sentiment model with the built-in
// polarity lexicon.
func NewLexiconSentimentModel() *LexiconSentimentModel {
	m := &LexiconSentimentModel{
		positive: make(map[string]struct{}, len(defaultPositiveTerms)),
		negative: make(map[string]struct{}, len(defaultNegativeTerms)),
	}
	for _, t := range defaultPositiveTerms {
		m.positive[t] = struct{}{}
	}
	for _, t := range defaultNegativeTerms {
		m.negative[t] = struct{}{}
	}
	return m
}

// Analyze scores the articles. No articles yields a neutral reading with
// zero confidence so the blend ignores it.
func (m *LexiconSentimentModel) Analyze(articles []domain.NewsArticle) Reading {
	if len(articles) == 0 {
		return Reading{Label: "neutral", ArticleCount: 0}
	}

	total := 0.0
	scored := 0
	sources := make([]string, 0, len(articles))
	seen := make(map[string]struct{})
	for _, a := range articles {
		if a.Source != "" {
			if _, ok := seen[a.Source]; !ok {
				seen[a.Source] = struct{}{}
				sources = append(sources, a.Source)
			}
		}
		score, hits := m.scoreText(a.Title + " " + a.Body)
		if hits > 0 {
			total += score
			scored++
		}
	}

	if scored == 0 {
		return Reading{Label: "neutral", ArticleCount: len(articles), Sources: sources}
	}

	direction := total / float64(scored)
	label := "neutral"
	switch {
	case direction > 0.15:
		label = "positive"
	case direction < -0.15:
		label = "negative"
	}

	// More scored articles and a stronger consensus both raise confidence
	coverage := float64(scored) / float64(len(articles))
	conf := (0.3 + 0.5*abs(direction)) * coverage
	if conf > 0.9 {
		conf = 0.9
	}

	return Reading{
		Label:        label,
		Direction:    clampSigned(direction),
		Confidence:   conf,
		ArticleCount: len(articles),
		Sources:      sources,
	}
}

// scoreText returns the net polarity of one text in [-1, 1] and the number
// of lexicon hits it was based on.
func (m *LexiconSentimentModel) scoreText(text string) (float64, int) {
	pos, neg := 0, 0
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if _, ok := m.positive[word]; ok {
			pos++
		}
		if _, ok := m.negative[word]; ok {
			neg++
		}
	}
	hits := pos + neg
	if hits == 0 {
		return 0, 0
	}
	return float64(pos-neg) / float64(hits), hits
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
