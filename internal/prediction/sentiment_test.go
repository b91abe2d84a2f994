package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/vigil/internal/domain"
)

func article(source, title, body string) domain.NewsArticle {
	return domain.NewsArticle{
		Symbol:      "AAA",
		Title:       title,
		Body:        body,
		Source:      source,
		PublishedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSentimentPositiveArticles(t *testing.T) {
	reading := NewLexiconSentimentModel().Analyze([]domain.NewsArticle{
		article("wire", "Earnings beat expectations", "Record profit and strong growth this quarter"),
		article("blog", "Analyst upgrade", "Shares surge after the upgrade"),
	})

	assert.Equal(t, "positive", reading.Label)
	assert.Greater(t, reading.Direction, 0.0)
	assert.Greater(t, reading.Confidence, 0.0)
	assert.Equal(t, 2, reading.ArticleCount)
	assert.ElementsMatch(t, []string{"wire", "blog"}, reading.Sources)
}

func TestSentimentNegativeArticles(t *testing.T) {
	reading := NewLexiconSentimentModel().Analyze([]domain.NewsArticle{
		article("wire", "Quarterly miss", "Weak demand, layoffs announced, guidance cut"),
	})

	assert.Equal(t, "negative", reading.Label)
	assert.Less(t, reading.Direction, 0.0)
}

func TestSentimentNoArticles(t *testing.T) {
	reading := NewLexiconSentimentModel().Analyze(nil)

	// No articles is a valid neutral reading, not an error
	assert.Equal(t, "neutral", reading.Label)
	assert.Zero(t, reading.ArticleCount)
	assert.Zero(t, reading.Confidence)
	assert.Zero(t, reading.Direction)
}

func TestSentimentNoLexiconHits(t *testing.T) {
	reading := NewLexiconSentimentModel().Analyze([]domain.NewsArticle{
		article("wire", "Company announces event", "The annual meeting is scheduled for June"),
	})

	assert.Equal(t, "neutral", reading.Label)
	assert.Equal(t, 1, reading.ArticleCount)
	assert.Zero(t, reading.Confidence)
}

func TestSentimentSourceDeduplication(t *testing.T) {
	reading := NewLexiconSentimentModel().Analyze([]domain.NewsArticle{
		article("wire", "Strong growth", "profit gains"),
		article("wire", "Another strong quarter", "record profit"),
	})

	assert.Equal(t, []string{"wire"}, reading.Sources)
}
