// Package prediction produces per-symbol direction forecasts by merging an
// always-available technical baseline with an optional fitted direction
// model and an optional news sentiment model. Missing sub-models degrade
// the blend instead of failing it.
package prediction

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

const (
	// signal labeling thresholds on the blended direction
	buyThreshold  = 0.15
	sellThreshold = -0.15
)

// Availability describes which optional sub-models the bridge was
// constructed with. It is decided once at startup and never changes, so
// callers can explain degraded output without re-probing.
type Availability struct {
	DirectionModel bool `json:"direction_model_available"`
	Sentiment      bool `json:"sentiment_available"`
	News           bool `json:"news_available"`
}

// Bridge merges sub-model outputs into one prediction per symbol
type Bridge struct {
	technical    *TechnicalModel
	direction    DirectionModel // nil when unavailable
	sentiment    SentimentModel // nil when unavailable
	news         NewsProvider   // nil when unavailable
	availability Availability
	log          zerolog.Logger
}

// NewBridge wires the bridge with whatever sub-models are present. Nil
// optional models downgrade availability rather than erroring.
func NewBridge(direction DirectionModel, sentiment SentimentModel, news NewsProvider, log zerolog.Logger) *Bridge {
	b := &Bridge{
		technical: NewTechnicalModel(),
		direction: direction,
		sentiment: sentiment,
		news:      news,
		availability: Availability{
			DirectionModel: direction != nil,
			Sentiment:      sentiment != nil,
			News:           news != nil,
		},
		log: log.With().Str("component", "prediction_bridge").Logger(),
	}
	b.log.Info().
		Bool("direction_model", b.availability.DirectionModel).
		Bool("sentiment", b.availability.Sentiment).
		Bool("news", b.availability.News).
		Msg("Prediction bridge initialized")
	return b
}

// Availability returns the capability descriptor decided at construction
func (b *Bridge) Availability() Availability {
	return b.availability
}

// Predict produces the merged prediction for one symbol. The technical
// baseline always contributes; the direction and sentiment models
// contribute only when available and when their inputs suffice. The blend
// weights each present sub-model by its own confidence.
func (b *Bridge) Predict(ctx context.Context, symbol string, series *domain.PriceSeries) domain.PredictionRecord {
	record := domain.PredictionRecord{
		Symbol:      symbol,
		GeneratedAt: time.Now().UTC(),
	}

	record.Models = append(record.Models, b.technical.Evaluate(series))

	if b.availability.DirectionModel {
		record.Models = append(record.Models, b.directionPrediction(series, &record))
	}
	if b.availability.Sentiment && b.availability.News {
		record.Models = append(record.Models, b.sentimentPrediction(ctx, symbol, &record))
	}

	record.Direction, record.Confidence = blend(record.Models)
	record.Signal = labelSignal(record.Direction, record.Confidence)
	return record
}

func (b *Bridge) directionPrediction(series *domain.PriceSeries, record *domain.PredictionRecord) domain.ModelPrediction {
	forecast := b.direction.Forecast(series)
	if !forecast.Trained {
		detail := "model not trained"
		if !forecast.DataSufficient {
			detail = "insufficient history"
		}
		return domain.ModelPrediction{Model: "direction", Available: false, Detail: detail}
	}
	record.PredictedPrice = forecast.PredictedPrice
	return domain.ModelPrediction{
		Model:      "direction",
		Direction:  forecast.Direction,
		Confidence: forecast.Confidence,
		Available:  true,
	}
}

func (b *Bridge) sentimentPrediction(ctx context.Context, symbol string, record *domain.PredictionRecord) domain.ModelPrediction {
	articles, err := b.news.Recent(ctx, symbol)
	if err != nil {
		b.log.Warn().Err(err).Str("symbol", symbol).Msg("News fetch failed, sentiment skipped")
		return domain.ModelPrediction{Model: "sentiment", Available: false, Detail: "news fetch failed"}
	}

	reading := b.sentiment.Analyze(articles)
	record.ArticleCount = reading.ArticleCount
	return domain.ModelPrediction{
		Model:      "sentiment",
		Direction:  reading.Direction,
		Confidence: reading.Confidence,
		Available:  true,
		Detail:     reading.Label,
	}
}

// blend merges the available sub-model outputs, weighting each direction
// by that model's confidence. A model with zero confidence (such as a
// no-article sentiment reading) contributes nothing to the direction.
func blend(models []domain.ModelPrediction) (direction, confidence float64) {
	totalConf := 0.0
	for _, m := range models {
		if !m.Available {
			continue
		}
		direction += m.Confidence * m.Direction
		confidence += m.Confidence * m.Confidence
		totalConf += m.Confidence
	}
	if totalConf == 0 {
		return 0, 0
	}
	return clampSigned(direction / totalConf), confidence / totalConf
}

func labelSignal(direction, confidence float64) domain.Signal {
	if confidence <= 0 {
		return domain.SignalHold
	}
	switch {
	case direction > buyThreshold:
		return domain.SignalBuy
	case direction < sellThreshold:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
