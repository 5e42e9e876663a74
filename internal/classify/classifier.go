// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package classify

import (
	"sync/atomic"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/logging"
	"github.com/intelliguard/intelliguard/internal/metrics"
	"github.com/intelliguard/intelliguard/internal/models"
)

// Classifier produces a verdict for one feature vector. Implementations
// must be safe for concurrent use; classification is pure per packet.
type Classifier interface {
	Classify(fv models.FeatureVector) models.ClassificationResult
}

// Predictor is the external model capability: a label predictor plus an
// anomaly scorer. Predict returns 1 for attack, 0 for normal. AnomalyScore
// returns -1 for anomalous, 1 for normal.
type Predictor interface {
	Predict(fv models.FeatureVector) (int, error)
	AnomalyScore(fv models.FeatureVector) (int, error)
}

// RuleClassifier is the model-free fallback: attack on raw rate thresholds,
// never anomalous.
type RuleClassifier struct {
	packetRate float64
	byteRate   float64
}

// NewRuleClassifier creates the rule-based fallback classifier.
func NewRuleClassifier(cfg config.ClassifierConfig) *RuleClassifier {
	return &RuleClassifier{
		packetRate: cfg.RulePacketRate,
		byteRate:   cfg.RuleByteRate,
	}
}

// Classify applies the rate thresholds.
func (c *RuleClassifier) Classify(fv models.FeatureVector) models.ClassificationResult {
	label := models.LabelNormal
	if fv.PacketRate > c.packetRate || fv.ByteRate > c.byteRate {
		label = models.LabelAttack
	}
	return models.ClassificationResult{Label: label, Anomaly: false}
}

// ModelClassifier delegates to a Predictor behind a circuit breaker and
// silently degrades to the rule fallback when the predictor is unavailable.
// Unavailability is a configuration condition, not an error: the degrade and
// recovery transitions are logged once each, not per packet.
type ModelClassifier struct {
	predictor Predictor
	fallback  *RuleClassifier
	breaker   *gobreaker.CircuitBreaker[models.ClassificationResult]
	degraded  atomic.Bool
}

// New builds the configured classifier adapter. A nil predictor yields the
// rule-based fallback directly.
func New(cfg config.ClassifierConfig, predictor Predictor) Classifier {
	fallback := NewRuleClassifier(cfg)
	if predictor == nil {
		logging.Info().Msg("no model predictor configured, using rule-based classifier")
		return fallback
	}
	return &ModelClassifier{
		predictor: predictor,
		fallback:  fallback,
		breaker:   newBreaker(cfg.Breaker),
	}
}

// newBreaker creates the predictor circuit breaker. Consecutive predictor
// failures trip it open; while open, packets skip straight to the fallback.
func newBreaker(cfg config.BreakerConfig) *gobreaker.CircuitBreaker[models.ClassificationResult] {
	settings := gobreaker.Settings{
		Name:        "model-predictor",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("classifier breaker state change")
			if to == gobreaker.StateOpen {
				metrics.ClassifierBreakerState.Set(1)
			} else {
				metrics.ClassifierBreakerState.Set(0)
			}
		},
	}
	return gobreaker.NewCircuitBreaker[models.ClassificationResult](settings)
}

// Classify runs the model prediction, degrading to the rule fallback on any
// predictor or breaker failure. An anomaly-scorer failure only degrades the
// anomaly flag; the predicted label stands.
func (c *ModelClassifier) Classify(fv models.FeatureVector) models.ClassificationResult {
	result, err := c.breaker.Execute(func() (models.ClassificationResult, error) {
		pred, err := c.predictor.Predict(fv)
		if err != nil {
			return models.ClassificationResult{}, err
		}
		label := models.LabelNormal
		if pred == 1 {
			label = models.LabelAttack
		}
		anomaly := false
		if score, err := c.predictor.AnomalyScore(fv); err == nil && score == -1 {
			anomaly = true
		}
		return models.ClassificationResult{Label: label, Anomaly: anomaly}, nil
	})
	if err != nil {
		metrics.ClassifierFallbacks.Inc()
		if c.degraded.CompareAndSwap(false, true) {
			logging.Warn().Err(err).Msg("model predictor unavailable, degrading to rule-based classification")
		}
		return c.fallback.Classify(fv)
	}
	if c.degraded.CompareAndSwap(true, false) {
		logging.Info().Msg("model predictor recovered")
	}
	return result
}
