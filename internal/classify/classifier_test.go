// IntelliGuard - IoT Network Threat Detection and Quarantine
// Copyright 2026 IntelliGuard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/intelliguard/intelliguard

package classify

import (
	"errors"
	"testing"
	"time"

	"github.com/intelliguard/intelliguard/internal/config"
	"github.com/intelliguard/intelliguard/internal/models"
)

// stubPredictor is a scriptable Predictor for tests.
type stubPredictor struct {
	label      int
	anomaly    int
	predictErr error
	anomalyErr error
	calls      int
}

func (s *stubPredictor) Predict(models.FeatureVector) (int, error) {
	s.calls++
	if s.predictErr != nil {
		return 0, s.predictErr
	}
	return s.label, nil
}

func (s *stubPredictor) AnomalyScore(models.FeatureVector) (int, error) {
	if s.anomalyErr != nil {
		return 0, s.anomalyErr
	}
	return s.anomaly, nil
}

func breakerConfig() config.ClassifierConfig {
	cfg := testClassifierConfig()
	cfg.Breaker = config.BreakerConfig{
		FailureThreshold: 3,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MaxRequests:      1,
	}
	return cfg
}

func TestRuleClassifierThresholds(t *testing.T) {
	c := NewRuleClassifier(testClassifierConfig())

	cases := []struct {
		name string
		fv   models.FeatureVector
		want models.Label
	}{
		{"calm", models.FeatureVector{PacketRate: 50, ByteRate: 500}, models.LabelNormal},
		{"at packet threshold", models.FeatureVector{PacketRate: 800}, models.LabelNormal},
		{"over packet threshold", models.FeatureVector{PacketRate: 801}, models.LabelAttack},
		{"at byte threshold", models.FeatureVector{ByteRate: 10000}, models.LabelNormal},
		{"over byte threshold", models.FeatureVector{ByteRate: 10001}, models.LabelAttack},
		{"both high", models.FeatureVector{PacketRate: 2000, ByteRate: 50000}, models.LabelAttack},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.fv)
			if got.Label != tc.want {
				t.Errorf("label = %v, want %v", got.Label, tc.want)
			}
			if got.Anomaly {
				t.Errorf("rule classifier must never flag anomalies")
			}
		})
	}
}

func TestNewWithoutPredictorUsesRules(t *testing.T) {
	c := New(breakerConfig(), nil)
	if _, ok := c.(*RuleClassifier); !ok {
		t.Fatalf("expected rule classifier, got %T", c)
	}
}

func TestModelClassifierVerdicts(t *testing.T) {
	pred := &stubPredictor{label: 1, anomaly: -1}
	c := New(breakerConfig(), pred)

	got := c.Classify(models.FeatureVector{PacketRate: 10})
	if got.Label != models.LabelAttack {
		t.Errorf("label = %v, want Attack", got.Label)
	}
	if !got.Anomaly {
		t.Errorf("anomaly = false, want true for score -1")
	}

	pred.label = 0
	pred.anomaly = 1
	got = c.Classify(models.FeatureVector{PacketRate: 10})
	if got.Label != models.LabelNormal || got.Anomaly {
		t.Errorf("got %+v, want Normal/non-anomalous", got)
	}
}

func TestModelClassifierDegradesToRules(t *testing.T) {
	pred := &stubPredictor{predictErr: errors.New("model not loaded")}
	c := New(breakerConfig(), pred)

	// Predictor failure must silently degrade to rules: high packet rate
	// still classifies as attack.
	got := c.Classify(models.FeatureVector{PacketRate: 900})
	if got.Label != models.LabelAttack {
		t.Errorf("degraded label = %v, want Attack via rules", got.Label)
	}
	got = c.Classify(models.FeatureVector{PacketRate: 50, ByteRate: 500})
	if got.Label != models.LabelNormal {
		t.Errorf("degraded label = %v, want Normal via rules", got.Label)
	}
}

func TestModelClassifierBreakerOpensAndSkipsPredictor(t *testing.T) {
	pred := &stubPredictor{predictErr: errors.New("model not loaded")}
	c := New(breakerConfig(), pred)

	// Trip the breaker (threshold 3 consecutive failures).
	for i := 0; i < 5; i++ {
		c.Classify(models.FeatureVector{PacketRate: 50})
	}

	callsAfterTrip := pred.calls
	c.Classify(models.FeatureVector{PacketRate: 50})
	if pred.calls != callsAfterTrip {
		t.Errorf("open breaker must skip the predictor, calls went %d -> %d",
			callsAfterTrip, pred.calls)
	}
}

func TestModelClassifierAnomalyScorerFailureDegradesFlagOnly(t *testing.T) {
	pred := &stubPredictor{label: 1, anomalyErr: errors.New("isolation forest unavailable")}
	c := New(breakerConfig(), pred)

	got := c.Classify(models.FeatureVector{PacketRate: 10})
	if got.Label != models.LabelAttack {
		t.Errorf("label = %v, want Attack despite anomaly scorer failure", got.Label)
	}
	if got.Anomaly {
		t.Errorf("anomaly must degrade to false when the scorer fails")
	}
}
