package scorer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

func TestScoreBoundsAndReclassification(t *testing.T) {
	w := Normalize(Weights{Sigma: 1, Mitre: 1, ML: 1, Heuristic: 1})
	d := &model.Detection{
		Kind:         model.DetectionRule,
		Severity:     model.SeverityCritical,
		Confidence:   0.9,
		Techniques:   []string{"T1110", "T1078"},
		MitreTactics: []string{"credential_access"},
	}
	Score(d, w)
	require.GreaterOrEqual(t, d.ThreatScore, 0.0)
	require.LessOrEqual(t, d.ThreatScore, 100.0)
	require.Equal(t, model.SeverityCritical, d.Severity)
}

func TestScoreClampsLowConfidence(t *testing.T) {
	w := Normalize(Weights{Sigma: 1})
	d := &model.Detection{Kind: model.DetectionRule, Severity: model.SeverityLow, Confidence: 0.0}
	Score(d, w)
	require.Greater(t, d.ThreatScore, 0.0) // confidence floor of 0.5 keeps score positive
}

func TestNormalizeFallsBackToEvenSplitWhenAllZero(t *testing.T) {
	w := Normalize(Weights{})
	require.InDelta(t, 0.25, w.Sigma, 0.001)
	require.InDelta(t, 0.25, w.Mitre, 0.001)
}
