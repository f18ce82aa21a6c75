// Package scorer implements the threat-scoring stage of §4.5d:
// severity base score, detection-kind multiplier, MITRE-coverage bonus,
// confidence weighting, and score-driven severity re-classification.
package scorer

import (
	"github.com/SushanthKS06/IsoLog/internal/model"
)

// Weights are the configured, normalized-to-sum-1 per-kind weights of
// detection.scoring.{sigma,mitre,ml,heuristic}_weight.
type Weights struct {
	Sigma     float64
	Mitre     float64
	ML        float64
	Heuristic float64
}

func baseScore(sev model.Severity) float64 {
	switch sev {
	case model.SeverityCritical:
		return 100
	case model.SeverityHigh:
		return 80
	case model.SeverityMedium:
		return 50
	case model.SeverityLow:
		return 25
	default:
		return 10
	}
}

func kindMultiplier(kind model.DetectionKind) float64 {
	switch kind {
	case model.DetectionRule:
		return 1.0
	case model.DetectionCorrelation:
		return 0.9
	case model.DetectionML:
		return 0.8
	case model.DetectionHeuristic:
		return 0.6
	default:
		return 0.6
	}
}

func kindWeight(w Weights, kind model.DetectionKind) float64 {
	switch kind {
	case model.DetectionRule:
		return w.Sigma
	case model.DetectionML:
		return w.ML
	case model.DetectionHeuristic:
		return w.Heuristic
	case model.DetectionCorrelation:
		// Correlation detections draw on the same weight as rule
		// detections: both are deterministic, non-statistical sources.
		return w.Sigma
	default:
		return w.Heuristic
	}
}

func mitreBonus(d *model.Detection) float64 {
	techniqueBonus := 5.0 * float64(len(d.Techniques))
	if techniqueBonus > 20 {
		techniqueBonus = 20
	}
	tacticBonus := 3.0 * float64(len(d.MitreTactics))
	if tacticBonus > 15 {
		tacticBonus = 15
	}
	return techniqueBonus + tacticBonus
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Score computes and assigns d.ThreatScore per the §4.5d formula, and
// re-classifies d.Severity from the resulting score using the 80/60/40/20
// thresholds. Confidence is min-clamped at 0.5 for scoring purposes only
// (the stored Confidence field is left untouched).
func Score(d *model.Detection, w Weights) {
	base := baseScore(d.Severity)
	km := kindMultiplier(d.Kind)
	kw := kindWeight(w, d.Kind)
	bonus := mitreBonus(d)
	conf := d.Confidence
	if conf < 0.5 {
		conf = 0.5
	}

	score := (base*km*kw + bonus*w.Mitre) * conf
	score = clamp(score, 0, 100)
	d.ThreatScore = score
	d.Severity = severityFromScore(score)
}

func severityFromScore(score float64) model.Severity {
	switch {
	case score >= 80:
		return model.SeverityCritical
	case score >= 60:
		return model.SeverityHigh
	case score >= 40:
		return model.SeverityMedium
	case score >= 20:
		return model.SeverityLow
	default:
		return model.SeverityInformational
	}
}

// Normalize rescales w so its four components sum to 1, per §6
// ("normalized internally"). If all weights are zero it falls back to
// an even split.
func Normalize(w Weights) Weights {
	sum := w.Sigma + w.Mitre + w.ML + w.Heuristic
	if sum <= 0 {
		return Weights{Sigma: 0.25, Mitre: 0.25, ML: 0.25, Heuristic: 0.25}
	}
	return Weights{
		Sigma:     w.Sigma / sum,
		Mitre:     w.Mitre / sum,
		ML:        w.ML / sum,
		Heuristic: w.Heuristic / sum,
	}
}
