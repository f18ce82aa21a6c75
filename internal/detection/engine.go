// Package detection composes the five detection sub-stages — rule
// matching, anomaly scoring, behavioral baseline, MITRE enrichment, and
// threat scoring — behind the single analyze(event) entry point of
// §4.5e. Each sub-stage's own failure mode is already a silent no-op
// (sigma skips unparseable rules at load time; anomaly degrades to
// warming on a training panic; baseline only trains during learning
// mode), so Engine.Analyze never needs to swallow an error of its own —
// it just calls each stage in the defined order and merges what comes
// back.
package detection

import (
	"time"

	"github.com/SushanthKS06/IsoLog/internal/detection/anomaly"
	"github.com/SushanthKS06/IsoLog/internal/detection/baseline"
	"github.com/SushanthKS06/IsoLog/internal/detection/mitre"
	"github.com/SushanthKS06/IsoLog/internal/detection/scorer"
	"github.com/SushanthKS06/IsoLog/internal/detection/sigma"
	"github.com/SushanthKS06/IsoLog/internal/logging"
	"github.com/SushanthKS06/IsoLog/internal/model"
)

// Engine wires the detection pipeline: Matcher -> anomaly.Detector ->
// baseline.Baseline -> mitre.Enricher -> scorer.Score.
type Engine struct {
	Matcher  *sigma.Matcher
	Anomaly  *anomaly.Detector
	Baseline *baseline.Baseline
	Mitre    *mitre.Enricher
	Weights  scorer.Weights
	Log      *logging.Logger
}

// New constructs an Engine from its already-configured sub-stages.
// Baseline may be nil (disabled), in which case no baseline-derived
// heuristic detections are emitted.
func New(matcher *sigma.Matcher, anom *anomaly.Detector, bl *baseline.Baseline, enricher *mitre.Enricher, weights scorer.Weights, log *logging.Logger) *Engine {
	return &Engine{
		Matcher:  matcher,
		Anomaly:  anom,
		Baseline: bl,
		Mitre:    enricher,
		Weights:  scorer.Normalize(weights),
		Log:      log,
	}
}

// Analyze runs ev through every detection sub-stage and returns every
// detection produced, each already MITRE-enriched and scored. Order
// matters only for MITRE enrichment and scoring, which must run last
// since they read fields the earlier stages populate.
func (e *Engine) Analyze(ev *model.Event, now time.Time) []*model.Detection {
	var out []*model.Detection

	out = append(out, e.Matcher.Match(ev)...)

	if e.Anomaly != nil {
		out = append(out, e.Anomaly.Analyze(ev, now)...)
	}

	if e.Baseline != nil {
		if indicators := e.Baseline.Observe(ev, now); len(indicators) > 0 {
			out = append(out, e.baselineDetection(ev, indicators))
		}
	}

	for _, d := range out {
		d.User = ev.Principal.User
		d.Action = ev.Action
		if e.Mitre != nil {
			e.Mitre.Enrich(d)
		}
		scorer.Score(d, e.Weights)
	}

	if e.Log != nil && len(out) > 0 {
		e.Log.Debugf("detections emitted for event %s: %d", ev.ID, len(out))
	}
	return out
}

// baselineDetection turns a set of behavioral indicators into a single
// heuristic detection; a profile rarely trips exactly one indicator in
// isolation, so they're folded into one detection rather than one per
// indicator.
func (e *Engine) baselineDetection(ev *model.Event, indicators []baseline.Indicator) *model.Detection {
	d := model.NewDetection(ev.ID, model.DetectionHeuristic, model.SeverityLow)
	d.RuleName = "behavioral_baseline"
	d.Confidence = 0.5 + 0.1*float64(len(indicators))
	if d.Confidence > 1 {
		d.Confidence = 1
	}
	fields := make(map[string]string, len(indicators))
	for i, ind := range indicators {
		fields[string(ind)] = "1"
		if i == 0 {
			d.Description = "behavioral deviation: " + string(ind)
		}
	}
	d.MatchedFields = fields
	return d
}
