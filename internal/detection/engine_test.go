package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/detection/baseline"
	"github.com/SushanthKS06/IsoLog/internal/detection/mitre"
	"github.com/SushanthKS06/IsoLog/internal/detection/scorer"
	"github.com/SushanthKS06/IsoLog/internal/detection/sigma"
	"github.com/SushanthKS06/IsoLog/internal/logging"
	"github.com/SushanthKS06/IsoLog/internal/model"
)

func TestEngineRunsSigmaAndScoresResult(t *testing.T) {
	matcher := sigma.NewMatcher()
	matcher.Reload([]*model.Rule{
		{
			ID:        "rule-1",
			Title:     "failed login",
			Level:     "high",
			Tags:      []string{"attack.credential_access", "attack.t1110"},
			Condition: "sel",
			Selections: map[string]model.Selection{
				"sel": {Fields: []model.FieldMatch{
					{Field: "outcome", Patterns: []string{"failure"}},
				}},
			},
		},
	})

	e := New(matcher, nil, nil, mitre.New(), scorer.Weights{Sigma: 1}, logging.NewDiscard())

	ev := model.New(time.Now(), model.KindEvent)
	ev.Outcome = model.OutcomeFailure

	dets := e.Analyze(ev, time.Now())
	require.Len(t, dets, 1)
	require.Equal(t, model.DetectionRule, dets[0].Kind)
	require.Contains(t, dets[0].MitreTactics, "credential_access")
	require.Greater(t, dets[0].ThreatScore, 0.0)
}

func TestEngineFoldsBaselineIndicatorsIntoOneDetection(t *testing.T) {
	matcher := sigma.NewMatcher()
	bl := baseline.New()
	e := New(matcher, nil, bl, mitre.New(), scorer.Weights{}, logging.NewDiscard())

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 1200; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		ev := model.New(ts, model.KindEvent)
		ev.Principal.User = "alice"
		ev.Source.IP = "10.0.0.5"
		e.Analyze(ev, ts)
	}

	trainedAt := start.Add(8 * 24 * time.Hour)
	outlier := model.New(trainedAt, model.KindEvent)
	outlier.Principal.User = "alice"
	outlier.Source.IP = "203.0.113.50"

	dets := e.Analyze(outlier, trainedAt)
	require.Len(t, dets, 1)
	require.Equal(t, model.DetectionHeuristic, dets[0].Kind)
}

func TestEngineWithoutOptionalStagesEmitsNothing(t *testing.T) {
	matcher := sigma.NewMatcher()
	e := New(matcher, nil, nil, nil, scorer.Weights{}, nil)
	ev := model.New(time.Now(), model.KindEvent)
	dets := e.Analyze(ev, time.Now())
	require.Empty(t, dets)
}
