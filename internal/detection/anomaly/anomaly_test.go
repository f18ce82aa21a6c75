package anomaly

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

func normalSample(rng *rand.Rand) Sample {
	return Sample{
		float64(9 + rng.Intn(8)), // business hours
		float64(rng.Intn(5)),     // weekday
		0, 1,
		1, 1, 1, 1,
		443, 443, 0, 1,
		0, 1, 40, 0,
	}
}

func TestIsolationForestSeparatesOutlier(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]Sample, 0, 300)
	for i := 0; i < 300; i++ {
		samples = append(samples, normalSample(rng))
	}
	forest := Fit(samples, rng)

	normalScore := AnomalyScore(forest.RawDecision(normalSample(rng)))
	outlier := Sample{3, 6, 1, 0, 1, 1, 1, 1, 59123, 31337, 1, 0, 1, 0, 4000, 2000}
	outlierScore := AnomalyScore(forest.RawDecision(outlier))

	require.Greater(t, outlierScore, normalScore)
}

func TestOCSVMSeparatesOutlier(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	samples := make([]Sample, 0, 200)
	for i := 0; i < 200; i++ {
		samples = append(samples, normalSample(rng))
	}
	m := FitOCSVM(samples)

	normalScore := m.Score(normalSample(rng))
	outlier := Sample{3, 6, 1, 0, 1, 1, 1, 1, 59123, 31337, 1, 0, 1, 0, 4000, 2000}
	outlierScore := m.Score(outlier)

	require.Greater(t, outlierScore, normalScore)
}

func TestDetectorWarmsThenTrains(t *testing.T) {
	d := New(Config{Threshold: 0.5})
	rng := rand.New(rand.NewSource(3))
	now := time.Now()

	var last []*model.Detection
	for i := 0; i < warmingTarget; i++ {
		ev := model.New(now, model.KindEvent)
		ev.Timestamp = now.Add(time.Duration(i) * time.Second)
		ev.Principal.User = "alice"
		ev.Source.IP = "10.0.0.5"
		ev.Destination.Port = 443
		last = d.Analyze(ev, now)
		require.Nil(t, last)
	}
	require.Equal(t, StateTrained, d.State())

	outlier := model.New(now, model.KindEvent)
	outlier.Timestamp = now.Add(3 * time.Hour)
	outlier.Source.Port = 59123
	outlier.Destination.Port = 31337
	dets := d.Analyze(outlier, now)
	_ = dets // may or may not cross threshold depending on trained boundary; lifecycle transition is what's under test
}
