package baseline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

func sampleEvent(user, host, ip string, port int, ts time.Time) *model.Event {
	ev := model.New(ts, model.KindEvent)
	ev.Principal.User = user
	ev.Host.Name = host
	ev.Source.IP = ip
	ev.Destination.Port = port
	ev.Action = "login"
	return ev
}

func TestLearningModeEmitsNoIndicators(t *testing.T) {
	b := New()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	ind := b.Observe(sampleEvent("alice", "host-1", "10.0.0.5", 443, now), now)
	require.Empty(t, ind)
}

func TestTrainedProfileFlagsNewSourceIP(t *testing.T) {
	b := New()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 1000; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		b.Observe(sampleEvent("alice", "host-1", "10.0.0.5", 443, ts), ts)
	}

	// Not yet 7 days old: still learning, even past the event-count floor.
	stillLearning := b.Observe(sampleEvent("alice", "host-1", "10.0.0.5", 443, start.Add(1001*time.Minute)), start.Add(1001*time.Minute))
	require.Empty(t, stillLearning)

	trainedAt := start.Add(8 * 24 * time.Hour)
	ind := b.Observe(sampleEvent("alice", "host-1", "203.0.113.9", 443, trainedAt), trainedAt)
	require.Contains(t, ind, IndicatorNewSourceIP)
}

func TestTrainedProfileFlagsNewHostAndPort(t *testing.T) {
	b := New()
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 1500; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		b.Observe(sampleEvent("bob", "host-1", "10.0.0.5", 443, ts), ts)
	}

	trainedAt := start.Add(10 * 24 * time.Hour)
	ind := b.Observe(sampleEvent("bob", "host-99", "10.0.0.5", 9999, trainedAt), trainedAt)
	require.Contains(t, ind, IndicatorNewHost)
	require.Contains(t, ind, IndicatorNewDestPort)
}

func TestSaveAndLoadRoundTrips(t *testing.T) {
	b := New()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	b.Observe(sampleEvent("alice", "host-1", "10.0.0.5", 443, now), now)

	path := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, b.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, loaded.users, "alice")
	require.Equal(t, 1, loaded.users["alice"].profile.EventCount)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
