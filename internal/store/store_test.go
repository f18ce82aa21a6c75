package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "events.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEvent(host string, ts time.Time) *model.Event {
	e := model.New(ts, model.KindEvent)
	e.Host.Name = host
	e.Action = "logon"
	e.Categories = []model.Category{model.CategoryAuthentication}
	return e
}

func TestQueryEventsFiltersByUserActionAndSourceIP(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Add(-time.Hour)

	e1 := sampleEvent("host-a", base)
	e1.Principal.User = "alice"
	e1.Source.IP = "10.0.0.1"
	require.NoError(t, s.PutEvent(e1))

	e2 := sampleEvent("host-a", base.Add(time.Minute))
	e2.Principal.User = "bob"
	e2.Action = "logoff"
	e2.Source.IP = "10.0.0.2"
	require.NoError(t, s.PutEvent(e2))

	page, err := s.QueryEvents(EventFilter{User: "alice"})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	require.Equal(t, e1.ID, page.Events[0].ID)

	page, err = s.QueryEvents(EventFilter{Action: "logoff"})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	require.Equal(t, e2.ID, page.Events[0].ID)

	page, err = s.QueryEvents(EventFilter{SourceIP: "10.0.0.2"})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	require.Equal(t, e2.ID, page.Events[0].ID)
}

func TestEventsForBatchReturnsCoveredEventsInOrder(t *testing.T) {
	s := openTestStore(t)
	var ids []string
	for i := 0; i < 4; i++ {
		e := sampleEvent("host-a", time.Now())
		require.NoError(t, s.PutEvent(e))
		ids = append(ids, e.ID)
	}
	events, keys, err := s.GetBatchForHashing(3)
	require.NoError(t, err)
	require.NoError(t, s.MarkBatch(keys, 7))

	covered, err := s.EventsForBatch(7)
	require.NoError(t, err)
	require.Len(t, covered, 3)
	for i, ev := range covered {
		require.Equal(t, events[i].ID, ev.ID)
	}

	none, err := s.EventsForBatch(99)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPutAndGetEvent(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("host-a", time.Now())
	require.NoError(t, s.PutEvent(e))

	got, err := s.GetEvent(e.ID)
	require.NoError(t, err)
	require.Equal(t, e.ID, got.ID)
	require.Equal(t, "host-a", got.Host.Name)
}

func TestPutEventDeduplicatesByID(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("host-a", time.Now())
	require.NoError(t, s.PutEvent(e))
	require.NoError(t, s.PutEvent(e)) // at-least-once redelivery, same ID

	page, err := s.QueryEvents(EventFilter{Host: "host-a"})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
}

func TestQueryEventsByHostNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		e := sampleEvent("host-a", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.PutEvent(e))
	}
	e := sampleEvent("host-b", base)
	require.NoError(t, s.PutEvent(e))

	page, err := s.QueryEvents(EventFilter{Host: "host-a"})
	require.NoError(t, err)
	require.Len(t, page.Events, 3)
	require.True(t, page.Events[0].Timestamp.After(page.Events[1].Timestamp))
}

func TestGetBatchForHashingAndMarkBatch(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.PutEvent(sampleEvent("host-a", time.Now())))
	}
	events, keys, err := s.GetBatchForHashing(3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.NoError(t, s.MarkBatch(keys, 1))

	remaining, _, err := s.GetBatchForHashing(100)
	require.NoError(t, err)
	require.Len(t, remaining, 2)

	got, err := s.GetEvent(events[0].ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.BatchID)
}

func TestDetectionLifecycleAndQuery(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("host-a", time.Now())
	require.NoError(t, s.PutEvent(e))

	d := model.NewDetection(e.ID, model.DetectionRule, model.SeverityHigh)
	d.ThreatScore = 80
	d.Confidence = 0.9
	require.NoError(t, s.PutDetection(d))

	got, err := s.GetDetection(d.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusNew, got.Status)

	updated, err := s.UpdateDetectionStatus(d.ID, model.StatusAcknowledged, "alice")
	require.NoError(t, err)
	require.Equal(t, model.StatusAcknowledged, updated.Status)
	require.Equal(t, "alice", updated.AcknowledgedBy)

	_, err = s.UpdateDetectionStatus(d.ID, model.StatusResolved, "alice")
	require.Error(t, err) // acknowledged -> resolved is not a legal edge

	dets, err := s.QueryDetections(DetectionFilter{Severity: model.SeverityHigh})
	require.NoError(t, err)
	require.Len(t, dets, 1)
}

func TestQueryDetectionsByUserAndAction(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("host-a", time.Now())
	require.NoError(t, s.PutEvent(e))

	d1 := model.NewDetection(e.ID, model.DetectionRule, model.SeverityHigh)
	d1.User = "alice"
	d1.Action = "logon"
	require.NoError(t, s.PutDetection(d1))

	d2 := model.NewDetection(e.ID, model.DetectionRule, model.SeverityLow)
	d2.User = "alice"
	d2.Action = "logoff"
	require.NoError(t, s.PutDetection(d2))

	d3 := model.NewDetection(e.ID, model.DetectionRule, model.SeverityMedium)
	d3.User = "bob"
	d3.Action = "logon"
	require.NoError(t, s.PutDetection(d3))

	dets, err := s.QueryDetections(DetectionFilter{User: "alice"})
	require.NoError(t, err)
	require.Len(t, dets, 2)

	dets, err = s.QueryDetections(DetectionFilter{User: "alice", Action: "logoff"})
	require.NoError(t, err)
	require.Len(t, dets, 1)
	require.Equal(t, d2.ID, dets[0].ID)

	dets, err = s.QueryDetections(DetectionFilter{User: "bob"})
	require.NoError(t, err)
	require.Len(t, dets, 1)
	require.Equal(t, d3.ID, dets[0].ID)
}

func TestCountsBySeverity(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("host-a", time.Now())
	require.NoError(t, s.PutEvent(e))
	for i := 0; i < 2; i++ {
		d := model.NewDetection(e.ID, model.DetectionRule, model.SeverityCritical)
		require.NoError(t, s.PutDetection(d))
	}
	d := model.NewDetection(e.ID, model.DetectionRule, model.SeverityLow)
	require.NoError(t, s.PutDetection(d))

	counts, err := s.CountsBySeverity(time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, counts[model.SeverityCritical])
	require.Equal(t, 1, counts[model.SeverityLow])
}
