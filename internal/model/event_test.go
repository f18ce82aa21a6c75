package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleEvent() *Event {
	e := New(time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC), KindEvent)
	e.Host = HostIdentity{Name: "webserver", IP: "10.0.0.1"}
	e.Source = Endpoint{IP: "192.168.1.100", Port: 52431}
	e.Principal = Principal{User: "admin"}
	e.Categories = []Category{CategoryAuthentication}
	e.Action = "ssh_login"
	e.Outcome = OutcomeSuccess
	e.Extensions = map[string]FieldValue{
		"ssh": Map(map[string]FieldValue{
			"method": Scalar("password"),
		}),
	}
	return e
}

func TestCanonicalHashStability(t *testing.T) {
	e := sampleEvent()
	h1, err := e.ContentHash()
	require.NoError(t, err)

	b, err := e.MarshalJSON()
	require.NoError(t, err)

	var e2 Event
	require.NoError(t, json.Unmarshal(b, &e2))

	h2, err := e2.ContentHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2, "P1: content hash must survive a serialize/deserialize round trip")
}

func TestCanonicalJSONTimestampAndFlattenedExtensions(t *testing.T) {
	e := sampleEvent()
	b, err := e.CanonicalJSON()
	require.NoError(t, err)
	require.Contains(t, string(b), `"2026-01-02T03:04:05.000006Z"`)
	require.Contains(t, string(b), `"ssh.method":"password"`)
}

func TestEventValidate(t *testing.T) {
	e := sampleEvent()
	require.NoError(t, e.Validate())

	bad := sampleEvent()
	bad.Categories = []Category{"not-a-category"}
	require.ErrorIs(t, bad.Validate(), ErrInvalidEvent)

	empty := &Event{}
	require.Error(t, empty.Validate())
}

func TestDetectionTransitions(t *testing.T) {
	d := NewDetection("evt-1", DetectionRule, SeverityMedium)
	require.Equal(t, StatusNew, d.Status)

	require.NoError(t, d.Transition(StatusInvestigating, ""))
	require.NoError(t, d.Transition(StatusResolved, ""))
	require.ErrorIs(t, d.Transition(StatusNew, ""), ErrInvalidTransition)
}

func TestDetectionAcknowledge(t *testing.T) {
	d := NewDetection("evt-1", DetectionRule, SeverityLow)
	require.NoError(t, d.Transition(StatusAcknowledged, "alice"))
	require.Equal(t, "alice", d.AcknowledgedBy)
}
