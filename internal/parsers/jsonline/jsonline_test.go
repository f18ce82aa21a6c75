package jsonline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

func TestParseECSNested(t *testing.T) {
	f := New()
	raw := []byte(`{
		"@timestamp": "2026-07-30T10:00:00Z",
		"source": {"ip": "10.0.0.5", "port": 443},
		"user": {"name": "bob"},
		"event": {"action": "login", "outcome": "success", "category": ["authentication"]},
		"custom_field": "value"
	}`)
	require.True(t, f.CanParse(raw))
	ev, ok := f.Parse(raw, parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "10.0.0.5", ev.Source.IP)
	require.Equal(t, 443, ev.Source.Port)
	require.Equal(t, "bob", ev.Principal.User)
	require.Equal(t, "login", ev.Action)
	require.Equal(t, model.OutcomeSuccess, ev.Outcome)
	require.Contains(t, ev.Categories, model.CategoryAuthentication)
	require.Contains(t, ev.Extensions, "custom_field")
}

func TestParseFlatAlternatives(t *testing.T) {
	f := New()
	raw := []byte(`{"timestamp": "2026-01-01T00:00:00Z", "msg": "hello", "clientIp": "1.2.3.4"}`)
	ev, ok := f.Parse(raw, parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "1.2.3.4", ev.Source.IP)
	require.Equal(t, model.Scalar("hello"), ev.Extensions["message"])
}

func TestRejectsNonObject(t *testing.T) {
	f := New()
	require.False(t, f.CanParse([]byte(`[1,2,3]`)))
	require.False(t, f.CanParse([]byte(`not json at all`)))
}
