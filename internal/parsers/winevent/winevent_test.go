package winevent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

func TestParseJSONExport(t *testing.T) {
	f := New()
	raw := []byte(`{"EventID": 4625, "Computer": "DC01", "TargetUserName": "bob"}`)
	require.True(t, f.CanParse(raw))
	ev, ok := f.Parse(raw, parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "DC01", ev.Host.Name)
	require.Equal(t, "logon", ev.Action)
	require.Equal(t, model.OutcomeFailure, ev.Outcome)
	require.Contains(t, ev.Extensions, "TargetUserName")
}

func TestParseTextExport(t *testing.T) {
	f := New()
	raw := []byte("Event ID: 4688\nAccount Name: alice\n")
	ev, ok := f.Parse(raw, parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "process_created", ev.Action)
}

func TestRejectsUnrelated(t *testing.T) {
	f := New()
	require.False(t, f.CanParse([]byte("hello world")))
}
