package firewall

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

func TestIptablesDrop(t *testing.T) {
	f := New()
	line := "IN=eth0 OUT= SRC=203.0.113.9 DST=10.0.0.5 PROTO=TCP SPT=443 DPT=22 DROP"
	require.True(t, f.CanParse([]byte(line)))
	ev, ok := f.Parse([]byte(line), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "connection_blocked", ev.Action)
	require.Equal(t, model.OutcomeFailure, ev.Outcome)
	require.Equal(t, "203.0.113.9", ev.Source.IP)
	require.Equal(t, 22, ev.Destination.Port)
}

func TestWindowsFirewallTuple(t *testing.T) {
	f := New()
	line := "2026-07-30 10:00:00 ALLOW TCP 10.0.0.1 10.0.0.2 51000 443 - - - - - - - - RECEIVE"
	require.True(t, f.CanParse([]byte(line)))
	ev, ok := f.Parse([]byte(line), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "connection_allowed", ev.Action)
	require.Equal(t, model.OutcomeSuccess, ev.Outcome)
}

func TestRejectsUnrelatedText(t *testing.T) {
	f := New()
	require.False(t, f.CanParse([]byte("just some text")))
}
