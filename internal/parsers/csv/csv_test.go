package csv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

func TestStreamHeaderThenRows(t *testing.T) {
	s := NewStream()
	_, ok := s.Parse([]byte("timestamp,host,user,action"), parsers.SourceHint{})
	require.False(t, ok, "header row produces no event")
	require.Equal(t, []string{"timestamp", "host", "user", "action"}, s.header)

	ev, ok := s.Parse([]byte("2026-01-01T00:00:00Z,webserver,admin,login"), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "webserver", ev.Host.Name)
	require.Equal(t, "admin", ev.Principal.User)
	require.Equal(t, "login", ev.Action)
}

func TestStreamGeneratesColumnLabelsWithoutHeader(t *testing.T) {
	s := NewStream()
	ev, ok := s.Parse([]byte("10.0.0.1,2"), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, []string{"col0", "col1"}, s.header)
	require.NotNil(t, ev)
}

func TestStreamPadsShortRows(t *testing.T) {
	s := NewStream()
	s.Parse([]byte("timestamp,host,user,action"), parsers.SourceHint{})
	ev, ok := s.Parse([]byte("2026-01-01T00:00:00Z,webserver"), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "webserver", ev.Host.Name)
}

func TestStreamResetHeaderOnRotation(t *testing.T) {
	s := NewStream()
	s.Parse([]byte("timestamp,host"), parsers.SourceHint{})
	s.ResetHeader()
	require.False(t, s.seen)
}
