package syslog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

func fixedNow() time.Time { return time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC) }

func TestScenario1AcceptedPassword(t *testing.T) {
	f := &Format{Now: fixedNow}
	line := "Dec 31 10:00:00 webserver sshd[1234]: Accepted password for admin from 192.168.1.100 port 52431 ssh2"
	require.True(t, f.CanParse([]byte(line)))

	ev, ok := f.Parse([]byte(line), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "webserver", ev.Host.Name)
	require.Equal(t, "admin", ev.Principal.User)
	require.Equal(t, "192.168.1.100", ev.Source.IP)
	require.Equal(t, 52431, ev.Source.Port)
	require.Equal(t, "ssh_login", ev.Action)
	require.Equal(t, model.OutcomeSuccess, ev.Outcome)
	require.Contains(t, ev.Categories, model.CategoryAuthentication)
	require.Equal(t, 2026, ev.Timestamp.Year())
}

func TestScenario2FailedPassword(t *testing.T) {
	f := &Format{Now: fixedNow}
	line := "Dec 31 10:00:15 webserver sshd[1235]: Failed password for invalid user test from 10.0.0.50 port 43210 ssh2"
	ev, ok := f.Parse([]byte(line), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, model.OutcomeFailure, ev.Outcome)
	require.Equal(t, "10.0.0.50", ev.Source.IP)
	require.Equal(t, 43210, ev.Source.Port)
}

func TestSudoEnrichment(t *testing.T) {
	f := &Format{Now: fixedNow}
	line := "Dec 31 10:00:00 host sudo: alice : TTY=pts/0 ; PWD=/home/alice ; USER=root ; COMMAND=/bin/systemctl restart nginx"
	ev, ok := f.Parse([]byte(line), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "sudo_exec", ev.Action)
	require.Equal(t, "alice", ev.Principal.User)
	require.Contains(t, ev.Process.CommandLine, "systemctl")
}

func TestRFC5424(t *testing.T) {
	f := &Format{Now: fixedNow}
	line := "<34>1 2026-07-30T10:00:00Z host01 sshd 1234 ID47 - Accepted password for root from 10.1.1.1 port 1234 ssh2"
	require.True(t, f.CanParse([]byte(line)))
	ev, ok := f.Parse([]byte(line), parsers.SourceHint{})
	require.True(t, ok)
	require.Equal(t, "host01", ev.Host.Name)
	require.Equal(t, model.OutcomeSuccess, ev.Outcome)
}

func TestNotSyslog(t *testing.T) {
	f := New()
	require.False(t, f.CanParse([]byte(`{"foo":"bar"}`)))
}
