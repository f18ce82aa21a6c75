package sigma

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

const sshFailRule = `
title: SSH Brute Force Attempt
id: rule-ssh-brute
level: high
tags:
  - attack.credential_access
  - attack.t1110
detection:
  selection:
    action|contains: failed_password
  condition: selection
`

func writeRule(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadAndMatchSimpleRule(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "ssh.yml", sshFailRule)

	rules, errs := LoadDir(dir)
	require.Empty(t, errs)
	require.Len(t, rules, 1)

	m := NewMatcher()
	m.Reload(rules)

	ev := model.New(time.Now(), model.KindEvent)
	ev.Action = "failed_password"

	dets := m.Match(ev)
	require.Len(t, dets, 1)
	require.Equal(t, model.SeverityHigh, dets[0].Severity)
	require.Contains(t, dets[0].Techniques, "T1110")
	require.Contains(t, dets[0].MitreTactics, "credential_access")
}

func TestConditionAndOrNot(t *testing.T) {
	results := map[string]bool{"a": true, "b": false, "c": true}
	require.True(t, evalCondition("a and not b", results))
	require.False(t, evalCondition("b or not c", results))
	require.True(t, evalCondition("b or c", results))
	require.False(t, evalCondition("a and b", results))
}

func TestConditionAllOfAndOneOf(t *testing.T) {
	results := map[string]bool{"sel_a": true, "sel_b": true, "other": false}
	require.True(t, evalCondition("all of sel_*", results))
	require.True(t, evalCondition("1 of sel_*", results))
	results["sel_b"] = false
	require.False(t, evalCondition("all of sel_*", results))
	require.True(t, evalCondition("1 of sel_*", results))
}

func TestWildcardPatternWithoutModifier(t *testing.T) {
	ev := model.New(time.Now(), model.KindEvent)
	ev.Process.CommandLine = "powershell.exe -enc ZQBjAGgAbw=="
	fm := model.FieldMatch{Field: "process.command_line", Modifiers: nil, Patterns: []string{"*-enc*"}}
	require.True(t, evaluateFieldMatch(ev, fm))
}

func TestRuleLoadErrorsAreSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "good.yml", sshFailRule)
	writeRule(t, dir, "bad.yml", "title: missing detection section\nlevel: low\n")

	rules, errs := LoadDir(dir)
	require.Len(t, rules, 1)
	require.Len(t, errs, 1)
}
