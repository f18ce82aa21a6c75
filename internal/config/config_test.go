package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8088, cfg.Server.Port)
	require.True(t, cfg.Ingestion.Syslog.Enabled)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "isolog.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
server:
  port: 9090
blockchain:
  batch_size: 50
  ledger_path: ./ledger.db
`), 0644))

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 50, cfg.Blockchain.BatchSize)
}

func TestVerifyNormalizesScoringWeights(t *testing.T) {
	cfg := defaults()
	cfg.Detection.Scoring = ScoringConfig{SigmaWeight: 2, MitreWeight: 2, MLWeight: 2, HeuristicWeight: 2}
	require.NoError(t, cfg.Verify())
	require.InDelta(t, 0.25, cfg.Detection.Scoring.SigmaWeight, 0.0001)
}

func TestVerifyRejectsBadPort(t *testing.T) {
	cfg := defaults()
	cfg.Server.Port = -1
	require.Error(t, cfg.Verify())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ISOLOG_SERVER_PORT", "1234")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 1234, cfg.Server.Port)
}
