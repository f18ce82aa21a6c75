package api

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/chain"
	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	es, err := store.Open(filepath.Join(dir, "events.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { es.Close() })

	cs, err := chain.OpenStore(filepath.Join(dir, "chain.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	return &Service{Store: es, Chain: cs}
}

// TestIntegrityReportVerifiesCommittedEvents exercises the fix that wires
// Store.EventsForBatch into IntegrityReport: every block's covered events
// must actually re-hash to its recorded merkle_root/block_hash, not just
// have an intact previous_hash chain.
func TestIntegrityReportVerifiesCommittedEvents(t *testing.T) {
	svc := newTestService(t)

	for i := 0; i < 3; i++ {
		e := model.New(time.Now(), model.KindEvent)
		e.Host.Name = "host-a"
		require.NoError(t, svc.Store.PutEvent(e))
	}

	committer := chain.NewCommitter(chain.Config{BatchSize: 10}, svc.Chain, svc.Store, nil)
	blk, err := committer.Commit()
	require.NoError(t, err)
	require.NotNil(t, blk)

	report, err := svc.IntegrityReport(time.Now())
	require.NoError(t, err)
	require.Equal(t, "ok", report.Status)
	require.True(t, report.ChainValid)
	require.Equal(t, 1, report.BlocksVerified)
	require.Equal(t, 3, report.Statistics["events"])
	require.Empty(t, report.Errors)

	covered, err := svc.Store.EventsForBatch(blk.ID)
	require.NoError(t, err)
	require.Len(t, covered, 3)
}

func TestIntegrityReportWithNoBlocksIsOK(t *testing.T) {
	svc := newTestService(t)
	report, err := svc.IntegrityReport(time.Now())
	require.NoError(t, err)
	require.Equal(t, "ok", report.Status)
	require.Equal(t, 0, report.Statistics["blocks"])
}
