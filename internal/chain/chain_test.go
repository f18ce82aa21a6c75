package chain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

func openTestBlockStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "chain.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeEventSource is an in-memory EventSource for committer tests,
// independent of internal/store so the chain package can be tested
// without a bbolt event store.
type fakeEventSource struct {
	unhashed []*model.Event
	marked   map[string]int64
}

func newFakeEventSource(events ...*model.Event) *fakeEventSource {
	return &fakeEventSource{unhashed: events, marked: map[string]int64{}}
}

func (f *fakeEventSource) GetBatchForHashing(size int) ([]*model.Event, [][]byte, error) {
	if size > len(f.unhashed) {
		size = len(f.unhashed)
	}
	batch := f.unhashed[:size]
	keys := make([][]byte, len(batch))
	for i, ev := range batch {
		keys[i] = []byte(ev.ID)
	}
	return batch, keys, nil
}

func (f *fakeEventSource) MarkBatch(keys [][]byte, blockID int64) error {
	remaining := f.unhashed[:0]
	marked := map[string]bool{}
	for _, k := range keys {
		marked[string(k)] = true
		f.marked[string(k)] = blockID
	}
	for _, ev := range f.unhashed {
		if !marked[ev.ID] {
			remaining = append(remaining, ev)
		}
	}
	f.unhashed = remaining
	return nil
}

func sampleEvent(id, msg string) *model.Event {
	ev := model.New(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), model.KindEvent)
	ev.ID = id
	ev.Extensions = map[string]model.FieldValue{"message": model.Scalar(msg)}
	return ev
}

// TestGenesisBlockMatchesSpecWorkedExample reproduces §8 seed scenario 3
// literally: two events E1/E2, root = SHA256(H1||H2), block =
// SHA256("genesis:" + root + ":2").
func TestGenesisBlockMatchesSpecWorkedExample(t *testing.T) {
	e1 := sampleEvent("1", "a")
	e2 := sampleEvent("2", "b")

	h1, err := e1.ContentHash()
	require.NoError(t, err)
	h2, err := e2.ContentHash()
	require.NoError(t, err)

	wantRoot := h(append(append([]byte{}, h1[:]...), h2[:]...))
	wantRootHex := hexOf(wantRoot)
	wantBlockHash := blockHash("", wantRootHex, 2)

	blocks := openTestBlockStore(t)
	events := newFakeEventSource(e1, e2)
	c := NewCommitter(Config{BatchSize: 10}, blocks, events, nil)

	blk, err := c.Commit()
	require.NoError(t, err)
	require.NotNil(t, blk)
	require.Equal(t, wantRootHex, blk.MerkleRoot)
	require.Equal(t, wantBlockHash, blk.BlockHash)
	require.Equal(t, "", blk.PreviousHash)
	require.Equal(t, 2, blk.EventCount)

	all, err := blocks.All()
	require.NoError(t, err)
	vr := VerifyChain(all)
	require.True(t, vr.Valid)
	require.Equal(t, 1, vr.BlocksVerified)
}

func TestCommitterChainsSuccessiveBlocks(t *testing.T) {
	blocks := openTestBlockStore(t)
	events := newFakeEventSource(sampleEvent("1", "a"), sampleEvent("2", "b"), sampleEvent("3", "c"))
	c := NewCommitter(Config{BatchSize: 2}, blocks, events, nil)

	first, err := c.Commit()
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ID)

	second, err := c.Commit()
	require.NoError(t, err)
	require.Equal(t, int64(2), second.ID)
	require.Equal(t, first.BlockHash, second.PreviousHash)

	third, err := c.Commit()
	require.NoError(t, err)
	require.Nil(t, third) // nothing left unhashed

	all, err := blocks.All()
	require.NoError(t, err)
	require.True(t, VerifyChain(all).Valid)
}

func TestVerifyChainDetectsTamperedPreviousHash(t *testing.T) {
	blocks := openTestBlockStore(t)
	events := newFakeEventSource(sampleEvent("1", "a"), sampleEvent("2", "b"), sampleEvent("3", "c"), sampleEvent("4", "d"))
	c := NewCommitter(Config{BatchSize: 2}, blocks, events, nil)

	_, err := c.Commit()
	require.NoError(t, err)
	_, err = c.Commit()
	require.NoError(t, err)

	all, err := blocks.All()
	require.NoError(t, err)
	require.Len(t, all, 2)

	all[1].PreviousHash = "tampered"
	vr := VerifyChain(all)
	require.False(t, vr.Valid)
	require.Equal(t, all[1].ID, vr.FailedAtBlock)
}

func TestVerifyBatchAndInclusion(t *testing.T) {
	e1 := sampleEvent("1", "a")
	e2 := sampleEvent("2", "b")
	e3 := sampleEvent("3", "c")
	batch := []*model.Event{e1, e2, e3}

	h1, _ := e1.ContentHash()
	h2, _ := e2.ContentHash()
	h3, _ := e3.ContentHash()
	root := merkleRoot([][32]byte{h1, h2, h3})
	rootHex := hexOf(root)
	expectedHash := blockHash("genesis", rootHex, 3)

	res, err := VerifyBatch(batch, expectedHash, rootHex, "genesis")
	require.NoError(t, err)
	require.True(t, res.Valid)

	badRes, err := VerifyBatch(batch, "deadbeef", rootHex, "genesis")
	require.NoError(t, err)
	require.False(t, badRes.Valid)

	inc, err := VerifyInclusion(batch, e2, rootHex)
	require.NoError(t, err)
	require.True(t, inc.Included)
	require.Equal(t, 1, inc.Position)

	missing := sampleEvent("99", "z")
	inc2, err := VerifyInclusion(batch, missing, rootHex)
	require.NoError(t, err)
	require.False(t, inc2.Included)
}

func TestExportImportRoundTrip(t *testing.T) {
	blocks := openTestBlockStore(t)
	events := newFakeEventSource(sampleEvent("1", "a"), sampleEvent("2", "b"))
	c := NewCommitter(Config{BatchSize: 10}, blocks, events, nil)
	_, err := c.Commit()
	require.NoError(t, err)

	allBlocks, err := blocks.All()
	require.NoError(t, err)

	archive, err := ExportPackage("node-1", []*model.Event{sampleEvent("1", "a"), sampleEvent("2", "b")}, allBlocks, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, archive)
	require.NotEmpty(t, PackageHash(archive))

	importedEvents, importedBlocks, res, err := ImportPackage(archive, true)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Len(t, importedEvents, 2)
	require.Len(t, importedBlocks, 1)
	require.NotNil(t, res.ChainContinuity)
	require.True(t, res.ChainContinuity.Valid)
}

func TestImportRejectsTamperedArchive(t *testing.T) {
	archive, err := ExportPackage("node-1", []*model.Event{sampleEvent("1", "a")}, nil, time.Now())
	require.NoError(t, err)

	tampered := append([]byte{}, archive...)
	// Flip a byte of the gzip trailer's CRC-32 so the archive still opens
	// and decompresses but its integrity check fails.
	tampered[len(tampered)-5] ^= 0xFF

	_, _, res, err := ImportPackage(tampered, false)
	require.NoError(t, err)
	require.False(t, res.Valid)
}
