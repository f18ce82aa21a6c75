package chain

import (
	"sync"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// EventSource is the subset of internal/store.Store the committer needs:
// pull the next unhashed batch, and stamp it once covered. Declared here
// (rather than importing internal/store directly) so the committer can
// be driven by any event source in tests without a real bbolt file.
type EventSource interface {
	GetBatchForHashing(size int) ([]*model.Event, [][]byte, error)
	MarkBatch(keys [][]byte, blockID int64) error
}

// Config configures the committer per blockchain.* settings.
type Config struct {
	BatchSize int           // at most this many unhashed events go into one block
	Interval  time.Duration // Run commits once per this interval
}

// Committer is the single-threaded block producer of §4.7 and §5
// ("Hash chain: single writer (the committer task)"). Only one
// goroutine ever calls Commit at a time, enforced by commitMu rather
// than by convention, since both the interval ticker and an explicit
// flush-on-shutdown call may race to trigger a commit.
type Committer struct {
	cfg      Config
	blocks   *Store
	events   EventSource
	log      logger
	commitMu sync.Mutex
}

// logger is the tiny subset of *logging.Logger the committer uses, kept
// as an interface so tests don't need a real logger.
type logger interface {
	Errorf(format string, args ...interface{}) error
}

func NewCommitter(cfg Config, blocks *Store, events EventSource, log logger) *Committer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Committer{cfg: cfg, blocks: blocks, events: events, log: log}
}

// Run blocks until stop is closed, committing at every cfg.Interval
// tick and also whenever a value arrives on nudge. Run does not count
// unhashed events itself: a commit before the next tick happens only
// if the caller sends on nudge.
func (c *Committer) Run(stop <-chan struct{}, nudge <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.tryCommit()
		case <-nudge:
			c.tryCommit()
		}
	}
}

func (c *Committer) tryCommit() {
	if _, err := c.Commit(); err != nil && c.log != nil {
		c.log.Errorf("chain commit failed: %v", err)
	}
}

// Commit runs one instance of the §4.7 steps 1-5. It returns (nil, nil)
// if there is nothing unhashed to commit. commitMu ensures Commit itself
// is never concurrently re-entered even if both a ticker tick and an
// explicit flush (graceful shutdown) land at once.
func (c *Committer) Commit() (*model.HashBlock, error) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	events, keys, err := c.events.GetBatchForHashing(c.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	tail, err := c.blocks.Tail()
	if err != nil {
		return nil, err
	}
	prevHash := ""
	nextID := int64(1)
	if tail != nil {
		prevHash = tail.BlockHash
		nextID = tail.ID + 1
	}

	leaves := make([][32]byte, len(events))
	for i, ev := range events {
		ch, err := ev.ContentHash()
		if err != nil {
			return nil, err
		}
		leaves[i] = ch
	}
	root := merkleRoot(leaves)
	rootHex := hexOf(root)
	hashHex := blockHash(prevHash, rootHex, len(events))

	blk := &model.HashBlock{
		ID:           nextID,
		BlockHash:    hashHex,
		PreviousHash: prevHash,
		MerkleRoot:   rootHex,
		EventCount:   len(events),
		BatchStartID: events[0].ID,
		BatchEndID:   events[len(events)-1].ID,
		CreatedAt:    time.Now().UTC(),
	}

	if err := c.blocks.Append(blk); err != nil {
		return nil, err
	}
	if err := c.events.MarkBatch(keys, blk.ID); err != nil {
		return nil, err
	}
	return blk, nil
}
