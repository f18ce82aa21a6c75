package chain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/SushanthKS06/IsoLog/internal/ierrors"
	"github.com/SushanthKS06/IsoLog/internal/logging"
	"github.com/SushanthKS06/IsoLog/internal/model"
)

// The chain is its own bbolt file (§4.7: "a separate persistent store"),
// blocks keyed by big-endian block id for ordered range scans, plus a
// secondary index over batch_start_id so a caller can find which block
// covers a given event-id range without scanning every block.
var (
	bucketBlocks        = []byte("blocks")
	bucketBlocksByStart = []byte("idx:block:batch_start_id")
)

var ErrNotFound = errors.New("block not found")

// Store is the durable block ledger backing Chain.
type Store struct {
	db  *bolt.DB
	log *logging.Logger
}

func OpenStore(path string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewDiscard()
	}
	db, err := bolt.Open(path, 0640, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, ierrors.New(ierrors.KindStoreWrite, err)
	}
	s := &Store{db: db, log: log}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocks, bucketBlocksByStart} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, ierrors.New(ierrors.KindStoreWrite, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func blockIDKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// Tail returns the highest-id block, or nil if the chain is empty.
func (s *Store) Tail() (*model.HashBlock, error) {
	var out *model.HashBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBlocks).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}
		var blk model.HashBlock
		if err := json.Unmarshal(v, &blk); err != nil {
			return err
		}
		out = &blk
		return nil
	})
	return out, err
}

// Append writes blk with a bounded-retry policy matching the event
// store's StoreWriteError handling (§7), since both are bbolt-backed
// durable appends under the same failure mode.
func (s *Store) Append(blk *model.HashBlock) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return err
	}
	return withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			if err := tx.Bucket(bucketBlocks).Put(blockIDKey(blk.ID), data); err != nil {
				return err
			}
			return tx.Bucket(bucketBlocksByStart).Put([]byte(blk.BatchStartID), blockIDKey(blk.ID))
		})
	})
}

// Get returns the block with the given id.
func (s *Store) Get(id int64) (*model.HashBlock, error) {
	var out *model.HashBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(blockIDKey(id))
		if v == nil {
			return ErrNotFound
		}
		var blk model.HashBlock
		if err := json.Unmarshal(v, &blk); err != nil {
			return err
		}
		out = &blk
		return nil
	})
	return out, err
}

// All returns every block in ascending id order.
func (s *Store) All() ([]*model.HashBlock, error) {
	var out []*model.HashBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).ForEach(func(k, v []byte) error {
			var blk model.HashBlock
			if err := json.Unmarshal(v, &blk); err != nil {
				return err
			}
			out = append(out, &blk)
			return nil
		})
	})
	return out, err
}

func withRetry(fn func() error) error {
	var err error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return ierrors.New(ierrors.KindStoreWrite, fmt.Errorf("chain append failed after 3 attempts: %w", err))
}
