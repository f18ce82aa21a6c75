// Package store implements the durable event/detection store of §4.6,
// backed by go.etcd.io/bbolt the way the teacher embeds bbolt as its
// local cache/queue engine (ingest/boltcache_test.go). One bucket holds
// the primary record for each entity, keyed by a store-assigned monotonic
// sequence number (bbolt's NextSequence) rather than the entity's UUID,
// so that "in id order" iteration (§4.6 get_batch_for_hashing, §8 P7) is
// a cheap ascending bucket scan instead of a sort over random UUIDs;
// secondary index buckets map UUID and query dimensions back to that
// sequence.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/SushanthKS06/IsoLog/internal/ierrors"
	"github.com/SushanthKS06/IsoLog/internal/logging"
)

var (
	bucketEvents       = []byte("events")
	bucketEventsByID   = []byte("idx:event:id")
	bucketEventsByTS   = []byte("idx:event:timestamp")
	bucketEventsByHost = []byte("idx:event:timestamp:host")
	bucketEventsBatch  = []byte("idx:event:batch")
	bucketUnhashed     = []byte("idx:event:unhashed")

	bucketDetections       = []byte("detections")
	bucketDetByID          = []byte("idx:detection:id")
	bucketDetByUserAction  = []byte("idx:detection:user:action")
	bucketDetBySeverityAt  = []byte("idx:detection:severity:created_at")
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db  *bolt.DB
	log *logging.Logger
}

// Open opens (creating if needed) the bbolt-backed event store at path
// and ensures every required bucket exists.
func Open(path string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewDiscard()
	}
	db, err := bolt.Open(path, 0640, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, ierrors.New(ierrors.KindStoreWrite, err)
	}
	s := &Store{db: db, log: log}
	if err := s.init(); err != nil {
		db.Close()
		return nil, ierrors.New(ierrors.KindStoreWrite, err)
	}
	return s, nil
}

func (s *Store) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{
			bucketEvents, bucketEventsByID, bucketEventsByTS, bucketEventsByHost,
			bucketEventsBatch, bucketUnhashed,
			bucketDetections, bucketDetByID, bucketDetByUserAction, bucketDetBySeverityAt,
		} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func tsKey(ts time.Time, seq uint64) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], uint64(ts.UnixMicro()))
	binary.BigEndian.PutUint64(b[8:], seq)
	return b
}

// withRetry implements the bounded-backoff retry policy for
// StoreWriteError (§7): 3 attempts before surfacing to the caller.
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
	return ierrors.New(ierrors.KindStoreWrite, fmt.Errorf("write failed after 3 attempts: %w", err))
}

func marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func unmarshal(b []byte, v interface{}) error { return json.Unmarshal(b, v) }
