package store

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/SushanthKS06/IsoLog/internal/ierrors"
	"github.com/SushanthKS06/IsoLog/internal/model"
)

// PutEvent persists a single event and its secondary index entries in one
// transaction, assigning it the next monotonic sequence number.
func (s *Store) PutEvent(e *model.Event) error {
	return withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			return s.putEventTx(tx, e)
		})
	})
}

// PutEventsBatch writes every event atomically in one transaction: either
// the whole batch lands or none of it does, matching the "all events
// written or none are" dispatcher guarantee of §5.
func (s *Store) PutEventsBatch(events []*model.Event) error {
	if len(events) == 0 {
		return nil
	}
	return withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			for _, e := range events {
				if err := s.putEventTx(tx, e); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (s *Store) putEventTx(tx *bolt.Tx, e *model.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	events := tx.Bucket(bucketEvents)
	byID := tx.Bucket(bucketEventsByID)

	// Deduplicate on ID: if this event's ID is already indexed, treat the
	// put as a no-op success (at-least-once ingest, P6). The content hash
	// is not consulted, so two events with identical content but
	// different IDs are both stored.
	if existing := byID.Get([]byte(e.ID)); existing != nil {
		return nil
	}

	seq, err := events.NextSequence()
	if err != nil {
		return err
	}
	key := seqKey(seq)

	val, err := marshal(e)
	if err != nil {
		return ierrors.New(ierrors.KindStoreWrite, err)
	}
	if err := events.Put(key, val); err != nil {
		return err
	}
	if err := byID.Put([]byte(e.ID), key); err != nil {
		return err
	}
	if err := tx.Bucket(bucketEventsByTS).Put(tsKey(e.Timestamp, seq), key); err != nil {
		return err
	}
	if e.Host.Name != "" {
		hk := append([]byte(e.Host.Name+"\x00"), tsKey(e.Timestamp, seq)...)
		if err := tx.Bucket(bucketEventsByHost).Put(hk, key); err != nil {
			return err
		}
	}
	return tx.Bucket(bucketUnhashed).Put(key, []byte{1})
}

// GetEvent retrieves an event by its UUID.
func (s *Store) GetEvent(id string) (*model.Event, error) {
	var e model.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketEventsByID).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		val := tx.Bucket(bucketEvents).Get(key)
		if val == nil {
			return ErrNotFound
		}
		return unmarshal(val, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EventFilter narrows QueryEvents; zero values mean "unconstrained".
// §4.6 requires query_events to filter on host, source IP, user, and
// action (in addition to the indexed time range and category); only
// Host has a dedicated index bucket, so SourceIP/User/Action are
// applied as in-memory equality predicates over the timestamp- or
// host-ordered scan, the same way Category already is.
type EventFilter struct {
	Host     string
	SourceIP string
	User     string
	Action   string
	Since    time.Time
	Until    time.Time
	Category model.Category
	Limit    int
	Cursor   string // opaque pagination cursor returned in Page.NextCursor
}

// Page is a single page of query results plus a cursor for the next page.
type Page struct {
	Events     []*model.Event
	NextCursor string
}

// QueryEvents implements §4.6 query_events: filter by host/time range/
// category, newest-first, cursor-paginated.
func (s *Store) QueryEvents(f EventFilter) (Page, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []*model.Event
	var nextCursor string

	err := s.db.View(func(tx *bolt.Tx) error {
		var c *bolt.Cursor
		var startKey []byte
		if f.Host != "" {
			c = tx.Bucket(bucketEventsByHost).Cursor()
			prefix := []byte(f.Host + "\x00")
			if f.Cursor != "" {
				startKey = []byte(f.Cursor)
			} else {
				startKey = append(append([]byte{}, prefix...), 0xff)
			}
			k, v := c.Seek(startKey)
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
			for ; k != nil && hasPrefix(k, prefix); k, v = c.Prev() {
				if matches(s, tx, v, f) {
					ev := loadEvent(tx, v)
					if ev == nil {
						continue
					}
					out = append(out, ev)
					if len(out) >= limit {
						nextCursor = string(k)
						break
					}
				}
			}
			return nil
		}

		c = tx.Bucket(bucketEventsByTS).Cursor()
		if f.Cursor != "" {
			startKey = []byte(f.Cursor)
		}
		var k, v []byte
		if startKey != nil {
			k, v = c.Seek(startKey)
			if k != nil {
				k, v = c.Prev()
			} else {
				k, v = c.Last()
			}
		} else {
			k, v = c.Last()
		}
		for ; k != nil; k, v = c.Prev() {
			if matches(s, tx, v, f) {
				ev := loadEvent(tx, v)
				if ev == nil {
					continue
				}
				out = append(out, ev)
				if len(out) >= limit {
					nextCursor = string(k)
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return Page{}, err
	}
	return Page{Events: out, NextCursor: nextCursor}, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func matches(s *Store, tx *bolt.Tx, eventKey []byte, f EventFilter) bool {
	if f.Category == "" && f.SourceIP == "" && f.User == "" && f.Action == "" &&
		f.Since.IsZero() && f.Until.IsZero() {
		return true
	}
	ev := loadEvent(tx, eventKey)
	if ev == nil {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ev.Timestamp.After(f.Until) {
		return false
	}
	if f.SourceIP != "" && ev.Source.IP != f.SourceIP {
		return false
	}
	if f.User != "" && ev.Principal.User != f.User {
		return false
	}
	if f.Action != "" && ev.Action != f.Action {
		return false
	}
	if f.Category != "" {
		found := false
		for _, c := range ev.Categories {
			if c == f.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func loadEvent(tx *bolt.Tx, key []byte) *model.Event {
	val := tx.Bucket(bucketEvents).Get(key)
	if val == nil {
		return nil
	}
	var e model.Event
	if err := unmarshal(val, &e); err != nil {
		return nil
	}
	return &e
}

// GetBatchForHashing returns up to size events, in ascending sequence
// (== insertion / id) order, that have not yet been covered by a hash
// chain block (§4.6 get_batch_for_hashing).
func (s *Store) GetBatchForHashing(size int) ([]*model.Event, [][]byte, error) {
	if size <= 0 {
		size = 100
	}
	var out []*model.Event
	var keys [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketUnhashed).Cursor()
		for k, _ := c.First(); k != nil && len(out) < size; k, _ = c.Next() {
			ev := loadEvent(tx, k)
			if ev == nil {
				continue
			}
			out = append(out, ev)
			keys = append(keys, append([]byte{}, k...))
		}
		return nil
	})
	return out, keys, err
}

// MarkBatch records that the given event keys (as returned alongside
// GetBatchForHashing) have been covered by hash-chain block blockID and
// removes them from the unhashed index (§4.6 mark_batch).
func (s *Store) MarkBatch(keys [][]byte, blockID int64) error {
	if len(keys) == 0 {
		return nil
	}
	return withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			events := tx.Bucket(bucketEvents)
			unhashed := tx.Bucket(bucketUnhashed)
			batch := tx.Bucket(bucketEventsBatch)
			for _, k := range keys {
				val := events.Get(k)
				if val == nil {
					continue
				}
				var e model.Event
				if err := unmarshal(val, &e); err != nil {
					return err
				}
				e.BatchID = blockID
				nv, err := marshal(&e)
				if err != nil {
					return err
				}
				if err := events.Put(k, nv); err != nil {
					return err
				}
				if err := unhashed.Delete(k); err != nil {
					return err
				}
				if err := batch.Put(append(seqKeyInt64(blockID), k...), []byte{1}); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func seqKeyInt64(v int64) []byte {
	return seqKey(uint64(v))
}

// EventsForBatch returns every event stamped as covered by hash-chain
// block blockID, in the same ascending sequence order MarkBatch wrote
// them in (which in turn is GetBatchForHashing's order, the same order
// the committer built the block's Merkle leaves in). This is what
// lets IntegrityReport re-hash a block's actual covered events and
// compare against that block's stored merkle_root/block_hash, rather
// than only checking block-to-block previous_hash continuity.
func (s *Store) EventsForBatch(blockID int64) ([]*model.Event, error) {
	var out []*model.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := seqKeyInt64(blockID)
		c := tx.Bucket(bucketEventsBatch).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			ev := loadEvent(tx, k[len(prefix):])
			if ev == nil {
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}
