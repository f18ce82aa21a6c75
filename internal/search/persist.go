package search

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/SushanthKS06/IsoLog/internal/ierrors"
)

// bucketDocs holds the committed doc snapshot, keyed by doc ID. §4.9:
// "crash-safe via periodic commit; lost in-memory writes since the
// last commit are acceptable and will be re-indexed lazily on next
// query miss" — so the committed store only needs to hold Docs, not the
// derived postings, which Rebuild regenerates cheaply at load.
var bucketDocs = []byte("search:docs")

// Store is the embedded-bbolt commit target for Index, reusing the same
// embedded-store idiom internal/store and internal/chain already use
// rather than standing up a second storage engine for the index.
type Store struct {
	db *bolt.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0640, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, ierrors.New(ierrors.KindStoreWrite, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocs)
		return err
	}); err != nil {
		db.Close()
		return nil, ierrors.New(ierrors.KindStoreWrite, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Commit snapshots every doc in idx to the bbolt store.
func (s *Store) Commit(idx *Index) error {
	idx.mu.RLock()
	docs := make([]*Doc, 0, len(idx.docs))
	for _, d := range idx.docs {
		docs = append(docs, d)
	}
	idx.mu.RUnlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocs); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketDocs)
		if err != nil {
			return err
		}
		for _, d := range docs {
			data, err := json.Marshal(d)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(d.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rebuild loads every committed doc and re-derives the full in-memory
// index (postings are cheap to regenerate; only Docs are persisted).
func Rebuild(path string) (*Index, *Store, error) {
	s, err := OpenStore(path)
	if err != nil {
		return nil, nil, err
	}
	idx := New()
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(_, v []byte) error {
			var d Doc
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			idx.AddSingle(&d)
			return nil
		})
	})
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return idx, s, nil
}

// RunPeriodicCommit commits idx to s every interval until stop fires.
func RunPeriodicCommit(s *Store, idx *Index, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			_ = s.Commit(idx)
			return
		case <-ticker.C:
			_ = s.Commit(idx)
		}
	}
}
