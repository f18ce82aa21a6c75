package store

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// PutDetection persists a detection and its secondary index entries.
func (s *Store) PutDetection(d *model.Detection) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return withRetry(func() error {
		return s.db.Update(func(tx *bolt.Tx) error {
			dets := tx.Bucket(bucketDetections)
			byID := tx.Bucket(bucketDetByID)

			var key []byte
			if existing := byID.Get([]byte(d.ID)); existing != nil {
				key = existing
			} else {
				seq, err := dets.NextSequence()
				if err != nil {
					return err
				}
				key = seqKey(seq)
				if err := byID.Put([]byte(d.ID), key); err != nil {
					return err
				}
			}
			val, err := marshal(d)
			if err != nil {
				return err
			}
			if err := dets.Put(key, val); err != nil {
				return err
			}
			sevKey := append([]byte(string(d.Severity)+"\x00"), tsKey(d.CreatedAt, btoi(key))...)
			if err := tx.Bucket(bucketDetBySeverityAt).Put(sevKey, key); err != nil {
				return err
			}
			if d.User != "" || d.Action != "" {
				uk := append([]byte(d.User+"\x00"+d.Action+"\x00"), key...)
				if err := tx.Bucket(bucketDetByUserAction).Put(uk, key); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func btoi(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// GetDetection retrieves a detection by its UUID.
func (s *Store) GetDetection(id string) (*model.Detection, error) {
	var d model.Detection
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketDetByID).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		val := tx.Bucket(bucketDetections).Get(key)
		if val == nil {
			return ErrNotFound
		}
		return unmarshal(val, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDetectionStatus loads a detection, transitions its status, and
// persists the result atomically (§4.6 update_status, §3 lifecycle).
func (s *Store) UpdateDetectionStatus(id string, to model.Status, by string) (*model.Detection, error) {
	d, err := s.GetDetection(id)
	if err != nil {
		return nil, err
	}
	if err := d.Transition(to, by); err != nil {
		return nil, err
	}
	if err := s.PutDetection(d); err != nil {
		return nil, err
	}
	return d, nil
}

// DetectionFilter narrows QueryDetections.
type DetectionFilter struct {
	Severity model.Severity
	Status   model.Status
	User     string
	Action   string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// QueryDetections scans detections newest-first applying the filter. A
// non-empty User seeks directly into idx:detection:user:action (§4.6's
// required (user, action) index); otherwise a non-empty Severity seeks
// into idx:detection:severity:created_at, which is already ordered
// newest-first within a severity by construction (tsKey(CreatedAt, seq)
// as the key suffix) so no extra sort is needed; any other filter
// combination scans bucketDetections newest-first with in-memory
// predicate filtering, the same shape QueryEvents uses for its own
// unindexed dimensions.
func (s *Store) QueryDetections(f DetectionFilter) ([]*model.Detection, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []*model.Detection
	err := s.db.View(func(tx *bolt.Tx) error {
		if f.User != "" {
			c := tx.Bucket(bucketDetByUserAction).Cursor()
			prefix := []byte(f.User + "\x00")
			if f.Action != "" {
				prefix = append(prefix, []byte(f.Action+"\x00")...)
			}
			startKey := append(append([]byte{}, prefix...), 0xff)
			k, key := c.Seek(startKey)
			if k == nil {
				k, key = c.Last()
			} else {
				k, key = c.Prev()
			}
			for ; k != nil && hasPrefix(k, prefix) && len(out) < limit; k, key = c.Prev() {
				d := loadDetection(tx, key)
				if d == nil || !detectionMatches(d, f) {
					continue
				}
				out = append(out, d)
			}
			return nil
		}
		if f.Severity != "" {
			c := tx.Bucket(bucketDetBySeverityAt).Cursor()
			prefix := []byte(string(f.Severity) + "\x00")
			startKey := append(append([]byte{}, prefix...), 0xff)
			k, key := c.Seek(startKey)
			if k == nil {
				k, key = c.Last()
			} else {
				k, key = c.Prev()
			}
			for ; k != nil && hasPrefix(k, prefix) && len(out) < limit; k, key = c.Prev() {
				d := loadDetection(tx, key)
				if d == nil || !detectionMatches(d, f) {
					continue
				}
				out = append(out, d)
			}
			return nil
		}
		c := tx.Bucket(bucketDetections).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var d model.Detection
			if err := unmarshal(v, &d); err != nil {
				continue
			}
			if !detectionMatches(&d, f) {
				continue
			}
			out = append(out, &d)
		}
		return nil
	})
	return out, err
}

func detectionMatches(d *model.Detection, f DetectionFilter) bool {
	if f.Severity != "" && d.Severity != f.Severity {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Action != "" && d.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && d.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && d.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

func loadDetection(tx *bolt.Tx, key []byte) *model.Detection {
	val := tx.Bucket(bucketDetections).Get(key)
	if val == nil {
		return nil
	}
	var d model.Detection
	if err := unmarshal(val, &d); err != nil {
		return nil
	}
	return &d
}
