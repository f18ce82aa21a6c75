package store

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// CountsBySeverity implements §4.6 counts_by_severity: the number of
// detections at each severity level, newer than since.
func (s *Store) CountsBySeverity(since time.Time) (map[model.Severity]int, error) {
	counts := map[model.Severity]int{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDetections).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var d model.Detection
			if err := unmarshal(v, &d); err != nil {
				continue
			}
			if !since.IsZero() && d.CreatedAt.Before(since) {
				continue
			}
			counts[d.Severity]++
		}
		return nil
	})
	return counts, err
}

// MitreStat is one tactic/technique frequency bucket in mitre_stats.
type MitreStat struct {
	Tactic    string
	Technique string
	Count     int
}

// MitreStats implements §4.6 mitre_stats: detection counts grouped by
// MITRE tactic and technique over the given window.
func (s *Store) MitreStats(since, until time.Time) ([]MitreStat, error) {
	type key struct{ tactic, technique string }
	counts := map[key]int{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDetections).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var d model.Detection
			if err := unmarshal(v, &d); err != nil {
				continue
			}
			if !since.IsZero() && d.CreatedAt.Before(since) {
				continue
			}
			if !until.IsZero() && d.CreatedAt.After(until) {
				continue
			}
			tactics := d.MitreTactics
			if len(tactics) == 0 {
				tactics = []string{""}
			}
			techniques := d.Techniques
			if len(techniques) == 0 {
				techniques = []string{""}
			}
			for _, t := range tactics {
				for _, tech := range techniques {
					counts[key{t, tech}]++
				}
			}
		}
		return nil
	})
	out := make([]MitreStat, 0, len(counts))
	for k, c := range counts {
		out = append(out, MitreStat{Tactic: k.tactic, Technique: k.technique, Count: c})
	}
	return out, err
}

// TimelineBucket is one fixed-width time bucket in a Timeline response.
type TimelineBucket struct {
	Start time.Time
	Count int
}

// Timeline implements §4.6 timeline: event (or detection, via byDetection)
// counts bucketed at the given resolution over [since, until]; a zero
// bound leaves that side open.
func (s *Store) Timeline(since, until time.Time, resolution time.Duration, byDetection bool) ([]TimelineBucket, error) {
	if resolution <= 0 {
		resolution = time.Hour
	}
	buckets := map[int64]int{}
	scan := func(ts time.Time) {
		idx := ts.Truncate(resolution).Unix()
		buckets[idx]++
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		if byDetection {
			c := tx.Bucket(bucketDetections).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var d model.Detection
				if err := unmarshal(v, &d); err != nil {
					continue
				}
				if withinWindow(d.CreatedAt, since, until) {
					scan(d.CreatedAt)
				}
			}
			return nil
		}
		c := tx.Bucket(bucketEventsByTS).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			ev := loadEvent(tx, v)
			if ev == nil {
				continue
			}
			if withinWindow(ev.Timestamp, since, until) {
				scan(ev.Timestamp)
			}
		}
		return nil
	})
	out := make([]TimelineBucket, 0, len(buckets))
	for idx, c := range buckets {
		out = append(out, TimelineBucket{Start: time.Unix(idx, 0).UTC(), Count: c})
	}
	return out, err
}

func withinWindow(ts, since, until time.Time) bool {
	if !since.IsZero() && ts.Before(since) {
		return false
	}
	if !until.IsZero() && ts.After(until) {
		return false
	}
	return true
}
