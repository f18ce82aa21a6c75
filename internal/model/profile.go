package model

import "time"

// Profile is the aggregated behavioral baseline for one principal or host
// (§3). It is owned exclusively by the baseline module (internal/detection/baseline).
type Profile struct {
	Key string `json:"key"` // principal or host name

	HourHistogram [24]int `json:"hour_histogram"`
	DayHistogram  [7]int  `json:"day_histogram"`

	SourceIPs map[string]int `json:"source_ips,omitempty"`
	Actions   map[string]int `json:"actions,omitempty"`
	Peers     map[string]int `json:"peers,omitempty"`
	Processes map[string]int `json:"processes,omitempty"`
	DestPorts map[string]int `json:"dest_ports,omitempty"`

	EventCount int       `json:"event_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// NewProfile creates a profile on first sighting of key.
func NewProfile(key string, now time.Time) *Profile {
	return &Profile{
		Key:       key,
		SourceIPs: map[string]int{},
		Actions:   map[string]int{},
		Peers:     map[string]int{},
		Processes: map[string]int{},
		DestPorts: map[string]int{},
		FirstSeen: now,
		LastSeen:  now,
	}
}

// LearningComplete reports whether this profile has aged past the
// learning-mode threshold of §4.5b (>= 7 days of data AND >= 1000 events).
func (p *Profile) LearningComplete(now time.Time) bool {
	return p.EventCount >= 1000 && now.Sub(p.FirstSeen) >= 7*24*time.Hour
}
