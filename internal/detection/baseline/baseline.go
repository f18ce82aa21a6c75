// Package baseline implements the behavioral baseline component of
// §4.5b's closing paragraph: a component separate from the inline
// isolation-forest/one-class-SVM detector that aggregates per-user and
// per-host histograms and flags deviations from a principal's or host's
// own learned history (as opposed to anomaly's population-wide models).
package baseline

import (
	"strconv"
	"sync"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// Indicator names one specific deviation an event shows from its
// principal/host's learned profile.
type Indicator string

const (
	IndicatorUnusualHour    Indicator = "unusual_hour"
	IndicatorUnusualDay     Indicator = "unusual_day"
	IndicatorNewSourceIP    Indicator = "new_source_ip"
	IndicatorNewHost        Indicator = "new_host"
	IndicatorNewProcess     Indicator = "new_process"
	IndicatorNewDestPort    Indicator = "new_dest_port"
)

// shard pairs a profile with the fine-grained lock that guards it, so
// concurrent Observe calls for different principals never contend with
// each other (§5: "each profile guarded by a fine-grained lock keyed by
// principal/host name"). Grounded on the mutex-per-entry shape gravwell's
// muxer uses for its per-connection state (ingest/muxer.go).
type shard struct {
	mu      sync.Mutex
	profile *model.Profile
}

// Baseline owns one profile per principal and one per host, each
// independently lockable.
type Baseline struct {
	mu    sync.RWMutex // guards the two top-level maps themselves
	users map[string]*shard
	hosts map[string]*shard
}

func New() *Baseline {
	return &Baseline{
		users: map[string]*shard{},
		hosts: map[string]*shard{},
	}
}

func (b *Baseline) shardFor(m map[string]*shard, key string, now time.Time) *shard {
	b.mu.RLock()
	s, ok := m[key]
	b.mu.RUnlock()
	if ok {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := m[key]; ok {
		return s
	}
	s = &shard{profile: model.NewProfile(key, now)}
	m[key] = s
	return s
}

// Observe folds ev into its principal's and host's profiles and, once
// each profile has exited learning mode (§4.5b: >= 7 days AND >= 1000
// events), returns the indicators ev trips against that profile's
// learned history. During learning mode Observe only trains, emitting no
// indicators — there is nothing yet to compare against.
func (b *Baseline) Observe(ev *model.Event, now time.Time) []Indicator {
	var indicators []Indicator

	if ev.Principal.User != "" {
		indicators = append(indicators, b.observeOne(b.users, ev.Principal.User, ev, true, now)...)
	}
	if ev.Host.Name != "" {
		indicators = append(indicators, b.observeOne(b.hosts, ev.Host.Name, ev, false, now)...)
	}
	return indicators
}

// observeOne folds ev into key's profile and returns the indicators it
// trips. trackPeerHost is true for user profiles, where "Peers" records
// hosts the user has been seen on — meaningless for a host's own profile,
// which is already keyed by that host.
func (b *Baseline) observeOne(m map[string]*shard, key string, ev *model.Event, trackPeerHost bool, now time.Time) []Indicator {
	s := b.shardFor(m, key, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profile
	var indicators []Indicator
	if p.LearningComplete(now) {
		indicators = deviations(p, ev, trackPeerHost)
	}

	hour := ev.Timestamp.Hour()
	day := int(ev.Timestamp.Weekday())
	p.HourHistogram[hour]++
	p.DayHistogram[day]++
	if ev.Source.IP != "" {
		p.SourceIPs[ev.Source.IP]++
	}
	if ev.Action != "" {
		p.Actions[ev.Action]++
	}
	if ev.Process.Name != "" {
		p.Processes[ev.Process.Name]++
	}
	if ev.Destination.Port != 0 {
		p.DestPorts[portKey(ev.Destination.Port)]++
	}
	if trackPeerHost && ev.Host.Name != "" {
		p.Peers[ev.Host.Name]++
	}
	p.EventCount++
	p.LastSeen = now

	return indicators
}

// deviations compares ev against p's already-learned history, before
// p is updated with ev itself — the point is to flag what's new, not to
// congratulate the profile for having just seen it.
func deviations(p *model.Profile, ev *model.Event, trackPeerHost bool) []Indicator {
	var out []Indicator

	total := p.EventCount
	if total > 0 {
		hourShare := float64(p.HourHistogram[ev.Timestamp.Hour()]) / float64(total)
		if hourShare < 0.01 {
			out = append(out, IndicatorUnusualHour)
		}
		dayShare := float64(p.DayHistogram[int(ev.Timestamp.Weekday())]) / float64(total)
		if dayShare < 0.01 {
			out = append(out, IndicatorUnusualDay)
		}
	}
	if ev.Source.IP != "" && p.SourceIPs[ev.Source.IP] == 0 {
		out = append(out, IndicatorNewSourceIP)
	}
	if ev.Process.Name != "" && p.Processes[ev.Process.Name] == 0 {
		out = append(out, IndicatorNewProcess)
	}
	if ev.Destination.Port != 0 && p.DestPorts[portKey(ev.Destination.Port)] == 0 {
		out = append(out, IndicatorNewDestPort)
	}
	if trackPeerHost && ev.Host.Name != "" && p.Peers[ev.Host.Name] == 0 {
		out = append(out, IndicatorNewHost)
	}
	return out
}

func portKey(port int) string {
	return strconv.Itoa(port)
}
