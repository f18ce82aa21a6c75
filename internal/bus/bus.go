// Package bus implements the subscription fan-out of §4.8: named
// channels (events, alerts, all), best-effort delivery with a bounded
// send timeout, and a never-blocks-the-producer guarantee.
package bus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// Channel names the three fixed publish channels of §4.8.
type Channel string

const (
	ChannelEvents Channel = "events"
	ChannelAlerts Channel = "alerts"
	ChannelAll    Channel = "all"
)

// sendTimeout is the §5 subscriber send budget: 100ms.
const sendTimeout = 100 * time.Millisecond

// Message is whatever Publish fans out: either an event or a detection,
// tagged so a subscriber on "all" can tell which.
type Message struct {
	Event     *model.Event
	Detection *model.Detection
	Heartbeat bool
}

// subscriber is a single fan-out destination: a buffered channel the
// bus writes into, and the id it is registered under.
type subscriber struct {
	id string
	ch chan Message
}

// Bus fans messages out to subscribers per channel. The subscriber set
// is guarded by a single writer-preferring lock (§5: "Subscribers set:
// guarded by a single writer-preferring lock; iteration for fan-out
// takes a snapshot"); sync.RWMutex is Go's writer-preferring
// implementation, the same primitive gravwell's muxer uses to guard its
// per-connection subscriber-like state (ingest/muxer.go).
type Bus struct {
	mu   sync.RWMutex
	subs map[Channel]map[string]*subscriber
	seq  int
}

func New() *Bus {
	return &Bus{
		subs: map[Channel]map[string]*subscriber{
			ChannelEvents: {},
			ChannelAlerts: {},
			ChannelAll:    {},
		},
	}
}

// Subscription is the handle returned by Subscribe; read from C, call
// Unsubscribe when done.
type Subscription struct {
	C   <-chan Message
	bus *Bus
	ch  Channel
	id  string
}

// Subscribe registers a new subscriber on ch with the given buffer
// depth and returns a handle to read from.
func (b *Bus) Subscribe(ch Channel, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	id := "sub-" + strconv.Itoa(b.seq)
	sub := &subscriber{id: id, ch: make(chan Message, buffer)}
	b.subs[ch][id] = sub
	return &Subscription{C: sub.ch, bus: b, ch: ch, id: id}
}

// Unsubscribe removes and closes this subscription.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if sub, ok := s.bus.subs[s.ch][s.id]; ok {
		delete(s.bus.subs[s.ch], s.id)
		close(sub.ch)
	}
}

// PublishEvent fans ev out to every subscriber on "events" and "all".
func (b *Bus) PublishEvent(ev *model.Event) {
	b.publish(ChannelEvents, Message{Event: ev})
}

// PublishAlert fans det out to every subscriber on "alerts" and "all".
func (b *Bus) PublishAlert(det *model.Detection) {
	b.publish(ChannelAlerts, Message{Detection: det})
}

// publish delivers msg to ch and to "all", disconnecting any subscriber
// that doesn't drain within sendTimeout (§4.8: "a subscriber that cannot
// accept within a short timeout is disconnected and removed"). Iteration
// takes a snapshot under the read lock so the producer is never blocked
// waiting on the lock itself — only, briefly, on an individual slow
// subscriber's timeout, which runs outside the lock.
func (b *Bus) publish(ch Channel, msg Message) {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs[ch])+len(b.subs[ChannelAll]))
	for _, s := range b.subs[ch] {
		targets = append(targets, s)
	}
	if ch != ChannelAll {
		for _, s := range b.subs[ChannelAll] {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	var stale []*subscriber
	for _, s := range targets {
		select {
		case s.ch <- msg:
		case <-time.After(sendTimeout):
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		b.disconnect(s.id)
	}
}

func (b *Bus) disconnect(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.subs {
		if sub, ok := m[id]; ok {
			delete(m, id)
			close(sub.ch)
			return
		}
	}
}

// SubscriberCount reports the number of active subscribers on ch, for
// diagnostics.
func (b *Bus) SubscriberCount(ch Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ch])
}

// RunHeartbeat publishes a Heartbeat message on "all" at interval until
// stop fires, per §6's 30s heartbeat cadence. It paces itself with a
// rate.Limiter rather than a bare time.Ticker so a caller that also
// wants burst tolerance (e.g. an immediate heartbeat right after a
// reconnect storm) can share the same limiter type the rest of the
// domain stack uses, instead of introducing a second ticker idiom.
func (b *Bus) RunHeartbeat(stop <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		b.publish(ChannelAll, Message{Heartbeat: true})
	}
}

