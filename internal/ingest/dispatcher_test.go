package ingest

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
	"github.com/SushanthKS06/IsoLog/internal/parsers/jsonline"
)

type collectSink struct {
	mu     sync.Mutex
	events []*model.Event
}

func (c *collectSink) Handle(ctx context.Context, ev *model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collectSink) snapshot() []*model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.Event{}, c.events...)
}

func TestDispatcherParsesAndPublishes(t *testing.T) {
	reg := parsers.NewRegistry()
	reg.Register(jsonline.New(), 10)

	d := New(reg, 2, nil)
	sink := &collectSink{}
	d.AddSink(sink)

	q := NewDropOldestQueue(8)
	d.AddSource(&Source{Name: "test", Frames: q.Frames(), Dropped: q.Dropped})

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	q.Push(Frame{Raw: []byte(`{"message":"hello","host":{"name":"h1"}}`), SourceTag: "test"})

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	got := sink.snapshot()[0]
	require.Equal(t, model.KindEvent, got.Kind)
	require.Equal(t, "h1", got.Host.Name)

	cancel()
	d.Stop(time.Second)
}

func TestDispatcherPreservesPerSourceOrderUnderConcurrency(t *testing.T) {
	reg := parsers.NewRegistry()
	reg.Register(jsonline.New(), 10)

	// A worker pool wider than 1 must not let frames from the same
	// source race each other to the sink: §5 requires a single
	// source's events to land in original arrival order.
	d := New(reg, 8, nil)
	sink := &collectSink{}
	d.AddSink(sink)

	q := NewDropOldestQueue(64)
	d.AddSource(&Source{Name: "test", Frames: q.Frames(), Dropped: q.Dropped})

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	const n = 50
	for i := 0; i < n; i++ {
		msg := []byte(`{"message":"m","host":{"name":"h1"},"seq":"` + strconv.Itoa(i) + `"}`)
		q.Push(Frame{Raw: msg, SourceTag: "test"})
	}

	require.Eventually(t, func() bool { return len(sink.snapshot()) == n }, 2*time.Second, 5*time.Millisecond)
	got := sink.snapshot()
	for i, ev := range got {
		require.Equal(t, "h1", ev.Host.Name)
		seq, ok := ev.Extensions["seq"]
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), seq.Str)
	}

	cancel()
	d.Stop(time.Second)
}

func TestDispatcherEmitsPipelineErrorOnUnparseable(t *testing.T) {
	reg := parsers.NewRegistry()
	reg.Register(jsonline.New(), 10)

	d := New(reg, 1, nil)
	sink := &collectSink{}
	d.AddSink(sink)

	q := NewDropOldestQueue(8)
	d.AddSource(&Source{Name: "test", Frames: q.Frames(), Dropped: q.Dropped})

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	q.Push(Frame{Raw: []byte("not json at all"), SourceTag: "test"})

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	got := sink.snapshot()[0]
	require.Equal(t, model.KindPipelineError, got.Kind)
	require.Equal(t, "parse_failed", got.Action)

	cancel()
	d.Stop(time.Second)
}
