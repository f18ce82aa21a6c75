package ingest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/SushanthKS06/IsoLog/internal/logging"
	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

// Sink receives every event the dispatcher produces, including the
// synthetic pipeline_error events raised on parse failure. Store,
// detection engine, subscription bus, and search index each implement
// this independently so the dispatcher stays ignorant of what consumes
// its output.
type Sink interface {
	Handle(ctx context.Context, ev *model.Event) error
}

// Dispatcher drains every registered source's bounded queue through a
// fixed-size worker pool, matching §5's "worker pool sized at startup"
// for CPU-bound parse/detect work, and fans resulting events out to every
// registered Sink.
type Dispatcher struct {
	registry *parsers.Registry
	sinks    []Sink
	sem      *semaphore.Weighted
	log      *logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	sources []*Source

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Dispatcher with the given worker-pool size (typically
// config.WorkerCount(runtime.NumCPU())).
func New(registry *parsers.Registry, workers int, log *logging.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logging.NewDiscard()
	}
	return &Dispatcher{
		registry: registry,
		sem:      semaphore.NewWeighted(int64(workers)),
		log:      log,
		now:      time.Now,
	}
}

// AddSink registers a consumer of parsed (and pipeline_error) events.
// Must be called before Start.
func (d *Dispatcher) AddSink(s Sink) { d.sinks = append(d.sinks, s) }

// AddSource registers an ingest source's frame queue. Must be called
// before Start.
func (d *Dispatcher) AddSource(src *Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, src)
}

// Start spawns one fan-in goroutine per registered source. Each
// goroutine acquires a worker-pool slot and parses/publishes its
// source's frames one at a time, in the order they arrive — §5
// requires that "within a single source, parsed events appear in the
// store in original arrival order," which a per-frame goroutine would
// violate once more than one worker slot is available. Parallelism
// therefore comes from distinct sources draining concurrently, never
// from reordering one source's own frames.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.mu.Lock()
	sources := append([]*Source{}, d.sources...)
	d.mu.Unlock()

	for _, src := range sources {
		src := src
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.drain(ctx, src)
		}()
	}
}

func (d *Dispatcher) drain(ctx context.Context, src *Source) {
	for {
		select {
		case <-ctx.Done():
			// Shutdown: finish the frames already queued for this source;
			// Stop bounds how long that may take.
			for {
				select {
				case f, ok := <-src.Frames:
					if !ok {
						return
					}
					_ = d.sem.Acquire(context.Background(), 1)
					d.process(ctx, src.Name, f)
					d.sem.Release(1)
				default:
					return
				}
			}
		case f, ok := <-src.Frames:
			if !ok {
				return
			}
			_ = d.sem.Acquire(context.Background(), 1)
			d.process(ctx, src.Name, f)
			d.sem.Release(1)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, sourceName string, f Frame) {
	hint := parsers.SourceHint{SourceTag: f.SourceTag, Metadata: f.Meta}
	ev, ok := d.registry.Parse(f.Raw, "", hint)
	if !ok {
		ev = d.pipelineError(f)
	}
	d.publish(ctx, ev)
}

// pipelineError builds the synthetic event §4.4/§7 require on parse
// failure: retains the raw bytes, tagged as KindPipelineError, and is
// routed through the same sinks as any other event.
func (d *Dispatcher) pipelineError(f Frame) *model.Event {
	ev := model.New(d.now(), model.KindPipelineError)
	ev.Raw = f.Raw
	ev.SourceFormat = f.SourceTag
	ev.Action = "parse_failed"
	ev.Outcome = model.OutcomeFailure
	if len(f.Meta) > 0 {
		ev.Extensions = make(map[string]model.FieldValue, len(f.Meta))
		for k, v := range f.Meta {
			ev.Extensions[k] = model.Scalar(v)
		}
	}
	return ev
}

func (d *Dispatcher) publish(ctx context.Context, ev *model.Event) {
	for _, s := range d.sinks {
		if err := s.Handle(ctx, ev); err != nil {
			d.log.Errorf("sink failed for event %s: %v", ev.ID, err)
		}
	}
}

// Stop cancels every drain goroutine and waits up to deadline for
// in-flight work to finish (§5 cancellation: "drains its bounded queues
// with a bounded deadline... any in-flight work past the deadline is
// abandoned"). It reports whether every goroutine drained cleanly
// before the deadline; false means some in-flight work was abandoned.
func (d *Dispatcher) Stop(deadline time.Duration) bool {
	if d.cancel != nil {
		d.cancel()
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(deadline):
		d.log.Warnf("dispatcher shutdown deadline exceeded, abandoning in-flight work")
		return false
	}
}
