package main

import (
	"context"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/bus"
	"github.com/SushanthKS06/IsoLog/internal/detection"
	"github.com/SushanthKS06/IsoLog/internal/logging"
	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/search"
	"github.com/SushanthKS06/IsoLog/internal/store"
)

// storeSink persists every event (including synthetic pipeline_error
// events) to the durable event store. It is registered first so a
// later sink's failure never costs durability.
type storeSink struct{ store *store.Store }

func (s storeSink) Handle(_ context.Context, ev *model.Event) error {
	return s.store.PutEvent(ev)
}

// busSink publishes ev for subscribers; the bus itself is best-effort
// and never blocks the dispatcher, so Handle never fails here.
type busSink struct{ bus *bus.Bus }

func (s busSink) Handle(_ context.Context, ev *model.Event) error {
	s.bus.PublishEvent(ev)
	return nil
}

// searchSink indexes ev for full-text/field search.
type searchSink struct{ idx *search.Index }

func (s searchSink) Handle(_ context.Context, ev *model.Event) error {
	s.idx.AddSingle(search.DocFromEvent(ev))
	return nil
}

// detectionSink runs the detection engine against ev and, for every
// resulting Detection, persists it, publishes it on the alerts
// channel, and indexes it for search — mirroring the same
// store-then-bus-then-index fan-out path used for events themselves.
type detectionSink struct {
	engine *detection.Engine
	store  *store.Store
	bus    *bus.Bus
	idx    *search.Index
	log    *logging.Logger
}

func (s detectionSink) Handle(_ context.Context, ev *model.Event) error {
	dets := s.engine.Analyze(ev, time.Now())
	for _, d := range dets {
		if err := s.store.PutDetection(d); err != nil {
			s.log.Errorf("failed to persist detection %s: %v", d.ID, err)
			continue
		}
		s.bus.PublishAlert(d)
		s.idx.AddSingle(search.DocFromDetection(d))
	}
	return nil
}
