// Package ingest implements the dispatcher of §4.4: it receives raw
// source-tagged frames from the syslog listener, file watcher, USB
// importer, and PCAP flow extractor, runs them through the parser
// registry, and hands resulting events to the persistence/detection/
// index/publish pipeline.
package ingest

import "time"

// Frame is the (raw_bytes, source_tag, metadata_map) tuple every ingest
// source produces, per §4.4.
type Frame struct {
	Raw        []byte
	SourceTag  string
	Meta       map[string]string
	ReceivedAt time.Time
}

// Source is anything that feeds frames into a bounded channel for the
// dispatcher to drain. Each concrete source (syslogsrc.Listener,
// filewatch.Watcher, usbimport.Importer) exposes one through its
// Source method rather than through a shared interface type, since
// their start-up signatures differ too much (listen addresses vs watch
// paths vs mount probes) to unify profitably — the dispatcher only
// needs the channel each one exposes. pcapsrc.ExtractFlows is not a
// Source: it returns its frames as a slice.
type Source struct {
	Name   string
	Frames <-chan Frame
	Dropped func() uint64
}
