package main

import (
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/api"
	"github.com/SushanthKS06/IsoLog/internal/bus"
	"github.com/SushanthKS06/IsoLog/internal/chain"
	"github.com/SushanthKS06/IsoLog/internal/config"
	"github.com/SushanthKS06/IsoLog/internal/detection"
	"github.com/SushanthKS06/IsoLog/internal/detection/anomaly"
	"github.com/SushanthKS06/IsoLog/internal/detection/baseline"
	"github.com/SushanthKS06/IsoLog/internal/detection/mitre"
	"github.com/SushanthKS06/IsoLog/internal/detection/scorer"
	"github.com/SushanthKS06/IsoLog/internal/detection/sigma"
	"github.com/SushanthKS06/IsoLog/internal/ingest"
	"github.com/SushanthKS06/IsoLog/internal/ingest/filewatch"
	"github.com/SushanthKS06/IsoLog/internal/ingest/syslogsrc"
	"github.com/SushanthKS06/IsoLog/internal/ingest/usbimport"
	"github.com/SushanthKS06/IsoLog/internal/logging"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
	"github.com/SushanthKS06/IsoLog/internal/parsers/builtin"
	"github.com/SushanthKS06/IsoLog/internal/search"
	"github.com/SushanthKS06/IsoLog/internal/store"
)

// daemon holds every long-lived component wired together at startup,
// so start and shutdown each have one thing to reach into instead of a
// sprawling argument list.
type daemon struct {
	cfg *config.Config
	log *logging.Logger

	events     *store.Store
	blocks     *chain.Store
	committer  *chain.Committer
	bus        *bus.Bus
	searchIdx  *search.Index
	searchDB   *search.Store
	baseline   *baseline.Baseline
	matcher    *sigma.Matcher
	engine     *detection.Engine
	dispatcher *ingest.Dispatcher

	syslogListener *syslogsrc.Listener
	fileWatcher    *filewatch.Watcher
	usbImporter    *usbimport.Importer

	api *api.Service

	stopSigma     chan struct{}
	stopHeartbeat chan struct{}
	stopChain     chan struct{}
	chainNudge    chan struct{}
}

// searchIndexPath derives the search store's path from the event
// store's, so a fresh IsoLog config doesn't need a dedicated key for
// what is, operationally, just another embedded index file living
// next to the primary database.
func searchIndexPath(databasePath string) string {
	ext := filepath.Ext(databasePath)
	base := strings.TrimSuffix(databasePath, ext)
	return base + ".search" + ext
}

func baselinePath(databasePath string) string {
	ext := filepath.Ext(databasePath)
	base := strings.TrimSuffix(databasePath, ext)
	return base + ".baseline.json"
}

// build assembles every component from cfg but does not yet start any
// goroutine or accept any connection — that's start's job, so a failed
// build never leaves a half-started listener behind.
func build(cfg *config.Config, log *logging.Logger) (*daemon, error) {
	d := &daemon{
		cfg:           cfg,
		log:           log,
		stopSigma:     make(chan struct{}),
		stopHeartbeat: make(chan struct{}),
		stopChain:     make(chan struct{}),
		chainNudge:    make(chan struct{}, 1),
	}

	events, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}
	d.events = events

	if cfg.Blockchain.Enabled {
		blocks, err := chain.OpenStore(cfg.Blockchain.LedgerPath, log)
		if err != nil {
			return nil, err
		}
		d.blocks = blocks
		d.committer = chain.NewCommitter(chain.Config{
			BatchSize: cfg.Blockchain.BatchSize,
			Interval:  time.Duration(cfg.Blockchain.BatchIntervalSeconds) * time.Second,
		}, blocks, events, log)
	}

	d.bus = bus.New()

	d.searchIdx = search.New()
	searchDB, err := search.OpenStore(searchIndexPath(cfg.Database.Path))
	if err != nil {
		return nil, err
	}
	d.searchDB = searchDB

	d.matcher = sigma.NewMatcher()

	bl := baseline.New()
	if loaded, err := baseline.Load(baselinePath(cfg.Database.Path)); err == nil {
		bl = loaded
	}
	d.baseline = bl

	var anomalyDetector *anomaly.Detector
	if cfg.Detection.Anomaly.Enabled {
		anomalyDetector = anomaly.New(anomaly.Config{
			ModelsPath: cfg.Detection.Anomaly.ModelsPath,
			Threshold:  cfg.Detection.Anomaly.Threshold,
		})
	}

	var enricher *mitre.Enricher
	if cfg.Detection.Mitre.Enabled {
		enricher = mitre.New()
		if err := enricher.LoadOverlay(cfg.Detection.Mitre.AttackJSONPath); err != nil {
			log.Warnf("mitre overlay load failed, continuing with built-in table: %v", err)
		}
	}

	weights := scorer.Weights{
		Sigma:     cfg.Detection.Scoring.SigmaWeight,
		Mitre:     cfg.Detection.Scoring.MitreWeight,
		ML:        cfg.Detection.Scoring.MLWeight,
		Heuristic: cfg.Detection.Scoring.HeuristicWeight,
	}
	d.engine = detection.New(d.matcher, anomalyDetector, d.baseline, enricher, weights, log)

	registry := parsers.NewRegistry()
	builtin.Register(registry)

	workers := cfg.WorkerCount(runtime.NumCPU())
	d.dispatcher = ingest.New(registry, workers, log)
	d.dispatcher.AddSink(storeSink{store: events})
	d.dispatcher.AddSink(busSink{bus: d.bus})
	d.dispatcher.AddSink(searchSink{idx: d.searchIdx})
	d.dispatcher.AddSink(detectionSink{engine: d.engine, store: events, bus: d.bus, idx: d.searchIdx, log: log})

	if cfg.Ingestion.Syslog.Enabled {
		d.syslogListener = syslogsrc.New(syslogsrc.Config{
			UDPPort:   cfg.Ingestion.Syslog.UDPPort,
			TCPPort:   cfg.Ingestion.Syslog.TCPPort,
			QueueSize: 4096,
		}, log)
		d.dispatcher.AddSource(d.syslogListener.Source())
	}

	if cfg.Ingestion.FileWatcher.Enabled {
		d.fileWatcher = filewatch.New(filewatch.Config{
			WatchPaths: cfg.Ingestion.FileWatcher.WatchPaths,
			Patterns:   cfg.Ingestion.FileWatcher.Patterns,
			Interval:   cfg.Ingestion.FileWatcher.PollInterval,
			QueueSize:  4096,
			StatePath:  baselinePath(cfg.Database.Path) + ".filewatch-state.json",
		}, log)
		d.dispatcher.AddSource(d.fileWatcher.Source())
	}

	d.usbImporter = usbimport.New(usbimport.Config{
		Extensions:  []string{".log", ".csv", ".json"},
		MaxFileSize: 256 << 20,
		QueueSize:   4096,
		StatePath:   baselinePath(cfg.Database.Path) + ".usbimport-state.json",
	}, log)
	d.dispatcher.AddSource(d.usbImporter.Source())

	d.api = &api.Service{Store: events, Chain: d.blocks, Bus: d.bus, SourceID: cfg.Server.Host}

	return d, nil
}
