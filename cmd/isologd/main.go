// Command isologd is the IsoLog daemon: it loads configuration, wires
// the parser registry, event store, hash chain, detection engine,
// subscription bus, search index, and ingest sources together, and
// runs until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/config"
	"github.com/SushanthKS06/IsoLog/internal/detection/sigma"
	"github.com/SushanthKS06/IsoLog/internal/logging"
)

// Exit codes per §6: 0 clean shutdown, 1 fatal startup (bad config or
// a component that failed to open), 2 a signal forced an unclean stop.
const (
	exitOK            = 0
	exitStartupFailed = 1
	exitForced        = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to isolog config YAML")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "isologd: config error: %v\n", err)
		return exitStartupFailed
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "isologd: logger error: %v\n", err)
		return exitStartupFailed
	}
	defer log.Close()
	if err := log.SetLevelString(cfg.LogLevel); err != nil {
		log.Warnf("invalid log_level %q, keeping default: %v", cfg.LogLevel, err)
	}

	raiseNoFile(log)

	d, err := build(cfg, log)
	if err != nil {
		log.Criticalf("startup failed: %v", err)
		return exitStartupFailed
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.start(ctx)
	defer d.close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("received signal %v, shutting down", sig)

	cancel()
	if clean := d.shutdown(); !clean {
		return exitForced
	}
	return exitOK
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if cfg.LogFile == "" {
		return logging.New(os.Stdout), nil
	}
	return logging.NewFile(cfg.LogFile)
}

// start launches every background goroutine: dispatcher drain loops,
// ingest source accept loops, the hash-chain committer, the baseline
// snapshot ticker, the sigma rule watcher, and the bus heartbeat.
func (d *daemon) start(ctx context.Context) {
	d.dispatcher.Start(ctx)

	if d.syslogListener != nil {
		if err := d.syslogListener.Start(ctx); err != nil {
			d.log.Errorf("syslog listener failed to start: %v", err)
		}
	}
	if d.fileWatcher != nil {
		d.fileWatcher.Start(ctx)
	}
	if d.usbImporter != nil {
		go d.runUSBPoll(ctx)
	}

	if d.committer != nil {
		go d.committer.Run(d.stopChain, d.chainNudge)
	}

	go d.runBaselineSnapshots(ctx)

	if d.cfg.Detection.Sigma.Enabled {
		go sigma.WatchDir(d.cfg.Detection.Sigma.RulesPath, d.matcher, d.log, d.stopSigma)
	}

	go d.bus.RunHeartbeat(d.stopHeartbeat, 30*time.Second)
}

// runUSBPoll runs one USB import pass at startup and then every minute,
// since removable media is mounted and unmounted on its own schedule
// rather than being a continuously-streaming source like syslog.
func (d *daemon) runUSBPoll(ctx context.Context) {
	poll := func() {
		scanned, imported, err := d.usbImporter.Import()
		if err != nil {
			d.log.Warnf("usb import pass failed: %v", err)
			return
		}
		if imported > 0 {
			d.log.Infof("usb import pass: scanned %d, imported %d", scanned, imported)
		}
	}
	poll()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

// runBaselineSnapshots periodically persists the behavioral baseline
// profiles so learning progress survives a restart.
func (d *daemon) runBaselineSnapshots(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	path := baselinePath(d.cfg.Database.Path)
	for {
		select {
		case <-ctx.Done():
			if err := d.baseline.Save(path); err != nil {
				d.log.Warnf("final baseline snapshot failed: %v", err)
			}
			return
		case <-ticker.C:
			if err := d.baseline.Save(path); err != nil {
				d.log.Warnf("baseline snapshot failed: %v", err)
			}
		}
	}
}

// shutdown drains the dispatcher with a bounded deadline, flushes one
// final hash-chain block covering whatever unhashed events remain, and
// stops every periodic goroutine, in that order — the chain must flush
// after ingestion stops producing new events, not before. It reports
// whether the dispatcher drained cleanly within its deadline.
func (d *daemon) shutdown() bool {
	const drainDeadline = 10 * time.Second
	clean := d.dispatcher.Stop(drainDeadline)

	if d.committer != nil {
		if _, err := d.committer.Commit(); err != nil {
			d.log.Warnf("final chain commit failed: %v", err)
		}
		close(d.stopChain)
	}

	close(d.stopSigma)
	close(d.stopHeartbeat)
	return clean
}

// close releases every durable resource. Safe to call once, after
// shutdown has stopped all producers.
func (d *daemon) close() {
	if d.searchDB != nil {
		if err := d.searchDB.Commit(d.searchIdx); err != nil {
			d.log.Warnf("final search index commit failed: %v", err)
		}
		if err := d.searchDB.Close(); err != nil {
			d.log.Warnf("search index close failed: %v", err)
		}
	}
	if d.blocks != nil {
		if err := d.blocks.Close(); err != nil {
			d.log.Warnf("chain store close failed: %v", err)
		}
	}
	if d.events != nil {
		if err := d.events.Close(); err != nil {
			d.log.Warnf("event store close failed: %v", err)
		}
	}
}
