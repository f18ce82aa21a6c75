// Package syslogsrc implements the syslog listener ingest source of
// §4.4: cooperative-accept UDP and newline-framed TCP sockets feeding a
// bounded drop-oldest queue. Grounded on gravwell's SimpleRelay ingester
// (cmd/SimpleRelay), which runs the same UDP-datagram / TCP-newline dual
// listener pattern against gravwell's ingest.IngestMuxer.
package syslogsrc

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/SushanthKS06/IsoLog/internal/ingest"
	"github.com/SushanthKS06/IsoLog/internal/logging"
)

const SourceTag = "syslog"

// Config configures the listener per the ingestion.syslog.* keys of §6.
type Config struct {
	UDPPort   int
	TCPPort   int
	QueueSize int
	// RateLimit caps how many frames per second move from the socket
	// into the queue, smoothing a burst before it ever reaches the
	// drop-oldest policy. 0 means unlimited.
	RateLimit float64
}

// Listener runs the UDP and TCP accept loops and exposes a single
// merged frame queue to the dispatcher.
type Listener struct {
	cfg     Config
	log     *logging.Logger
	queue   *ingest.DropOldestQueue
	now     func() time.Time
	limiter *rate.Limiter
}

func New(cfg Config, log *logging.Logger) *Listener {
	if log == nil {
		log = logging.NewDiscard()
	}
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if b := int(cfg.RateLimit); b > burst {
			burst = b
		}
	}
	return &Listener{
		cfg:     cfg,
		log:     log,
		queue:   ingest.NewDropOldestQueue(cfg.QueueSize),
		now:     time.Now,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Source exposes this listener as an ingest.Source for Dispatcher.AddSource.
func (l *Listener) Source() *ingest.Source {
	return &ingest.Source{Name: SourceTag, Frames: l.queue.Frames(), Dropped: l.queue.Dropped}
}

// Start launches the UDP and TCP accept loops; it returns once both are
// listening, propagating bind errors, and stops both when ctx is
// cancelled.
func (l *Listener) Start(ctx context.Context) error {
	if l.cfg.UDPPort > 0 {
		pc, err := net.ListenPacket("udp", udpAddr(l.cfg.UDPPort))
		if err != nil {
			return err
		}
		go l.serveUDP(ctx, pc)
	}
	if l.cfg.TCPPort > 0 {
		ln, err := net.Listen("tcp", udpAddr(l.cfg.TCPPort))
		if err != nil {
			return err
		}
		go l.serveTCP(ctx, ln)
	}
	return nil
}

func udpAddr(port int) string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
}

func (l *Listener) serveUDP(ctx context.Context, pc net.PacketConn) {
	defer pc.Close()
	go func() {
		<-ctx.Done()
		pc.Close()
	}()
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warnf("syslog udp read error: %v", err)
			continue
		}
		if err := l.limiter.Wait(ctx); err != nil {
			return
		}
		// One datagram is one message, per §4.4.
		raw := append([]byte{}, buf[:n]...)
		l.queue.Push(ingest.Frame{
			Raw:        raw,
			SourceTag:  SourceTag,
			Meta:       map[string]string{"transport": "udp", "peer": addr.String()},
			ReceivedAt: l.now(),
		})
	}
}

func (l *Listener) serveTCP(ctx context.Context, ln net.Listener) {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warnf("syslog tcp accept error: %v", err)
			continue
		}
		go l.serveConn(ctx, conn)
	}
}

func (l *Listener) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	peer := conn.RemoteAddr().String()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		line := append([]byte{}, scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		if err := l.limiter.Wait(ctx); err != nil {
			return
		}
		l.queue.Push(ingest.Frame{
			Raw:        line,
			SourceTag:  SourceTag,
			Meta:       map[string]string{"transport": "tcp", "peer": peer},
			ReceivedAt: l.now(),
		})
	}
}

// Dropped reports the number of frames evicted by the drop-oldest policy.
func (l *Listener) Dropped() uint64 { return l.queue.Dropped() }
