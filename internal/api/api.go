// Package api defines the Go-level contract §6 describes as the "wire/API
// surface consumed by the outer layer (specified as contracts, not as
// endpoints)". It is deliberately a package of exported interfaces and
// plain data types only — never an HTTP server, router, or transport
// framework — so an outer HTTP/WebSocket/UI layer can be grafted onto
// this daemon's internals without this package reaching back into any
// concrete store/chain/bus implementation. Service (service.go) satisfies
// them by delegating to internal/store, internal/chain and internal/bus;
// cmd/isologd wires the concrete types in.
package api

import (
	"time"

	"github.com/SushanthKS06/IsoLog/internal/bus"
	"github.com/SushanthKS06/IsoLog/internal/chain"
	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/store"
)

// EventReader answers query_events and get_event.
type EventReader interface {
	QueryEvents(f store.EventFilter) (store.Page, error)
	GetEvent(id string) (*model.Event, error)
}

// AlertPage is the paginated result of QueryAlerts.
type AlertPage struct {
	Detections []*model.Detection
	NextCursor string
}

// AlertReader answers query_alerts, acknowledge, and update_status.
type AlertReader interface {
	QueryAlerts(f store.DetectionFilter) (AlertPage, error)
	Acknowledge(id, by string) (*model.Detection, error)
	UpdateStatus(id string, to model.Status, by string) (*model.Detection, error)
}

// SeverityCounts is the result shape of counts_by_severity: one entry
// per severity from critical down to informational.
type SeverityCounts map[model.Severity]int

// MitreStatsResult is the result shape of mitre_stats: counts grouped
// independently by tactic and by technique.
type MitreStatsResult struct {
	Tactics    map[string]int `json:"tactics"`
	Techniques map[string]int `json:"techniques"`
}

// TimelineEntry is one bucket of a timeline response.
type TimelineEntry struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Stats answers the aggregate-query operations of §6.
type Stats interface {
	CountsBySeverity(since time.Time) (SeverityCounts, error)
	MitreStats(since, until time.Time) (MitreStatsResult, error)
	Timeline(since, until time.Time, bucket time.Duration, byDetection bool) ([]TimelineEntry, error)
}

// ChainStatus answers verify_chain and integrity_report.
type ChainStatus interface {
	VerifyChain() (chain.VerifyResult, error)
	IntegrityReport(now time.Time) (IntegrityReport, error)
	ExportChain() ([]*model.HashBlock, error)
}

// IntegrityReport is the result shape of integrity_report (§6).
type IntegrityReport struct {
	Timestamp      time.Time      `json:"timestamp"`
	ChainValid     bool           `json:"chain_valid"`
	BlocksVerified int            `json:"blocks_verified"`
	Errors         []string       `json:"errors,omitempty"`
	Statistics     map[string]int `json:"statistics"`
	Status         string         `json:"status"` // "ok" | "compromised"
}

// SyncService answers export_sync and import_sync.
type SyncService interface {
	ExportSync(events []*model.Event, blocks []*model.HashBlock, sourceID string, now time.Time) ([]byte, error)
	ImportSync(pkg []byte, verifyBlockchain bool) ([]*model.Event, []*model.HashBlock, chain.ImportResult, error)
}

// Subscriber answers subscribe(channel).
type Subscriber interface {
	Subscribe(ch bus.Channel, buffer int) *bus.Subscription
}

// Envelope is the wire shape every subscription frame is wrapped in
// (§6: `{type: event|alert|stats|heartbeat|connected, timestamp, data}`).
type Envelope struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

const (
	EnvelopeEvent     = "event"
	EnvelopeAlert     = "alert"
	EnvelopeStats     = "stats"
	EnvelopeHeartbeat = "heartbeat"
	EnvelopeConnected = "connected"
)

// HeartbeatInterval is the §6 cadence for heartbeat envelopes.
const HeartbeatInterval = 30 * time.Second

// API is the full surface an outer layer depends on; cmd/isologd
// assembles one from the concrete store/chain/bus instances.
type API interface {
	EventReader
	AlertReader
	Stats
	ChainStatus
	SyncService
	Subscriber
}
