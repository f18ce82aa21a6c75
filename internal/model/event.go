// Package model implements the canonical normalized event and detection
// schema (§3-4.1 of the design) shared by every parser, the detection
// engine, the event store, and the hash chain.
package model

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Kind is the observed-kind enum of an Event.
type Kind string

const (
	KindEvent         Kind = "event"
	KindAlert         Kind = "alert"
	KindMetric        Kind = "metric"
	KindState         Kind = "state"
	KindPipelineError Kind = "pipeline_error"
)

// Category is one member of the closed category vocabulary.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryProcess        Category = "process"
	CategoryNetwork        Category = "network"
	CategoryFile           Category = "file"
	CategoryIAM            Category = "iam"
	CategoryRegistry       Category = "registry"
	CategoryConfiguration  Category = "configuration"
	CategoryWeb            Category = "web"
	CategoryDatabase       Category = "database"
	CategoryMalware        Category = "malware"
)

var validCategories = map[Category]bool{
	CategoryAuthentication: true, CategoryProcess: true, CategoryNetwork: true,
	CategoryFile: true, CategoryIAM: true, CategoryRegistry: true,
	CategoryConfiguration: true, CategoryWeb: true, CategoryDatabase: true,
	CategoryMalware: true,
}

// ValidCategory reports whether c is a member of the closed vocabulary.
func ValidCategory(c Category) bool { return validCategories[c] }

// Outcome is the tri-state outcome enum.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeUnknown Outcome = "unknown"
)

type Endpoint struct {
	IP   string `json:"ip,omitempty"`
	Port int    `json:"port,omitempty"`
}

type HostIdentity struct {
	Name string `json:"name,omitempty"`
	IP   string `json:"ip,omitempty"`
}

type Principal struct {
	User   string `json:"user,omitempty"`
	Domain string `json:"domain,omitempty"`
}

type Process struct {
	Name        string `json:"name,omitempty"`
	PID         int    `json:"pid,omitempty"`
	CommandLine string `json:"command_line,omitempty"`
}

type FileRef struct {
	Path string `json:"path,omitempty"`
	Name string `json:"name,omitempty"`
}

var ErrInvalidEvent = errors.New("event fails schema validation")

// Event is the canonical normalized log occurrence described in §3.
type Event struct {
	ID           string       `json:"id"`
	Timestamp    time.Time    `json:"timestamp"`
	Kind         Kind         `json:"kind"`
	Categories   []Category   `json:"categories,omitempty"`
	Action       string       `json:"action,omitempty"`
	Outcome      Outcome      `json:"outcome,omitempty"`
	Host         HostIdentity `json:"host,omitempty"`
	Source       Endpoint     `json:"source,omitempty"`
	Destination  Endpoint     `json:"destination,omitempty"`
	Principal    Principal    `json:"principal,omitempty"`
	Process      Process      `json:"process,omitempty"`
	File         FileRef      `json:"file,omitempty"`
	Raw          []byte       `json:"raw,omitempty"`
	SourceFormat string       `json:"source_format,omitempty"`
	ParserID     string       `json:"parser_id,omitempty"`

	Extensions map[string]FieldValue `json:"-"`

	// BatchID is set once the event has been covered by a hash-chain
	// block (§4.6 mark_batch); zero means "not yet hashed".
	BatchID int64 `json:"batch_id,omitempty"`
}

// New constructs an event with a fresh stable identifier and the given
// timestamp, leaving every other field at its zero value for the caller
// (typically a format parser) to fill in.
func New(ts time.Time, kind Kind) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: ts.UTC(),
		Kind:      kind,
	}
}

// Validate enforces the schema invariants of §3: a stable non-empty ID,
// a recognized Kind, and category membership in the closed vocabulary.
func (e *Event) Validate() error {
	if e == nil || e.ID == "" {
		return ErrInvalidEvent
	}
	switch e.Kind {
	case KindEvent, KindAlert, KindMetric, KindState, KindPipelineError:
	default:
		return ErrInvalidEvent
	}
	for _, c := range e.Categories {
		if !ValidCategory(c) {
			return ErrInvalidEvent
		}
	}
	if e.Outcome != "" && e.Outcome != OutcomeSuccess && e.Outcome != OutcomeFailure && e.Outcome != OutcomeUnknown {
		return ErrInvalidEvent
	}
	return nil
}

// canonicalISO8601 renders a UTC timestamp with microsecond precision and
// a trailing Z, per §4.1.
func canonicalISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// canonicalMap converts the event into a plain map[string]interface{}
// tree. encoding/json sorts map[string]* keys lexicographically at every
// level, so marshaling this tree (rather than the tagged struct, whose
// field order is fixed by declaration order) yields the lexicographically
// key-ordered canonical form §4.1 requires, including dotted-flattened
// extensions.
func (e *Event) canonicalMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":            e.ID,
		"timestamp":     canonicalISO8601(e.Timestamp),
		"kind":          string(e.Kind),
		"source_format": e.SourceFormat,
		"parser_id":     e.ParserID,
	}
	if e.Action != "" {
		m["action"] = e.Action
	}
	if e.Outcome != "" {
		m["outcome"] = string(e.Outcome)
	}
	if len(e.Categories) > 0 {
		cats := make([]string, 0, len(e.Categories))
		for _, c := range e.Categories {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		arr := make([]interface{}, len(cats))
		for i, c := range cats {
			arr[i] = c
		}
		m["categories"] = arr
	}
	if e.Host.Name != "" || e.Host.IP != "" {
		m["host"] = map[string]interface{}{"name": e.Host.Name, "ip": e.Host.IP}
	}
	if e.Source.IP != "" || e.Source.Port != 0 {
		m["source"] = map[string]interface{}{"ip": e.Source.IP, "port": e.Source.Port}
	}
	if e.Destination.IP != "" || e.Destination.Port != 0 {
		m["destination"] = map[string]interface{}{"ip": e.Destination.IP, "port": e.Destination.Port}
	}
	if e.Principal.User != "" || e.Principal.Domain != "" {
		m["principal"] = map[string]interface{}{"user": e.Principal.User, "domain": e.Principal.Domain}
	}
	if e.Process.Name != "" || e.Process.PID != 0 || e.Process.CommandLine != "" {
		m["process"] = map[string]interface{}{
			"name": e.Process.Name, "pid": e.Process.PID, "command_line": e.Process.CommandLine,
		}
	}
	if e.File.Path != "" || e.File.Name != "" {
		m["file"] = map[string]interface{}{"path": e.File.Path, "name": e.File.Name}
	}
	if len(e.Raw) > 0 {
		m["raw"] = string(e.Raw)
	}
	if len(e.Extensions) > 0 {
		flat := map[string]string{}
		for k, v := range e.Extensions {
			v.Flatten(k, flat)
		}
		ext := make(map[string]interface{}, len(flat))
		for k, v := range flat {
			ext[k] = v
		}
		m["extensions"] = ext
	}
	return m
}

// CanonicalJSON serializes the event into the canonical form used for
// Merkle-leaf hashing: lexicographic key order,
// microsecond ISO-8601 timestamps, dotted-flattened extensions.
func (e *Event) CanonicalJSON() ([]byte, error) {
	return json.Marshal(e.canonicalMap())
}

// ContentHash is the SHA-256 digest of the canonical form. Two events
// with identical semantic content yield identical hashes; the hash chain
// uses it as each event's Merkle leaf. The event store deduplicates by
// event ID, not by this hash.
func (e *Event) ContentHash() ([32]byte, error) {
	b, err := e.CanonicalJSON()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// MarshalJSON implements the wire representation of the event (including
// extensions, unlike CanonicalJSON which flattens them for hashing).
func (e *Event) MarshalJSON() ([]byte, error) {
	type alias Event
	ext := make(map[string]interface{}, len(e.Extensions))
	for k, v := range e.Extensions {
		ext[k] = v.Interface()
	}
	return json.Marshal(struct {
		*alias
		Extensions map[string]interface{} `json:"extensions,omitempty"`
	}{alias: (*alias)(e), Extensions: ext})
}

// UnmarshalJSON restores extensions as scalar FieldValues; nested
// maps/lists round-trip as FieldMap/FieldList via fieldValueFromAny.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	aux := struct {
		*alias
		Extensions map[string]interface{} `json:"extensions,omitempty"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Extensions) > 0 {
		e.Extensions = make(map[string]FieldValue, len(aux.Extensions))
		for k, v := range aux.Extensions {
			e.Extensions[k] = fieldValueFromAny(v)
		}
	}
	return nil
}

func fieldValueFromAny(v interface{}) FieldValue {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]FieldValue, len(t))
		for k, vv := range t {
			m[k] = fieldValueFromAny(vv)
		}
		return Map(m)
	case []interface{}:
		l := make([]FieldValue, len(t))
		for i, vv := range t {
			l[i] = fieldValueFromAny(vv)
		}
		return List(l...)
	default:
		return ScalarAny(t)
	}
}
