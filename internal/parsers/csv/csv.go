// Package csv implements the CSV format parser of §4.3. Header state is
// stateful per logical file/stream, never global (Design Note: "stateful
// parser owned per-stream, not globally") — callers that ingest from a
// stream (a watched file, a TCP connection) construct one *Stream per
// stream and reuse it across lines; a bare Format value (used for one-off
// registry dispatch) always falls back to generated col0.. labels since
// it has no stream to remember a header against.
package csv

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

const ID = "csv"

var headerKeywords = []string{
	"timestamp", "time", "date", "host", "source", "destination", "user",
	"action", "event", "severity", "ip", "src", "dst", "message", "msg",
}

// Stream owns CSV header memory for exactly one logical file or
// connection; it is reset at a logical file boundary (rotation, new USB
// scan) by constructing a fresh Stream.
type Stream struct {
	Now    func() time.Time
	header []string
	seen   bool
}

func NewStream() *Stream {
	return &Stream{Now: time.Now}
}

// Format is the stateless registry-facing entry point; Parse always
// treats each call as its own file with a synthetic header, since no
// per-stream context is available through the shared registry.
type Format struct {
	Now func() time.Time
}

func New() *Format { return &Format{Now: time.Now} }

func (f *Format) ID() string { return ID }

func (f *Format) CanParse(raw []byte) bool {
	return looksLikeCSV(raw)
}

func (f *Format) Parse(raw []byte, hint parsers.SourceHint) (*model.Event, bool) {
	s := NewStream()
	s.Now = f.Now
	row := splitCSVLine(string(bytes.TrimSpace(raw)))
	if isHeaderRow(row) {
		s.header = row
		s.seen = true
		return nil, false // a header row carries no event of its own
	}
	s.setDefaultHeader(len(row))
	return s.rowToEvent(row)
}

func looksLikeCSV(raw []byte) bool {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return false
	}
	if bytes.HasPrefix(s, []byte("{")) || bytes.HasPrefix(s, []byte("<")) {
		return false
	}
	return bytes.ContainsRune(s, ',')
}

func (st *Stream) ID() string { return ID }

func (st *Stream) CanParse(raw []byte) bool { return looksLikeCSV(raw) }

// Parse consumes one CSV line against this stream's held header state.
// The first row is treated as a header if it contains any recognized
// header keyword; otherwise numeric column labels are generated and
// retained (§4.3). Column-count mismatches against an already-known
// header are padded or truncated.
func (st *Stream) Parse(raw []byte, hint parsers.SourceHint) (*model.Event, bool) {
	row := splitCSVLine(string(bytes.TrimSpace(raw)))
	if len(row) == 0 {
		return nil, false
	}
	if !st.seen {
		if isHeaderRow(row) {
			st.header = row
			st.seen = true
			return nil, false
		}
		st.setDefaultHeader(len(row))
	}
	row = reconcileWidth(row, len(st.header))
	return st.rowToEvent(row)
}

func (st *Stream) setDefaultHeader(n int) {
	hdr := make([]string, n)
	for i := range hdr {
		hdr[i] = fmt.Sprintf("col%d", i)
	}
	st.header = hdr
	st.seen = true
}

// ResetHeader clears header memory at a logical file boundary (rotation).
func (st *Stream) ResetHeader() {
	st.header = nil
	st.seen = false
}

func isHeaderRow(row []string) bool {
	for _, cell := range row {
		lc := strings.ToLower(strings.TrimSpace(cell))
		for _, kw := range headerKeywords {
			if strings.Contains(lc, kw) {
				return true
			}
		}
	}
	return false
}

func reconcileWidth(row []string, want int) []string {
	if len(row) == want {
		return row
	}
	if len(row) > want {
		return row[:want]
	}
	out := make([]string, want)
	copy(out, row)
	return out
}

func (st *Stream) rowToEvent(row []string) (*model.Event, bool) {
	now := time.Now
	if st.Now != nil {
		now = st.Now
	}
	ts := now()
	rec := map[string]string{}
	for i, h := range st.header {
		if i < len(row) {
			rec[strings.ToLower(strings.TrimSpace(h))] = row[i]
		}
	}
	if v, ok := pick(rec, "timestamp", "time", "date"); ok {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			ts = parsed
		}
	}

	ev := model.New(ts, model.KindEvent)
	ev.ParserID = ID
	ev.SourceFormat = "csv"
	ev.Raw = []byte(strings.Join(row, ","))
	ev.Extensions = map[string]model.FieldValue{}

	if v, ok := pick(rec, "host", "hostname"); ok {
		ev.Host.Name = v
	}
	if v, ok := pick(rec, "src", "source_ip", "src_ip"); ok {
		ev.Source.IP = v
	}
	if v, ok := pick(rec, "dst", "destination_ip", "dst_ip"); ok {
		ev.Destination.IP = v
	}
	if v, ok := pick(rec, "user", "username"); ok {
		ev.Principal.User = v
	}
	if v, ok := pick(rec, "action", "event_action"); ok {
		ev.Action = v
	}
	if v, ok := pick(rec, "src_port", "source_port"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			ev.Source.Port = p
		}
	}

	consumed := map[string]bool{"timestamp": true, "time": true, "date": true,
		"host": true, "hostname": true, "src": true, "source_ip": true, "src_ip": true,
		"dst": true, "destination_ip": true, "dst_ip": true, "user": true, "username": true,
		"action": true, "event_action": true, "src_port": true, "source_port": true}
	for k, v := range rec {
		if consumed[k] {
			continue
		}
		ev.Extensions[k] = model.Scalar(v)
	}
	if len(ev.Extensions) == 0 {
		ev.Extensions = nil
	}
	return ev, true
}

func pick(rec map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// splitCSVLine is a minimal quoted-CSV splitter; full RFC4180 embedded
// newlines are out of scope for line-oriented ingest (§4.4 frames are
// already newline-delimited upstream).
func splitCSVLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
