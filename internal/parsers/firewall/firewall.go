// Package firewall implements the firewall format parser of §4.3:
// iptables SRC=/DST=/PROTO=/SPT=/DPT= syntax, Windows-Firewall
// space-separated tuples, and a generic key=value fallback. drop/block/
// reject/deny map to action=connection_blocked, outcome=failure.
package firewall

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

const ID = "firewall"

var kvPair = regexp.MustCompile(`(\w+)=(\S+)`)

var blockWords = []string{"drop", "block", "reject", "deny"}

type Format struct {
	Now func() time.Time
}

func New() *Format { return &Format{Now: time.Now} }

func (f *Format) ID() string { return ID }

func (f *Format) CanParse(raw []byte) bool {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return false
	}
	upper := strings.ToUpper(string(s))
	if strings.Contains(upper, "SRC=") && strings.Contains(upper, "PROTO=") {
		return true
	}
	if isWindowsFirewallTuple(string(s)) {
		return true
	}
	return kvPair.Match(s) && containsAny(strings.ToLower(string(s)), blockWords)
}

func (f *Format) Parse(raw []byte, hint parsers.SourceHint) (*model.Event, bool) {
	s := string(bytes.TrimSpace(raw))
	if s == "" {
		return nil, false
	}

	ev := model.New(f.Now(), model.KindEvent)
	ev.Raw = raw
	ev.ParserID = ID
	ev.SourceFormat = "firewall"
	ev.Categories = append(ev.Categories, model.CategoryNetwork)
	ev.Extensions = map[string]model.FieldValue{}

	if isWindowsFirewallTuple(s) {
		parseWindowsTuple(ev, s)
	} else {
		parseKV(ev, s)
	}

	if ev.Action == "" {
		return nil, false
	}
	if len(ev.Extensions) == 0 {
		ev.Extensions = nil
	}
	return ev, true
}

func parseKV(ev *model.Event, s string) {
	kv := map[string]string{}
	for _, mm := range kvPair.FindAllStringSubmatch(s, -1) {
		kv[strings.ToUpper(mm[1])] = mm[2]
	}
	if v, ok := kv["SRC"]; ok {
		ev.Source.IP = v
	}
	if v, ok := kv["DST"]; ok {
		ev.Destination.IP = v
	}
	if v, ok := kv["SPT"]; ok {
		if p, err := strconv.Atoi(v); err == nil {
			ev.Source.Port = p
		}
	}
	if v, ok := kv["DPT"]; ok {
		if p, err := strconv.Atoi(v); err == nil {
			ev.Destination.Port = p
		}
	}
	if v, ok := kv["PROTO"]; ok {
		ev.Extensions["protocol"] = model.Scalar(v)
	}
	for k, v := range kv {
		lk := strings.ToLower(k)
		if lk == "src" || lk == "dst" || lk == "spt" || lk == "dpt" || lk == "proto" {
			continue
		}
		ev.Extensions[lk] = model.Scalar(v)
	}

	lower := strings.ToLower(s)
	if containsAny(lower, blockWords) {
		ev.Action = "connection_blocked"
		ev.Outcome = model.OutcomeFailure
	} else {
		ev.Action = "connection_allowed"
		ev.Outcome = model.OutcomeSuccess
	}
}

// isWindowsFirewallTuple recognizes the Windows Firewall log's
// space-separated field layout:
// date time action protocol src-ip dst-ip src-port dst-port ...
var winTupleRe = regexp.MustCompile(`(?i)^\S+\s+\S+\s+(ALLOW|DROP|BLOCK)\s+(TCP|UDP|ICMP)\s+(\S+)\s+(\S+)\s+(\d+|-)\s+(\d+|-)`)

func isWindowsFirewallTuple(s string) bool {
	return winTupleRe.MatchString(s)
}

func parseWindowsTuple(ev *model.Event, s string) {
	mm := winTupleRe.FindStringSubmatch(s)
	if mm == nil {
		return
	}
	action, proto, src, dst, sport, dport := mm[1], mm[2], mm[3], mm[4], mm[5], mm[6]
	ev.Source.IP = src
	ev.Destination.IP = dst
	if p, err := strconv.Atoi(sport); err == nil {
		ev.Source.Port = p
	}
	if p, err := strconv.Atoi(dport); err == nil {
		ev.Destination.Port = p
	}
	ev.Extensions["protocol"] = model.Scalar(proto)
	if strings.EqualFold(action, "ALLOW") {
		ev.Action = "connection_allowed"
		ev.Outcome = model.OutcomeSuccess
	} else {
		ev.Action = "connection_blocked"
		ev.Outcome = model.OutcomeFailure
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
