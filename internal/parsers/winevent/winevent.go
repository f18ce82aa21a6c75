// Package winevent implements the Windows Event format parser of §4.3:
// JSON export, text export, or a minimal XML envelope, mapping
// Security/Sysmon event IDs to (action, category, outcome) via a fixed
// table while preserving all original fields in extensions.
package winevent

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

const ID = "winevent"

type eventIDMapping struct {
	action   string
	category model.Category
	outcome  model.Outcome
}

// eventIDTable maps well-known Security/Sysmon event IDs, grounded on
// original_source's mapping.py table.
var eventIDTable = map[int]eventIDMapping{
	4624: {"logon", model.CategoryAuthentication, model.OutcomeSuccess},
	4625: {"logon", model.CategoryAuthentication, model.OutcomeFailure},
	4634: {"logoff", model.CategoryAuthentication, model.OutcomeSuccess},
	4648: {"explicit_logon", model.CategoryAuthentication, model.OutcomeSuccess},
	4672: {"privileged_logon", model.CategoryAuthentication, model.OutcomeSuccess},
	4688: {"process_created", model.CategoryProcess, model.OutcomeSuccess},
	4689: {"process_terminated", model.CategoryProcess, model.OutcomeSuccess},
	4720: {"account_created", model.CategoryIAM, model.OutcomeSuccess},
	4722: {"account_enabled", model.CategoryIAM, model.OutcomeSuccess},
	4724: {"password_reset", model.CategoryIAM, model.OutcomeSuccess},
	4725: {"account_disabled", model.CategoryIAM, model.OutcomeSuccess},
	4726: {"account_deleted", model.CategoryIAM, model.OutcomeSuccess},
	4738: {"account_changed", model.CategoryIAM, model.OutcomeSuccess},
	4768: {"kerberos_tgt_requested", model.CategoryAuthentication, model.OutcomeSuccess},
	4769: {"kerberos_service_ticket", model.CategoryAuthentication, model.OutcomeSuccess},
	5140: {"network_share_accessed", model.CategoryFile, model.OutcomeSuccess},
	5156: {"connection_allowed", model.CategoryNetwork, model.OutcomeSuccess},
	5157: {"connection_blocked", model.CategoryNetwork, model.OutcomeFailure},
	1:    {"sysmon_process_created", model.CategoryProcess, model.OutcomeSuccess},
	3:    {"sysmon_network_connection", model.CategoryNetwork, model.OutcomeSuccess},
	5:    {"sysmon_process_terminated", model.CategoryProcess, model.OutcomeSuccess},
	7:    {"sysmon_image_loaded", model.CategoryProcess, model.OutcomeSuccess},
	11:   {"sysmon_file_created", model.CategoryFile, model.OutcomeSuccess},
	13:   {"sysmon_registry_set", model.CategoryRegistry, model.OutcomeSuccess},
	22:   {"sysmon_dns_query", model.CategoryNetwork, model.OutcomeSuccess},
}

type Format struct {
	Now func() time.Time
}

func New() *Format { return &Format{Now: time.Now} }

func (f *Format) ID() string { return ID }

var xmlEnvelope = regexp.MustCompile(`(?is)<Event[ >].*EventID`)
var textExportID = regexp.MustCompile(`(?im)^\s*Event ID:\s*(\d+)`)

func (f *Format) CanParse(raw []byte) bool {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return false
	}
	if s[0] == '{' {
		var v map[string]interface{}
		if json.Unmarshal(s, &v) == nil {
			_, hasID := findAny(v, "EventID", "event_id", "eventid")
			return hasID
		}
		return false
	}
	if xmlEnvelope.Match(s) {
		return true
	}
	return textExportID.Match(s)
}

func (f *Format) Parse(raw []byte, hint parsers.SourceHint) (*model.Event, bool) {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return nil, false
	}
	switch {
	case s[0] == '{':
		return f.parseJSON(s, raw)
	case xmlEnvelope.Match(s):
		return f.parseXML(s, raw)
	default:
		return f.parseText(string(s), raw)
	}
}

type xmlEvent struct {
	System struct {
		EventID   int    `xml:"EventID"`
		Computer  string `xml:"Computer"`
		TimeCreated struct {
			SystemTime string `xml:"SystemTime,attr"`
		} `xml:"TimeCreated"`
	} `xml:"System"`
	EventData struct {
		Data []struct {
			Name  string `xml:"Name,attr"`
			Value string `xml:",chardata"`
		} `xml:"Data"`
	} `xml:"EventData"`
}

func (f *Format) parseXML(raw []byte, orig []byte) (*model.Event, bool) {
	var xe xmlEvent
	if err := xml.Unmarshal(raw, &xe); err != nil {
		return nil, false
	}
	ts := f.Now()
	if t, err := time.Parse(time.RFC3339Nano, xe.System.TimeCreated.SystemTime); err == nil {
		ts = t
	}
	ev := model.New(ts, model.KindEvent)
	ev.Raw = orig
	ev.ParserID = ID
	ev.SourceFormat = "winevent_xml"
	ev.Host.Name = xe.System.Computer
	ext := map[string]model.FieldValue{}
	for _, d := range xe.EventData.Data {
		ext[d.Name] = model.Scalar(d.Value)
	}
	applyMapping(ev, xe.System.EventID)
	ev.Extensions = ext
	return ev, true
}

func (f *Format) parseJSON(raw []byte, orig []byte) (*model.Event, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	idVal, ok := findAny(obj, "EventID", "event_id", "eventid")
	if !ok {
		return nil, false
	}
	eventID := toInt(idVal)

	ts := f.Now()
	if v, ok := findAny(obj, "TimeCreated", "time_created", "@timestamp", "timestamp"); ok {
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				ts = t
			}
		}
	}
	ev := model.New(ts, model.KindEvent)
	ev.Raw = orig
	ev.ParserID = ID
	ev.SourceFormat = "winevent_json"
	if v, ok := findAny(obj, "Computer", "computer", "hostname"); ok {
		ev.Host.Name = toStr(v)
	}
	applyMapping(ev, eventID)

	ext := make(map[string]model.FieldValue, len(obj))
	for k, v := range obj {
		ext[k] = toFieldValue(v)
	}
	ev.Extensions = ext
	return ev, true
}

func (f *Format) parseText(s string, orig []byte) (*model.Event, bool) {
	mm := textExportID.FindStringSubmatch(s)
	if mm == nil {
		return nil, false
	}
	id, _ := strconv.Atoi(mm[1])
	ev := model.New(f.Now(), model.KindEvent)
	ev.Raw = orig
	ev.ParserID = ID
	ev.SourceFormat = "winevent_text"
	applyMapping(ev, id)

	ext := map[string]model.FieldValue{}
	for _, line := range strings.Split(s, "\n") {
		if i := strings.Index(line, ":"); i > 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			if k != "" && v != "" {
				ext[k] = model.Scalar(v)
			}
		}
	}
	ev.Extensions = ext
	return ev, true
}

func applyMapping(ev *model.Event, eventID int) {
	if m, ok := eventIDTable[eventID]; ok {
		ev.Action = m.action
		ev.Categories = append(ev.Categories, m.category)
		ev.Outcome = m.outcome
	}
}

func findAny(obj map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, want := range keys {
		for k, v := range obj {
			if strings.EqualFold(k, want) {
				return v, true
			}
		}
	}
	return nil, false
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}

func toStr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toFieldValue(v interface{}) model.FieldValue {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]model.FieldValue, len(t))
		for k, vv := range t {
			m[k] = toFieldValue(vv)
		}
		return model.Map(m)
	case []interface{}:
		l := make([]model.FieldValue, len(t))
		for i, vv := range t {
			l[i] = toFieldValue(vv)
		}
		return model.List(l...)
	case string:
		return model.Scalar(t)
	default:
		return model.ScalarAny(t)
	}
}
