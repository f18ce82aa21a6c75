// Package jsonline implements the JSON-line format parser of §4.3: a
// top-level object recognizing ECS-like nested sub-objects (source,
// destination, user, process, file, event) plus a probe list of common
// flat alternatives, with unknown keys flattened into extensions.
package jsonline

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/SushanthKS06/IsoLog/internal/model"
	"github.com/SushanthKS06/IsoLog/internal/parsers"
)

const ID = "jsonline"

type Format struct {
	Now func() time.Time
}

func New() *Format { return &Format{Now: time.Now} }

func (f *Format) ID() string { return ID }

func (f *Format) CanParse(raw []byte) bool {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 || s[0] != '{' {
		return false
	}
	var v map[string]interface{}
	return json.Unmarshal(s, &v) == nil
}

var flatTimestampKeys = []string{"timestamp", "@timestamp", "time"}
var flatMessageKeys = []string{"msg", "message", "log"}
var flatSourceIPKeys = []string{"clientIp", "client_ip", "source_ip", "src_ip"}

func (f *Format) Parse(raw []byte, hint parsers.SourceHint) (*model.Event, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(raw), &obj); err != nil {
		return nil, false
	}

	ts := f.Now()
	if v, ok := firstString(obj, flatTimestampKeys...); ok {
		if parsed, err := parseAnyTime(v); err == nil {
			ts = parsed
		}
	}

	ev := model.New(ts, model.KindEvent)
	ev.Raw = raw
	ev.ParserID = ID
	ev.SourceFormat = "json"
	ev.Extensions = map[string]model.FieldValue{}

	consumed := map[string]bool{}
	for _, k := range flatTimestampKeys {
		consumed[k] = true
	}

	if src, ok := subObject(obj, "source"); ok {
		ev.Source.IP = stringField(src, "ip")
		ev.Source.Port = intField(src, "port")
		consumed["source"] = true
	} else if ip, ok := firstString(obj, flatSourceIPKeys...); ok {
		ev.Source.IP = ip
		for _, k := range flatSourceIPKeys {
			consumed[k] = true
		}
	}

	if dst, ok := subObject(obj, "destination"); ok {
		ev.Destination.IP = stringField(dst, "ip")
		ev.Destination.Port = intField(dst, "port")
		consumed["destination"] = true
	}

	if usr, ok := subObject(obj, "user"); ok {
		ev.Principal.User = stringField(usr, "name")
		ev.Principal.Domain = stringField(usr, "domain")
		consumed["user"] = true
	}

	if proc, ok := subObject(obj, "process"); ok {
		ev.Process.Name = stringField(proc, "name")
		ev.Process.PID = intField(proc, "pid")
		ev.Process.CommandLine = stringField(proc, "command_line")
		consumed["process"] = true
	}

	if file, ok := subObject(obj, "file"); ok {
		ev.File.Path = stringField(file, "path")
		ev.File.Name = stringField(file, "name")
		consumed["file"] = true
	}

	if evt, ok := subObject(obj, "event"); ok {
		ev.Action = stringField(evt, "action")
		if outcome := stringField(evt, "outcome"); outcome != "" {
			ev.Outcome = model.Outcome(outcome)
		}
		for _, c := range stringListField(evt, "category") {
			cat := model.Category(c)
			if model.ValidCategory(cat) {
				ev.Categories = append(ev.Categories, cat)
			}
		}
		consumed["event"] = true
	}

	if host, ok := subObject(obj, "host"); ok {
		ev.Host.Name = stringField(host, "name")
		ev.Host.IP = stringField(host, "ip")
		consumed["host"] = true
	}

	if ev.Action == "" {
		if v, ok := firstString(obj, "action"); ok {
			ev.Action = v
			consumed["action"] = true
		}
	}
	if msg, ok := firstString(obj, flatMessageKeys...); ok {
		ev.Extensions["message"] = model.Scalar(msg)
		for _, k := range flatMessageKeys {
			consumed[k] = true
		}
	}

	for k, v := range obj {
		if consumed[k] {
			continue
		}
		ev.Extensions[k] = toFieldValue(v)
	}
	if len(ev.Extensions) == 0 {
		ev.Extensions = nil
	}
	return ev, true
}

func subObject(obj map[string]interface{}, key string) (map[string]interface{}, bool) {
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			if m, ok := v.(map[string]interface{}); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func firstString(obj map[string]interface{}, keys ...string) (string, bool) {
	for _, want := range keys {
		for k, v := range obj {
			if strings.EqualFold(k, want) {
				if s, ok := v.(string); ok && s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}

func stringField(obj map[string]interface{}, key string) string {
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func stringListField(obj map[string]interface{}, key string) []string {
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			switch t := v.(type) {
			case string:
				return []string{t}
			case []interface{}:
				out := make([]string, 0, len(t))
				for _, e := range t {
					if s, ok := e.(string); ok {
						out = append(out, s)
					}
				}
				return out
			}
		}
	}
	return nil
}

func intField(obj map[string]interface{}, key string) int {
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			switch t := v.(type) {
			case float64:
				return int(t)
			case string:
				if n, err := strconv.Atoi(t); err == nil {
					return n
				}
			}
		}
	}
	return 0
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

func parseAnyTime(s string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000000Z", "2006-01-02 15:04:05"}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
