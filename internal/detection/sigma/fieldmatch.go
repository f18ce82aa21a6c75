package sigma

import (
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// fieldValues resolves a (possibly dotted) field name against an event:
// first the nested schema fields named in §4.5a, then a case-insensitive
// top-level extensions key, then a flattened-extensions dotted lookup;
// the literal field "keywords" always matches the original raw message.
func fieldValues(ev *model.Event, field string) []string {
	switch strings.ToLower(field) {
	case "keywords":
		if msg, ok := ev.Extensions["message"]; ok {
			if s, ok := msg.Interface().(string); ok {
				return []string{s}
			}
		}
		return []string{string(ev.Raw)}
	case "action":
		return nonEmpty(ev.Action)
	case "outcome":
		return nonEmpty(string(ev.Outcome))
	case "host.name":
		return nonEmpty(ev.Host.Name)
	case "host.ip":
		return nonEmpty(ev.Host.IP)
	case "source.ip":
		return nonEmpty(ev.Source.IP)
	case "source.port":
		return intOrNil(ev.Source.Port)
	case "destination.ip":
		return nonEmpty(ev.Destination.IP)
	case "destination.port":
		return intOrNil(ev.Destination.Port)
	case "user.name":
		return nonEmpty(ev.Principal.User)
	case "user.domain":
		return nonEmpty(ev.Principal.Domain)
	case "process.name":
		return nonEmpty(ev.Process.Name)
	case "process.pid":
		return intOrNil(ev.Process.PID)
	case "process.command_line":
		return nonEmpty(ev.Process.CommandLine)
	case "file.path":
		return nonEmpty(ev.File.Path)
	case "file.name":
		return nonEmpty(ev.File.Name)
	case "categories":
		out := make([]string, 0, len(ev.Categories))
		for _, c := range ev.Categories {
			out = append(out, string(c))
		}
		return out
	}

	if ev.Extensions != nil {
		for k, v := range ev.Extensions {
			if strings.EqualFold(k, field) {
				return flattenToStrings(v)
			}
		}
		flat := map[string]string{}
		for k, v := range ev.Extensions {
			v.Flatten(k, flat)
		}
		for k, v := range flat {
			if strings.EqualFold(k, field) {
				return []string{v}
			}
		}
	}
	return nil
}

func flattenToStrings(v model.FieldValue) []string {
	flat := map[string]string{}
	v.Flatten("v", flat)
	out := make([]string, 0, len(flat))
	for _, s := range flat {
		out = append(out, s)
	}
	return out
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func intOrNil(n int) []string {
	if n == 0 {
		return nil
	}
	return []string{strconv.Itoa(n)}
}

// matchPattern reports whether value matches pattern under the given
// modifiers. Matching is always case-insensitive — §4.5a lists "i" as
// the default rather than an opt-in, so there is no case-sensitive mode
// to fall back to. A literal '*' anywhere in the pattern is compiled as
// a glob (gobwas/glob, the same wildcard library gravwell uses for its
// tag/file filters) rather than handled by ad-hoc prefix/suffix checks.
func matchPattern(value string, modifiers []string, pattern string) bool {
	v := strings.ToLower(value)
	p := strings.ToLower(pattern)

	if strings.Contains(p, "*") {
		g, err := glob.Compile(p)
		if err == nil {
			return g.Match(v)
		}
	}

	for _, m := range modifiers {
		switch m {
		case "contains":
			return strings.Contains(v, p)
		case "startswith":
			return strings.HasPrefix(v, p)
		case "endswith":
			return strings.HasSuffix(v, p)
		}
	}
	return v == p
}

// evaluateFieldMatch reports whether any of fm's patterns match any of
// the field's resolved values.
func evaluateFieldMatch(ev *model.Event, fm model.FieldMatch) bool {
	values := fieldValues(ev, fm.Field)
	if len(values) == 0 {
		return false
	}
	for _, val := range values {
		for _, pat := range fm.Patterns {
			if matchPattern(val, fm.Modifiers, pat) {
				return true
			}
		}
	}
	return false
}

// evaluateSelection reports whether sel matches ev, and the matched
// field->pattern context for the detection's matched_fields.
func evaluateSelection(ev *model.Event, sel model.Selection) (bool, map[string]string) {
	if len(sel.Fields) > 0 {
		matched := map[string]string{}
		for _, fm := range sel.Fields {
			if !evaluateFieldMatch(ev, fm) {
				return false, nil
			}
			matched[fm.Field] = strings.Join(fm.Patterns, ",")
		}
		return true, matched
	}
	if len(sel.Any) > 0 {
		for _, sub := range sel.Any {
			if ok, matched := evaluateSelection(ev, sub); ok {
				return true, matched
			}
		}
		return false, nil
	}
	return false, nil
}
