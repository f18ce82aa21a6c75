package sigma

import (
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// Matcher holds the active rule set behind an atomically swappable
// pointer, per §3's "Rules are owned by the rule loader and shared
// read-only with matchers via a swap-on-reload reference" ownership
// rule.
type Matcher struct {
	rules atomic.Pointer[[]*model.Rule]
}

func NewMatcher() *Matcher {
	m := &Matcher{}
	empty := []*model.Rule{}
	m.rules.Store(&empty)
	return m
}

// Reload atomically replaces the whole rule set.
func (m *Matcher) Reload(rules []*model.Rule) {
	m.rules.Store(&rules)
}

// Rules returns the currently active rule set (read-only).
func (m *Matcher) Rules() []*model.Rule {
	return *m.rules.Load()
}

// Match evaluates every loaded rule against ev and returns one
// Detection per matching rule.
func (m *Matcher) Match(ev *model.Event) []*model.Detection {
	rules := *m.rules.Load()
	var out []*model.Detection
	for _, r := range rules {
		if d := matchRule(ev, r); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func matchRule(ev *model.Event, r *model.Rule) *model.Detection {
	results := make(map[string]bool, len(r.Selections))
	matchedFields := map[string]string{}
	for name, sel := range r.Selections {
		ok, fields := evaluateSelection(ev, sel)
		results[name] = ok
		if ok {
			for k, v := range fields {
				matchedFields[k] = v
			}
		}
	}
	if !evalCondition(r.Condition, results) {
		return nil
	}

	d := model.NewDetection(ev.ID, model.DetectionRule, severityFromLevel(r.Level))
	d.RuleID = r.ID
	d.RuleName = r.Title
	d.Description = r.Description
	d.MatchedFields = matchedFields
	d.Confidence = 1.0
	tactics, techniques := parseAttackTags(r.Tags)
	d.MitreTactics = tactics
	d.Techniques = techniques
	return d
}

func severityFromLevel(level string) model.Severity {
	switch strings.ToLower(level) {
	case "critical":
		return model.SeverityCritical
	case "high":
		return model.SeverityHigh
	case "medium":
		return model.SeverityMedium
	case "low":
		return model.SeverityLow
	default:
		return model.SeverityInformational
	}
}

var techniqueTag = regexp.MustCompile(`(?i)^t\d{4}(\.\d{3})?$`)

// parseAttackTags splits a rule's `attack.*` tags into lowercase tactic
// phase names and uppercase T####[.###] technique IDs, per §4.5a.
func parseAttackTags(tags []string) (tactics, techniques []string) {
	for _, t := range tags {
		rest := strings.TrimPrefix(strings.ToLower(t), "attack.")
		if rest == strings.ToLower(t) {
			continue // not an attack.* tag
		}
		if techniqueTag.MatchString(rest) {
			techniques = append(techniques, strings.ToUpper(rest))
		} else {
			tactics = append(tactics, rest)
		}
	}
	return tactics, techniques
}
