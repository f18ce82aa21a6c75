// Package sigma implements the Sigma-style rule matcher of §4.5a: a YAML
// rule loader, a field/modifier matcher, and the parenthesis-free
// condition-language evaluator. Grounded on gravwell's config package
// convention of a typed struct decoded from disk plus an atomically
// swappable in-memory set (mirroring how gravwell's ingest muxer treats
// its tag/config set as swap-on-reload), generalized here from config
// reload to rule-file reload.
package sigma

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SushanthKS06/IsoLog/internal/ierrors"
	"github.com/SushanthKS06/IsoLog/internal/model"
)

type yamlRule struct {
	Title       string                 `yaml:"title"`
	ID          string                 `yaml:"id"`
	Description string                 `yaml:"description"`
	Level       string                 `yaml:"level"`
	Tags        []string               `yaml:"tags"`
	Detection   map[string]interface{} `yaml:"detection"`
}

// LoadDir parses every .yml/.yaml file under dir into a Rule. A
// malformed file is skipped (RuleLoadError policy: "skip rule; log with
// file name; others continue") rather than aborting the whole load; the
// caller receives both the successfully loaded rules and the per-file
// errors so it can log them.
func LoadDir(dir string) ([]*model.Rule, []error) {
	var rules []*model.Rule
	var errs []error

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}
		r, perr := LoadFile(path)
		if perr != nil {
			errs = append(errs, ierrors.New(ierrors.KindRuleLoad, fmt.Errorf("%s: %w", path, perr)))
			return nil
		}
		rules = append(rules, r)
		return nil
	})
	return rules, errs
}

// LoadFile parses a single rule file.
func LoadFile(path string) (*model.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var yr yamlRule
	if err := yaml.Unmarshal(data, &yr); err != nil {
		return nil, err
	}
	if yr.Title == "" || yr.Detection == nil {
		return nil, fmt.Errorf("rule missing title or detection section")
	}
	condition, _ := yr.Detection["condition"].(string)
	if condition == "" {
		return nil, fmt.Errorf("rule missing detection.condition")
	}

	r := &model.Rule{
		ID:          yr.ID,
		Title:       yr.Title,
		Description: yr.Description,
		Level:       yr.Level,
		Tags:        yr.Tags,
		Condition:   condition,
		SourceFile:  path,
		Selections:  map[string]model.Selection{},
	}
	for name, raw := range yr.Detection {
		if name == "condition" {
			continue
		}
		r.Selections[name] = parseSelectionValue(raw)
	}
	return r, nil
}

func parseSelectionValue(v interface{}) model.Selection {
	switch t := v.(type) {
	case map[string]interface{}:
		return model.Selection{Fields: parseFieldMap(t)}
	case []interface{}:
		subs := make([]model.Selection, 0, len(t))
		for _, item := range t {
			subs = append(subs, parseSelectionValue(item))
		}
		return model.Selection{Any: subs}
	default:
		return model.Selection{}
	}
}

func parseFieldMap(m map[string]interface{}) []model.FieldMatch {
	out := make([]model.FieldMatch, 0, len(m))
	for k, v := range m {
		parts := strings.Split(k, "|")
		field := parts[0]
		mods := parts[1:]
		out = append(out, model.FieldMatch{Field: field, Modifiers: mods, Patterns: toPatterns(v)})
	}
	return out
}

func toPatterns(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case int:
		return []string{strconv.Itoa(t)}
	default:
		return []string{fmt.Sprint(t)}
	}
}
