package model

// Rule is a loaded Sigma-style detection rule (§3, §4.5a). Rules are
// immutable once loaded; the rule loader swaps the whole set atomically
// on hot-reload rather than mutating one in place (Design Note: "Dynamic
// registration of parsers/rules").
type Rule struct {
	ID          string
	Title       string
	Description string
	Level       string
	Tags        []string

	// Selections maps a selection name to its expression tree, and
	// Condition is the textual condition over those names (§4.5a).
	Selections map[string]Selection
	Condition  string

	// SourceFile records the rule file this rule was loaded from, for
	// RuleLoadError logging and hot-reload diffing.
	SourceFile string
}

// Selection is a parsed selection expression: a field-matcher mapping,
// an OR-of-subselections list, or a nested combination of both.
type Selection struct {
	// Fields holds field -> FieldMatch pairs; a selection made only of
	// Fields is an implicit AND of all of them.
	Fields []FieldMatch
	// Any holds nested sub-selections that are OR'd together (a bare
	// list value under a selection name).
	Any []Selection
}

// FieldMatch is one "field|modifier1|modifier2: pattern" entry.
type FieldMatch struct {
	Field     string
	Modifiers []string
	// Patterns holds one or more alternative patterns (a YAML list value
	// under a field means any-of).
	Patterns []string
}
