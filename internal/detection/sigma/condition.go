package sigma

import (
	"strings"
)

// evalCondition evaluates a rule's textual condition against the
// per-selection match results (§4.5a): bare selection name; `not <cond>`;
// `<a> and <b>`; `<a> or <b>`; `all of <prefix>*`; `1 of <prefix>*`.
// Operators are evaluated strictly left to right at a single precedence
// level — the original grammar has no parentheses.
func evalCondition(condition string, results map[string]bool) bool {
	tokens := strings.Fields(condition)
	if len(tokens) == 0 {
		return false
	}
	i := 0
	acc := evalOperand(tokens, &i, results)
	for i < len(tokens) {
		op := strings.ToLower(tokens[i])
		i++
		rhs := evalOperand(tokens, &i, results)
		switch op {
		case "and":
			acc = acc && rhs
		case "or":
			acc = acc || rhs
		}
	}
	return acc
}

func evalOperand(tokens []string, i *int, results map[string]bool) bool {
	if *i >= len(tokens) {
		return false
	}
	tok := tokens[*i]
	lower := strings.ToLower(tok)

	switch lower {
	case "not":
		*i++
		return !evalOperand(tokens, i, results)
	case "all":
		if *i+1 < len(tokens) && strings.ToLower(tokens[*i+1]) == "of" {
			prefix := ""
			if *i+2 < len(tokens) {
				prefix = tokens[*i+2]
			}
			*i += 3
			return allOf(prefix, results)
		}
	case "1":
		if *i+1 < len(tokens) && strings.ToLower(tokens[*i+1]) == "of" {
			prefix := ""
			if *i+2 < len(tokens) {
				prefix = tokens[*i+2]
			}
			*i += 3
			return oneOf(prefix, results)
		}
	}

	*i++
	return results[tok]
}

func allOf(pattern string, results map[string]bool) bool {
	prefix := strings.TrimSuffix(pattern, "*")
	matched := false
	for name, ok := range results {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		matched = true
		if !ok {
			return false
		}
	}
	return matched
}

func oneOf(pattern string, results map[string]bool) bool {
	prefix := strings.TrimSuffix(pattern, "*")
	for name, ok := range results {
		if strings.HasPrefix(name, prefix) && ok {
			return true
		}
	}
	return false
}
