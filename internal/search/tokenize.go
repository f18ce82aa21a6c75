package search

import (
	"strings"
	"unicode"
)

// tokenize lowercases and splits s on runs of non-alphanumeric
// characters, per §4.9 ("Tokens are lowercased").
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// stem is a minimal suffix-stripping stemmer applied only to the
// message field (§4.9): it strips a small fixed set of common English
// inflectional suffixes, the same "good enough, not linguistically
// complete" normalization shape as a Porter-stemmer-lite, without
// pulling in a stemming library — none exists anywhere in the example
// corpus, so this is a deliberate standard-library-only piece (DESIGN.md
// records the justification).
func stem(token string) string {
	switch {
	case strings.HasSuffix(token, "ies") && len(token) > 4:
		return token[:len(token)-3] + "y"
	case strings.HasSuffix(token, "sses") && len(token) > 5:
		return token[:len(token)-2]
	case strings.HasSuffix(token, "ing") && len(token) > 5:
		return token[:len(token)-3]
	case strings.HasSuffix(token, "edly") && len(token) > 6:
		return token[:len(token)-4]
	case strings.HasSuffix(token, "ed") && len(token) > 4:
		return token[:len(token)-2]
	case strings.HasSuffix(token, "es") && len(token) > 4:
		return token[:len(token)-2]
	case strings.HasSuffix(token, "s") && len(token) > 3 && !strings.HasSuffix(token, "ss"):
		return token[:len(token)-1]
	default:
		return token
	}
}

// tokenizeMessage tokenizes and stems, for the one field (§4.9: "message")
// that gets stemming analysis.
func tokenizeMessage(s string) []string {
	toks := tokenize(s)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = stem(t)
	}
	return out
}
