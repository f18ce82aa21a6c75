// Package parsers implements the pluggable format-parser registry (§4.2)
// and houses the built-in format parsers under its subpackages.
package parsers

import "github.com/SushanthKS06/IsoLog/internal/model"

// SourceHint carries ingest-side context (source tag and any per-frame
// metadata) that a parser may use to fill in fields the raw
// bytes alone don't carry (host identity for a tailed file, for
// instance).
type SourceHint struct {
	SourceTag  string
	Metadata   map[string]string
}

// Parser is implemented by every format parser. Parser-internal failures
// return (nil, false), never an error — a line a parser can't handle is
// simply not its format (Design Note: "Exceptions used for control flow
// inside parsers" replaced with Option-style returns).
type Parser interface {
	ID() string
	CanParse(raw []byte) bool
	Parse(raw []byte, hint SourceHint) (*model.Event, bool)
}
