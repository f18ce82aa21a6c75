package parsers

import (
	"errors"
	"sort"
	"sync/atomic"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

var ErrUnknownParser = errors.New("no parser registered with that id")

type registered struct {
	p        Parser
	priority int
}

// table is the immutable snapshot swapped atomically on (re)registration,
// recovering the "two-level (id -> parser) mapping plus an ordered
// priority vector" design note for dynamic registration.
type table struct {
	byID    map[string]registered
	ordered []registered // sorted by priority ascending; the order among equal priorities is not defined
}

// Registry maintains the ordered set of format parsers and dispatches
// detection/parsing across them (§4.2). Registration is expected only at
// startup and on hot-reload; concurrent reads never block each other or a
// concurrent swap, since readers only ever dereference the current
// snapshot pointer.
type Registry struct {
	cur atomic.Pointer[table]
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.cur.Store(&table{byID: map[string]registered{}})
	return r
}

// Register inserts a parser at the given priority; lower priority wins
// ties at detection time (first match wins). Safe to call concurrently
// with Detect/Parse from other goroutines.
func (r *Registry) Register(p Parser, priority int) {
	old := r.cur.Load()
	next := &table{byID: make(map[string]registered, len(old.byID)+1)}
	for k, v := range old.byID {
		next.byID[k] = v
	}
	rg := registered{p: p, priority: priority}
	next.byID[p.ID()] = rg

	ordered := make([]registered, 0, len(next.byID))
	for _, v := range next.byID {
		ordered = append(ordered, v)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].priority < ordered[j].priority
	})
	next.ordered = ordered
	r.cur.Store(next)
}

// Reload atomically replaces the entire parser set, used when the parser
// set is rebuilt wholesale (hot-reload). Each entry supplies its own
// priority.
func (r *Registry) Reload(entries map[Parser]int) {
	next := &table{byID: make(map[string]registered, len(entries))}
	for p, pr := range entries {
		next.byID[p.ID()] = registered{p: p, priority: pr}
	}
	ordered := make([]registered, 0, len(next.byID))
	for _, v := range next.byID {
		ordered = append(ordered, v)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].priority < ordered[j].priority
	})
	next.ordered = ordered
	r.cur.Store(next)
}

// Detect returns the first registered parser (in priority order) whose
// CanParse reports true, or nil if none recognize the input.
func (r *Registry) Detect(raw []byte) Parser {
	t := r.cur.Load()
	for _, rg := range t.ordered {
		if rg.p.CanParse(raw) {
			return rg.p
		}
	}
	return nil
}

// Parse dispatches directly to parserID if supplied; otherwise it detects
// then parses. A parser that rejects or fails on the input yields
// (nil, false), not an error, per §4.2.
func (r *Registry) Parse(raw []byte, parserID string, hint SourceHint) (*model.Event, bool) {
	t := r.cur.Load()
	var p Parser
	if parserID != "" {
		rg, ok := t.byID[parserID]
		if !ok {
			return nil, false
		}
		p = rg.p
	} else {
		for _, rg := range t.ordered {
			if rg.p.CanParse(raw) {
				p = rg.p
				break
			}
		}
		if p == nil {
			return nil, false
		}
	}
	return p.Parse(raw, hint)
}

// ParserIDs returns the registered parser identifiers in priority order,
// mainly for diagnostics and tests.
func (r *Registry) ParserIDs() []string {
	t := r.cur.Load()
	ids := make([]string, 0, len(t.ordered))
	for _, rg := range t.ordered {
		ids = append(ids, rg.p.ID())
	}
	return ids
}
