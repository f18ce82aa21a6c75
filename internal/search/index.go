// Package search implements the in-memory inverted index of §4.9 over a
// fixed field set, with periodic bbolt-backed commit so the index can be
// rebuilt without a full store replay after a restart.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

// Field names one member of the fixed, indexed field set (§4.9).
type Field string

const (
	FieldID        Field = "id"
	FieldType      Field = "type"
	FieldTimestamp Field = "timestamp"
	FieldHost      Field = "host"
	FieldUser      Field = "user"
	FieldSourceIP  Field = "source_ip"
	FieldMessage   Field = "message"
	FieldAction    Field = "action"
	FieldSeverity  Field = "severity"
	FieldRuleName  Field = "rule_name"
	FieldMitre     Field = "mitre_techniques"
)

// Doc is one indexed record: a normalized event or a detection,
// flattened to the fixed field set.
type Doc struct {
	ID        string
	Type      string // "event" | "alert"
	Timestamp string
	Host      string
	User      string
	SourceIP  string
	Message   string
	Action    string
	Severity  string
	RuleName  string
	Mitre     []string
}

// postings maps a token to the set of doc IDs containing it.
type postings map[string]map[string]bool

// Index is the in-memory inverted index. mu guards every structure
// below: adds, deletes and Clear take the write lock, while Search,
// Suggest, Doc, Len and Store.Commit share the read lock.
type Index struct {
	mu     sync.RWMutex
	docs   map[string]*Doc
	fields map[Field]postings
}

func New() *Index {
	idx := &Index{
		docs:   map[string]*Doc{},
		fields: map[Field]postings{},
	}
	for _, f := range allFields {
		idx.fields[f] = postings{}
	}
	return idx
}

var allFields = []Field{
	FieldID, FieldType, FieldTimestamp, FieldHost, FieldUser, FieldSourceIP,
	FieldMessage, FieldAction, FieldSeverity, FieldRuleName, FieldMitre,
}

// DocFromEvent flattens a normalized event into a Doc.
func DocFromEvent(ev *model.Event) *Doc {
	msg := ""
	if m, ok := ev.Extensions["message"]; ok {
		if s, ok := m.Interface().(string); ok {
			msg = s
		}
	}
	return &Doc{
		ID:        ev.ID,
		Type:      "event",
		Timestamp: ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		Host:      ev.Host.Name,
		User:      ev.Principal.User,
		SourceIP:  ev.Source.IP,
		Message:   msg,
		Action:    ev.Action,
	}
}

// DocFromDetection flattens a detection into a Doc.
func DocFromDetection(d *model.Detection) *Doc {
	return &Doc{
		ID:        d.ID,
		Type:      "alert",
		Timestamp: d.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z"),
		Severity:  string(d.Severity),
		RuleName:  d.RuleName,
		Message:   d.Description,
		Mitre:     d.Techniques,
	}
}

// AddSingle indexes one doc (§4.9: "add-single").
func (idx *Index) AddSingle(d *Doc) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addLocked(d)
}

// AddBatch indexes many docs under one lock acquisition (§4.9: "add-batch").
func (idx *Index) AddBatch(docs []*Doc) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, d := range docs {
		idx.addLocked(d)
	}
}

func (idx *Index) addLocked(d *Doc) {
	idx.removeLocked(d.ID) // re-indexing an existing id replaces it
	idx.docs[d.ID] = d

	post := func(f Field, value string) {
		if value == "" {
			return
		}
		tokens := tokenize(value)
		if f == FieldMessage {
			tokens = tokenizeMessage(value)
		}
		for _, t := range tokens {
			set, ok := idx.fields[f][t]
			if !ok {
				set = map[string]bool{}
				idx.fields[f][t] = set
			}
			set[d.ID] = true
		}
	}

	post(FieldID, d.ID)
	post(FieldType, d.Type)
	post(FieldTimestamp, d.Timestamp)
	post(FieldHost, d.Host)
	post(FieldUser, d.User)
	post(FieldSourceIP, d.SourceIP)
	post(FieldMessage, d.Message)
	post(FieldAction, d.Action)
	post(FieldSeverity, d.Severity)
	post(FieldRuleName, d.RuleName)
	for _, m := range d.Mitre {
		post(FieldMitre, m)
	}
}

// DeleteByID removes a doc and every posting referencing it (§4.9:
// "delete-by-id").
func (idx *Index) DeleteByID(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) {
	if _, ok := idx.docs[id]; !ok {
		return
	}
	delete(idx.docs, id)
	for _, post := range idx.fields {
		for tok, set := range post {
			if set[id] {
				delete(set, id)
				if len(set) == 0 {
					delete(post, tok)
				}
			}
		}
	}
}

// Clear empties the index (§4.9: "clear").
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = map[string]*Doc{}
	idx.fields = map[Field]postings{}
	for _, f := range allFields {
		idx.fields[f] = postings{}
	}
}

// Query is a parsed multi-field search request: each clause is
// field:token, and all clauses are ANDed together (§4.9: "search with
// multi-field query parser"). An empty Field searches across message
// only, matching a bare keyword query.
type Query struct {
	Clauses []Clause
}

type Clause struct {
	Field Field
	Value string
}

// ParseQuery parses a query string of whitespace-separated terms, each
// either "field:value" or a bare term (implicitly field=message).
func ParseQuery(q string) Query {
	var clauses []Clause
	for _, term := range strings.Fields(q) {
		if field, value, ok := strings.Cut(term, ":"); ok && value != "" {
			clauses = append(clauses, Clause{Field: Field(field), Value: value})
		} else {
			clauses = append(clauses, Clause{Field: FieldMessage, Value: term})
		}
	}
	return Query{Clauses: clauses}
}

// Search evaluates q and returns matching doc IDs in a stable order
// (lexicographic by ID), most callers re-sorting by timestamp
// themselves against the event/detection store.
func (idx *Index) Search(q Query) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(q.Clauses) == 0 {
		return nil
	}

	var result map[string]bool
	for _, c := range q.Clauses {
		if c.Field == "" {
			c.Field = FieldMessage
		}
		tokens := tokenize(c.Value)
		if c.Field == FieldMessage {
			tokens = tokenizeMessage(c.Value)
		}
		matched := map[string]bool{}
		for _, t := range tokens {
			for id := range idx.fields[c.Field][t] {
				matched[id] = true
			}
		}
		if result == nil {
			result = matched
			continue
		}
		for id := range result {
			if !matched[id] {
				delete(result, id)
			}
		}
	}

	ids := make([]string, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Suggest returns up to limit tokens on field that start with prefix,
// sorted alphabetically (§4.9: "prefix suggestion over a field").
func (idx *Index) Suggest(f Field, prefix string, limit int) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	var out []string
	for tok := range idx.fields[f] {
		if strings.HasPrefix(tok, prefix) {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Doc returns the indexed Doc for id, if present.
func (idx *Index) Doc(id string) (*Doc, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	d, ok := idx.docs[id]
	return d, ok
}

// Len reports the number of indexed docs.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}
