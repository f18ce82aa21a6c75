package model

import "fmt"

// FieldValueKind tags the variant held by a FieldValue, replacing the
// duck-typed field access of the original parsers (Design Note: "Lazy
// duck-typed field access in parsers").
type FieldValueKind int

const (
	FieldScalar FieldValueKind = iota
	FieldList
	FieldMap
)

// FieldValue is an explicit tagged-variant value for extension fields that
// don't fit the closed Event schema. Parsers build these directly instead
// of stuffing arbitrary interface{} into a map and hoping callers guess
// the dynamic type correctly.
type FieldValue struct {
	Kind FieldValueKind
	Str  string
	List []FieldValue
	Map  map[string]FieldValue
}

func Scalar(s string) FieldValue {
	return FieldValue{Kind: FieldScalar, Str: s}
}

func ScalarAny(v interface{}) FieldValue {
	return Scalar(fmt.Sprintf("%v", v))
}

func List(vs ...FieldValue) FieldValue {
	return FieldValue{Kind: FieldList, List: vs}
}

func Map(m map[string]FieldValue) FieldValue {
	return FieldValue{Kind: FieldMap, Map: m}
}

// Interface returns the value as a plain Go value, used by rule matching
// and JSON export.
func (f FieldValue) Interface() interface{} {
	switch f.Kind {
	case FieldList:
		out := make([]interface{}, len(f.List))
		for i, v := range f.List {
			out[i] = v.Interface()
		}
		return out
	case FieldMap:
		out := make(map[string]interface{}, len(f.Map))
		for k, v := range f.Map {
			out[k] = v.Interface()
		}
		return out
	default:
		return f.Str
	}
}

// Flatten dot-flattens a FieldValue into the canonical-serialization leaf
// set, as required by §4.1's extension-field encoding rule. A scalar
// produces one leaf at prefix; a map recurses with "prefix.key"; a list
// recurses with "prefix.N".
func (f FieldValue) Flatten(prefix string, out map[string]string) {
	switch f.Kind {
	case FieldMap:
		for k, v := range f.Map {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			v.Flatten(key, out)
		}
	case FieldList:
		for i, v := range f.List {
			key := fmt.Sprintf("%s.%d", prefix, i)
			v.Flatten(key, out)
		}
	default:
		out[prefix] = f.Str
	}
}
