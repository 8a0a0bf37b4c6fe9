// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind tags the variant held by a [Value].
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindMap
	KindRef
)

// String returns a human-readable kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindRef:
		return "ref"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// refTypeTag is the value of the "_type" key that marks an encoded reference.
const refTypeTag = "Ref"

// Value is a schema-described field value: a tagged union of scalars, arrays,
// maps and references. The zero Value is Null.
//
// Values are treated as immutable. Helpers that transform a Value (such as
// [Value.MapRefs]) return fresh containers instead of mutating in place.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	arr  []Value
	m    map[string]Value
	ref  *Reference
}

// Reference is a shared sub-object embedded by value inside entities but
// persisted once, in its own collection, under its own id.
type Reference struct {
	// Collection is the collection the referenced object lives in.
	Collection string
	// ID identifies the referenced object within Collection.
	ID string
	// Fields is the embedded body. It may be empty when only the link is known.
	Fields map[string]Value
}

// Key returns the "collection/id" identity of the reference.
func (r Reference) Key() string {
	return r.Collection + "/" + r.ID
}

func Null() Value                  { return Value{} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Number(n float64) Value       { return Value{kind: KindNumber, n: n} }
func Int(i int64) Value            { return Value{kind: KindNumber, n: float64(i)} }
func String(s string) Value        { return Value{kind: KindString, s: s} }
func Array(items ...Value) Value   { return Value{kind: KindArray, arr: items} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }
func Ref(r Reference) Value        { return Value{kind: KindRef, ref: &r} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)            { return v.b, v.kind == KindBool }
func (v Value) AsNumber() (float64, bool)       { return v.n, v.kind == KindNumber }
func (v Value) AsString() (string, bool)        { return v.s, v.kind == KindString }
func (v Value) AsArray() ([]Value, bool)        { return v.arr, v.kind == KindArray }
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// AsRef returns the reference held by v.
func (v Value) AsRef() (Reference, bool) {
	if v.kind != KindRef || v.ref == nil {
		return Reference{}, false
	}
	return *v.ref, true
}

// Equal reports deep equality of two values.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return fieldsEqual(v.m, other.m)
	case KindRef:
		return v.ref.Collection == other.ref.Collection &&
			v.ref.ID == other.ref.ID &&
			fieldsEqual(v.ref.Fields, other.ref.Fields)
	}
	return false
}

func fieldsEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

// Refs collects the references reachable from v. The walk does not descend
// into a reference's own body: links held by a reference belong to that
// reference's record.
func (v Value) Refs() []Reference {
	var out []Reference
	v.collectRefs(&out)
	return out
}

func (v Value) collectRefs(out *[]Reference) {
	switch v.kind {
	case KindRef:
		*out = append(*out, *v.ref)
	case KindArray:
		for _, item := range v.arr {
			item.collectRefs(out)
		}
	case KindMap:
		for _, k := range sortedKeys(v.m) {
			v.m[k].collectRefs(out)
		}
	}
}

// MapRefs returns a copy of v in which every reference has been replaced by
// fn(ref). Containers without references are returned as-is.
func (v Value) MapRefs(fn func(Reference) Reference) Value {
	switch v.kind {
	case KindRef:
		return Ref(fn(*v.ref))
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.MapRefs(fn)
		}
		return Array(items...)
	case KindMap:
		return Map(mapFieldRefs(v.m, fn))
	}
	return v
}

func mapFieldRefs(fields map[string]Value, fn func(Reference) Reference) map[string]Value {
	if fields == nil {
		return nil
	}
	out := make(map[string]Value, len(fields))
	for k, fv := range fields {
		out[k] = fv.MapRefs(fn)
	}
	return out
}

// MarshalJSON encodes v as plain JSON. References are encoded as tagged
// objects carrying their collection, id and optional body.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	case KindRef:
		obj := map[string]any{
			"_type":       refTypeTag,
			"_collection": v.ref.Collection,
			"_id":         v.ref.ID,
		}
		if len(v.ref.Fields) > 0 {
			obj["_obj"] = v.ref.Fields
		}
		return json.Marshal(obj)
	}
	return nil, fmt.Errorf("unsupported value kind %s", v.kind)
}

// UnmarshalJSON decodes plain JSON into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}

	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// FromAny converts a decoded JSON tree (as produced by encoding/json) into a
// Value. Tagged reference objects become [KindRef] values.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("decode number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, iv)
		}
		return Array(items...), nil
	case map[string]any:
		if tag, ok := t["_type"].(string); ok && tag == refTypeTag {
			return refFromAny(t)
		}
		fields, err := fieldsFromAny(t)
		if err != nil {
			return Value{}, err
		}
		return Map(fields), nil
	}
	return Value{}, fmt.Errorf("unsupported json type %T", raw)
}

func refFromAny(obj map[string]any) (Value, error) {
	collection, _ := obj["_collection"].(string)
	id, _ := obj["_id"].(string)
	if collection == "" || id == "" {
		return Value{}, fmt.Errorf("reference requires _collection and _id")
	}

	ref := Reference{Collection: collection, ID: id}
	if body, ok := obj["_obj"].(map[string]any); ok {
		fields, err := fieldsFromAny(body)
		if err != nil {
			return Value{}, err
		}
		ref.Fields = fields
	}
	return Ref(ref), nil
}

func fieldsFromAny(obj map[string]any) (map[string]Value, error) {
	fields := make(map[string]Value, len(obj))
	for k, raw := range obj {
		fv, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = fv
	}
	return fields, nil
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
