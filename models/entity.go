package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TempIDPrefix marks identifiers assigned locally to entities that the
// backend has not acknowledged yet.
const TempIDPrefix = "tmp_"

// TimeLayout is the fixed-width UTC layout used when timestamps are exposed
// as string values, so that lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Reserved JSON keys of an encoded entity.
const (
	FieldID        = "_id"
	FieldACL       = "_acl"
	FieldMetadata  = "_kmd"
	FieldExpiresAt = "_expiresAt"
)

// IsTempID reports whether id was generated locally and never acknowledged.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Entity is a record of a collection.
type Entity struct {
	// ID is unique within a collection. It carries [TempIDPrefix] until the
	// first successful push of the entity.
	ID string

	// Fields holds the typed body of the entity.
	Fields map[string]Value

	// ACL is the per-entity access rule.
	ACL *ACL

	// Metadata carries server-maintained timestamps.
	Metadata *Metadata

	// ExpiresAt, when set, is the moment after which the cached copy is no
	// longer served from local-only reads.
	ExpiresAt *time.Time
}

// ACL describes who may read and write an entity.
type ACL struct {
	Creator          string   `json:"creator,omitempty" yaml:"creator,omitempty"`
	Readers          []string `json:"r,omitempty" yaml:"r,omitempty"`
	Writers          []string `json:"w,omitempty" yaml:"w,omitempty"`
	GloballyReadable *bool    `json:"gr,omitempty" yaml:"gr,omitempty"`
	GloballyWritable *bool    `json:"gw,omitempty" yaml:"gw,omitempty"`
}

// Metadata carries the last-modified and creation times of an entity.
type Metadata struct {
	LastModified *time.Time `json:"lmt,omitempty"`
	CreatedAt    *time.Time `json:"ect,omitempty"`
}

// Get returns the top-level field name.
func (e Entity) Get(name string) (Value, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Set stores a top-level field, allocating Fields if needed.
func (e *Entity) Set(name string, v Value) {
	if e.Fields == nil {
		e.Fields = make(map[string]Value)
	}
	e.Fields[name] = v
}

// Lookup resolves a dotted field path. Besides body fields it understands the
// reserved paths "_id", "_acl.creator", "_kmd.lmt", "_kmd.ect" and
// "_expiresAt"; timestamps resolve to strings in [TimeLayout]. A path may walk
// through maps and references ("author._id", "author.name").
func (e Entity) Lookup(path string) (Value, bool) {
	switch path {
	case FieldID:
		return String(e.ID), e.ID != ""
	case FieldACL + ".creator":
		if e.ACL == nil || e.ACL.Creator == "" {
			return Null(), false
		}
		return String(e.ACL.Creator), true
	case FieldMetadata + ".lmt":
		if e.Metadata == nil {
			return Null(), false
		}
		return timeValue(e.Metadata.LastModified)
	case FieldMetadata + ".ect":
		if e.Metadata == nil {
			return Null(), false
		}
		return timeValue(e.Metadata.CreatedAt)
	case FieldExpiresAt:
		return timeValue(e.ExpiresAt)
	}

	parts := strings.Split(path, ".")
	cur, ok := e.Fields[parts[0]]
	if !ok {
		return Null(), false
	}
	for _, part := range parts[1:] {
		switch cur.Kind() {
		case KindMap:
			m, _ := cur.AsMap()
			cur, ok = m[part]
		case KindRef:
			ref, _ := cur.AsRef()
			if part == FieldID {
				cur, ok = String(ref.ID), true
			} else {
				cur, ok = ref.Fields[part]
			}
		default:
			ok = false
		}
		if !ok {
			return Null(), false
		}
	}
	return cur, true
}

func timeValue(t *time.Time) (Value, bool) {
	if t == nil {
		return Null(), false
	}
	return String(t.UTC().Format(TimeLayout)), true
}

// References returns every reference held by the entity body.
func (e Entity) References() []Reference {
	return Map(e.Fields).Refs()
}

// WithRefs returns a copy of e whose references have been transformed by fn.
func (e Entity) WithRefs(fn func(Reference) Reference) Entity {
	out := e.Clone()
	out.Fields = mapFieldRefs(e.Fields, fn)
	return out
}

// RewriteRefID replaces every reference to (collection, oldID) with newID.
// It reports whether anything changed.
func (e Entity) RewriteRefID(collection, oldID, newID string) (Entity, bool) {
	changed := false
	out := e.WithRefs(func(r Reference) Reference {
		if r.Collection == collection && r.ID == oldID {
			r.ID = newID
			changed = true
		}
		return r
	})
	return out, changed
}

// Expired reports whether the entity carries an expiry at or before now.
func (e Entity) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Clone returns a copy of e that shares no mutable containers with it at the
// top level.
func (e Entity) Clone() Entity {
	out := e
	if e.Fields != nil {
		out.Fields = make(map[string]Value, len(e.Fields))
		for k, v := range e.Fields {
			out.Fields[k] = v
		}
	}
	if e.ACL != nil {
		acl := *e.ACL
		acl.Readers = append([]string(nil), e.ACL.Readers...)
		acl.Writers = append([]string(nil), e.ACL.Writers...)
		out.ACL = &acl
	}
	if e.Metadata != nil {
		md := *e.Metadata
		out.Metadata = &md
	}
	if e.ExpiresAt != nil {
		exp := *e.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

// MarshalJSON flattens the entity into a single JSON object: body fields plus
// the reserved "_id", "_acl", "_kmd" and "_expiresAt" keys.
func (e Entity) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Fields)+4)
	for k, v := range e.Fields {
		obj[k] = v
	}
	if e.ID != "" {
		obj[FieldID] = e.ID
	}
	if e.ACL != nil {
		obj[FieldACL] = e.ACL
	}
	if e.Metadata != nil {
		obj[FieldMetadata] = e.Metadata
	}
	if e.ExpiresAt != nil {
		obj[FieldExpiresAt] = e.ExpiresAt.UTC()
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes a flattened entity object.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}

	out := Entity{Fields: make(map[string]Value, len(raw))}
	for k, msg := range raw {
		var err error
		switch k {
		case FieldID:
			err = json.Unmarshal(msg, &out.ID)
		case FieldACL:
			err = json.Unmarshal(msg, &out.ACL)
		case FieldMetadata:
			err = json.Unmarshal(msg, &out.Metadata)
		case FieldExpiresAt:
			err = json.Unmarshal(msg, &out.ExpiresAt)
		default:
			var v Value
			err = json.Unmarshal(msg, &v)
			out.Fields[k] = v
		}
		if err != nil {
			return fmt.Errorf("decode entity field %q: %w", k, err)
		}
	}

	*e = out
	return nil
}
