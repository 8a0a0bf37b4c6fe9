package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/MKhiriev/go-sync-store/models"
)

// EncodeFilter returns the Mongo-style JSON of f, or "{}" for a nil filter.
// Object keys are emitted in sorted order, so equal filters encode equally.
func EncodeFilter(f *models.Filter) (string, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(toMongo(normalize(*f)))
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	return string(b), nil
}

// EncodeSort returns the Mongo-style sort document, preserving key order.
// It returns "" when there are no keys.
func EncodeSort(keys []models.SortKey) string {
	if len(keys) == 0 {
		return ""
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(key.Field)
		buf.Write(name)
		if key.Descending {
			buf.WriteString(":-1")
		} else {
			buf.WriteString(":1")
		}
	}
	buf.WriteByte('}')
	return buf.String()
}

// Signature returns the scope key under which delta-set markers are stored
// for q in collection. Sorting and paging do not change the set of matching
// entities and are excluded; nested $and nodes are flattened and commutative
// children are ordered.
func Signature(collection string, q models.Query) (string, error) {
	filter, err := EncodeFilter(q.Filter)
	if err != nil {
		return "", err
	}
	return collection + ":" + filter, nil
}

func toMongo(f models.Filter) map[string]any {
	switch f.Op {
	case models.OpAnd, models.OpOr:
		children := make([]any, 0, len(f.Children))
		for _, child := range f.Children {
			children = append(children, toMongo(child))
		}
		return map[string]any{string(f.Op): children}
	case models.OpNot:
		children := make([]any, 0, len(f.Children))
		for _, child := range f.Children {
			children = append(children, toMongo(child))
		}
		return map[string]any{"$nor": children}
	case models.OpEq:
		return map[string]any{f.Field: f.Value}
	case models.OpIn, models.OpNin:
		values := f.Values
		if values == nil {
			values = []models.Value{}
		}
		return map[string]any{f.Field: map[string]any{string(f.Op): values}}
	default:
		return map[string]any{f.Field: map[string]any{string(f.Op): f.Value}}
	}
}

// normalize flattens nested $and/$or nodes of the same operator and orders
// their children by encoding so that logically equal filters share a
// signature.
func normalize(f models.Filter) models.Filter {
	if f.Op != models.OpAnd && f.Op != models.OpOr {
		if f.Op == models.OpNot && len(f.Children) == 1 {
			f.Children = []models.Filter{normalize(f.Children[0])}
		}
		return f
	}

	flat := make([]models.Filter, 0, len(f.Children))
	for _, child := range f.Children {
		child = normalize(child)
		if child.Op == f.Op {
			flat = append(flat, child.Children...)
			continue
		}
		flat = append(flat, child)
	}
	if len(flat) == 1 {
		return flat[0]
	}

	keys := make(map[int]string, len(flat))
	idx := make([]int, len(flat))
	for i, child := range flat {
		b, _ := json.Marshal(toMongo(child))
		keys[i] = string(b)
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return strings.Compare(keys[a], keys[b])
	})

	ordered := make([]models.Filter, 0, len(flat))
	for _, i := range idx {
		ordered = append(ordered, flat[i])
	}
	return models.Filter{Op: f.Op, Children: ordered}
}
