package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MKhiriev/go-sync-store/models"
)

// ErrMalformedQuery is returned when a Mongo-style document cannot be
// decoded into a filter or sort.
var ErrMalformedQuery = errors.New("malformed query")

var leafOps = map[string]models.FilterOp{
	"$eq":     models.OpEq,
	"$ne":     models.OpNe,
	"$gt":     models.OpGt,
	"$gte":    models.OpGte,
	"$lt":     models.OpLt,
	"$lte":    models.OpLte,
	"$in":     models.OpIn,
	"$nin":    models.OpNin,
	"$exists": models.OpExists,
	"$regex":  models.OpRegex,
}

// DecodeFilter parses the Mongo-style JSON produced by [EncodeFilter]. An
// empty string or "{}" yields a nil filter.
func DecodeFilter(raw string) (*models.Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedQuery, err)
	}
	if len(doc) == 0 {
		return nil, nil
	}

	f, err := fromMongo(doc)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func fromMongo(doc map[string]any) (models.Filter, error) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]models.Filter, 0, len(keys))
	for _, key := range keys {
		f, err := fromMongoKey(key, doc[key])
		if err != nil {
			return models.Filter{}, err
		}
		parts = append(parts, f)
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return models.And(parts...), nil
}

func fromMongoKey(key string, raw any) (models.Filter, error) {
	switch key {
	case "$and", "$or", "$nor":
		children, err := fromMongoList(key, raw)
		if err != nil {
			return models.Filter{}, err
		}
		switch {
		case key == "$and":
			return models.And(children...), nil
		case key == "$or":
			return models.Or(children...), nil
		case len(children) == 1:
			return models.Not(children[0]), nil
		default:
			return models.Not(models.Or(children...)), nil
		}
	}
	if strings.HasPrefix(key, "$") {
		return models.Filter{}, fmt.Errorf("%w: unsupported operator %q", ErrMalformedQuery, key)
	}

	if ops, ok := raw.(map[string]any); ok && isOperatorDoc(ops) {
		return fromOperatorDoc(key, ops)
	}

	v, err := models.FromAny(raw)
	if err != nil {
		return models.Filter{}, fmt.Errorf("%w: field %q: %w", ErrMalformedQuery, key, err)
	}
	return models.Eq(key, v), nil
}

func fromMongoList(key string, raw any) ([]models.Filter, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: %s expects a non-empty array", ErrMalformedQuery, key)
	}

	children := make([]models.Filter, 0, len(items))
	for _, item := range items {
		doc, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects objects", ErrMalformedQuery, key)
		}
		child, err := fromMongo(doc)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func isOperatorDoc(doc map[string]any) bool {
	if len(doc) == 0 {
		return false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func fromOperatorDoc(field string, ops map[string]any) (models.Filter, error) {
	names := make([]string, 0, len(ops))
	for k := range ops {
		names = append(names, k)
	}
	slices.Sort(names)

	parts := make([]models.Filter, 0, len(names))
	for _, name := range names {
		op, ok := leafOps[name]
		if !ok {
			return models.Filter{}, fmt.Errorf("%w: unsupported operator %q", ErrMalformedQuery, name)
		}

		v, err := models.FromAny(ops[name])
		if err != nil {
			return models.Filter{}, fmt.Errorf("%w: field %q: %w", ErrMalformedQuery, field, err)
		}

		switch op {
		case models.OpIn, models.OpNin:
			values, isArray := v.AsArray()
			if !isArray {
				return models.Filter{}, fmt.Errorf("%w: %s expects an array", ErrMalformedQuery, name)
			}
			parts = append(parts, models.Filter{Op: op, Field: field, Values: values})
		default:
			parts = append(parts, models.Filter{Op: op, Field: field, Value: v})
		}
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return models.And(parts...), nil
}

// DecodeSort parses a sort document such as {"name":1,"age":-1}, keeping the
// key order of the document.
func DecodeSort(raw string) ([]models.SortKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: sort must be an object", ErrMalformedQuery)
	}

	var keys []models.SortKey
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedQuery, err)
		}
		field, _ := tok.(string)

		var dir json.Number
		if err = dec.Decode(&dir); err != nil {
			return nil, fmt.Errorf("%w: sort direction of %q: %w", ErrMalformedQuery, field, err)
		}
		n, err := dir.Int64()
		if err != nil || (n != 1 && n != -1) {
			return nil, fmt.Errorf("%w: sort direction of %q must be 1 or -1", ErrMalformedQuery, field)
		}
		keys = append(keys, models.SortKey{Field: field, Descending: n < 0})
	}
	return keys, nil
}
