// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package query evaluates collection queries in memory.
//
// It implements predicate matching, multi-key stable sorting and skip/limit
// paging with the same semantics as the remote collection store, plus the
// TTL filter used by local-only reads. The package also owns the two string
// forms of a query: the Mongo-style JSON sent on the wire ([EncodeFilter],
// [EncodeSort]) and the normalized scope key used to remember delta-set
// markers ([Signature]).
package query

import (
	"cmp"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"time"

	"github.com/MKhiriev/go-sync-store/models"
)

// Apply runs the full local evaluation pipeline over items: TTL filter (when
// now is non-zero), predicate, stable sort, then skip and limit. The input
// slice is not modified.
func Apply(items []models.Entity, q models.Query, now time.Time) []models.Entity {
	out := make([]models.Entity, 0, len(items))
	for _, item := range items {
		if !now.IsZero() && item.Expired(now) {
			continue
		}
		if !Match(item, q.Filter) {
			continue
		}
		out = append(out, item)
	}

	Sort(out, q.Sort)
	return Paginate(out, q.Skip, q.Limit)
}

// Paginate returns items[skip : skip+limit], clipped to the slice bounds.
// A skip at or beyond len(items) yields an empty slice; limit 0 is unlimited.
func Paginate(items []models.Entity, skip, limit int) []models.Entity {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []models.Entity{}
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}

// Sort orders items in place by keys. The sort is stable so equal keys keep
// their input order. Missing fields sort as null.
func Sort(items []models.Entity, keys []models.SortKey) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(items, func(a, b models.Entity) int {
		for _, key := range keys {
			av, _ := a.Lookup(key.Field)
			bv, _ := b.Lookup(key.Field)
			c := Compare(av, bv)
			if key.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// Compare orders two values. Values of different kinds order by kind:
// null < bool < number < string < array < map < ref. Arrays compare
// element-wise, maps by length and refs by collection then id.
func Compare(a, b models.Value) int {
	if a.Kind() != b.Kind() {
		return cmp.Compare(a.Kind(), b.Kind())
	}

	switch a.Kind() {
	case models.KindBool:
		ab, _ := a.AsBool()
		bb, _ := b.AsBool()
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case models.KindNumber:
		an, _ := a.AsNumber()
		bn, _ := b.AsNumber()
		return cmp.Compare(an, bn)
	case models.KindString:
		as, _ := a.AsString()
		bs, _ := b.AsString()
		return cmp.Compare(as, bs)
	case models.KindArray:
		aa, _ := a.AsArray()
		ba, _ := b.AsArray()
		for i := 0; i < len(aa) && i < len(ba); i++ {
			if c := Compare(aa[i], ba[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(aa), len(ba))
	case models.KindMap:
		am, _ := a.AsMap()
		bm, _ := b.AsMap()
		return cmp.Compare(len(am), len(bm))
	case models.KindRef:
		ar, _ := a.AsRef()
		br, _ := b.AsRef()
		if c := cmp.Compare(ar.Collection, br.Collection); c != 0 {
			return c
		}
		return cmp.Compare(ar.ID, br.ID)
	}
	return 0
}

// Match reports whether e satisfies f. A nil filter matches everything.
func Match(e models.Entity, f *models.Filter) bool {
	if f == nil {
		return true
	}
	return match(e, *f)
}

func match(e models.Entity, f models.Filter) bool {
	switch f.Op {
	case models.OpAnd:
		for _, child := range f.Children {
			if !match(e, child) {
				return false
			}
		}
		return true
	case models.OpOr:
		for _, child := range f.Children {
			if match(e, child) {
				return true
			}
		}
		return false
	case models.OpNot:
		return len(f.Children) == 1 && !match(e, f.Children[0])
	}

	v, found := e.Lookup(f.Field)

	switch f.Op {
	case models.OpEq:
		return equalsOrContains(v, found, f.Value)
	case models.OpNe:
		return !equalsOrContains(v, found, f.Value)
	case models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		return found && compareOrdered(v, f.Op, f.Value)
	case models.OpIn:
		for _, want := range f.Values {
			if equalsOrContains(v, found, want) {
				return true
			}
		}
		return false
	case models.OpNin:
		for _, want := range f.Values {
			if equalsOrContains(v, found, want) {
				return false
			}
		}
		return true
	case models.OpExists:
		want, _ := f.Value.AsBool()
		return found == want
	case models.OpRegex:
		s, ok := v.AsString()
		if !found || !ok {
			return false
		}
		pattern, _ := f.Value.AsString()
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	}
	return false
}

// equalsOrContains implements equality with array fields matching when any
// element is equal. A missing field equals null.
func equalsOrContains(v models.Value, found bool, want models.Value) bool {
	if !found {
		return want.IsNull()
	}
	if v.Equal(want) {
		return true
	}
	if items, ok := v.AsArray(); ok && want.Kind() != models.KindArray {
		for _, item := range items {
			if item.Equal(want) {
				return true
			}
		}
	}
	return false
}

// compareOrdered applies a range operator. Only values of the same kind are
// comparable; a string field is never greater than a number.
func compareOrdered(v models.Value, op models.FilterOp, bound models.Value) bool {
	if v.Kind() != bound.Kind() {
		return false
	}
	c := Compare(v, bound)
	switch op {
	case models.OpGt:
		return c > 0
	case models.OpGte:
		return c >= 0
	case models.OpLt:
		return c < 0
	case models.OpLte:
		return c <= 0
	}
	return false
}

// Validate checks that f only uses known operators with well-formed operands.
func Validate(f *models.Filter) error {
	if f == nil {
		return nil
	}
	switch f.Op {
	case models.OpAnd, models.OpOr:
		if len(f.Children) == 0 {
			return fmt.Errorf("%s requires at least one child", f.Op)
		}
		for i := range f.Children {
			if err := Validate(&f.Children[i]); err != nil {
				return err
			}
		}
		return nil
	case models.OpNot:
		if len(f.Children) != 1 {
			return fmt.Errorf("%s requires exactly one child", f.Op)
		}
		return Validate(&f.Children[0])
	case models.OpEq, models.OpNe, models.OpGt, models.OpGte, models.OpLt, models.OpLte,
		models.OpIn, models.OpNin:
	case models.OpExists:
		if _, ok := f.Value.AsBool(); !ok {
			return fmt.Errorf("%s on %q requires a bool operand", f.Op, f.Field)
		}
	case models.OpRegex:
		pattern, ok := f.Value.AsString()
		if !ok {
			return fmt.Errorf("%s on %q requires a string operand", f.Op, f.Field)
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%s on %q: %w", f.Op, f.Field, err)
		}
	default:
		return fmt.Errorf("unknown operator %q", f.Op)
	}

	if f.Field == "" {
		return fmt.Errorf("%s requires a field", f.Op)
	}
	return nil
}

// Page is one request window of an auto-paginated full fetch.
type Page struct {
	Skip  int
	Limit int
}

// Pages yields consecutive windows of size pageSize starting at zero. The
// sequence is unbounded; callers stop when a page comes back short.
func Pages(pageSize int) iter.Seq[Page] {
	return func(yield func(Page) bool) {
		for skip := 0; ; skip += pageSize {
			if !yield(Page{Skip: skip, Limit: pageSize}) {
				return
			}
		}
	}
}
