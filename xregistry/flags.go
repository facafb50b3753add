// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package xregistry

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// FilterTerm is one structured equality term of a filter expression.
type FilterTerm struct {
	Key   string
	Value string
}

// Flags holds the parsed xRegistry query flags of one request. All flags are
// optional on any entity endpoint.
type Flags struct {
	Limit    int
	HasLimit bool
	Offset   int

	Terms []FilterTerm // k=v equality terms, ANDed
	Text  string       // free-text substring filter on the identifier

	Sort     string
	SortDesc bool

	Inline    map[string]bool
	InlineAll bool

	Doc         bool // doc=false strips the docs attribute
	Collections bool // collections=false strips <child>url attributes
	NoEpoch     bool
	Epoch       int
	HasEpoch    bool
	SpecVersion string
	Schema      bool
	NoReadonly  bool
}

// paginationParams are the query parameters owned by the pagination layer;
// Link URLs preserve everything else.
var paginationParams = map[string]bool{"limit": true, "offset": true}

// ParseFlags parses the xRegistry query flags. A malformed limit or offset
// yields an invalid_data problem.
func ParseFlags(q url.Values) (*Flags, *Problem) {
	f := &Flags{Doc: true, Collections: true, Inline: map[string]bool{}}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, NewProblem(ErrInvalidData, "", fmt.Sprintf("invalid limit %q: must be a positive integer", v))
		}
		f.Limit = n
		f.HasLimit = true
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, NewProblem(ErrInvalidData, "", fmt.Sprintf("invalid offset %q: must be a non-negative integer", v))
		}
		f.Offset = n
	}

	if expr := q.Get("filter"); expr != "" {
		if !strings.Contains(expr, "=") {
			f.Text = expr
		} else {
			for term := range strings.SplitSeq(expr, ",") {
				k, v, ok := strings.Cut(term, "=")
				if !ok {
					f.Text = term
					continue
				}
				f.Terms = append(f.Terms, FilterTerm{Key: k, Value: v})
			}
		}
	}

	if v := q.Get("sort"); v != "" {
		attr, order, ok := strings.Cut(v, "=")
		f.Sort = attr
		if ok {
			f.SortDesc = strings.EqualFold(order, "desc")
		}
	}

	if v := q.Get("inline"); v != "" {
		if v == "*" || strings.EqualFold(v, "true") {
			f.InlineAll = true
		} else {
			for name := range strings.SplitSeq(v, ",") {
				f.Inline[strings.TrimSpace(name)] = true
			}
		}
	}

	if v := q.Get("doc"); strings.EqualFold(v, "false") {
		f.Doc = false
	}
	if v := q.Get("collections"); strings.EqualFold(v, "false") {
		f.Collections = false
	}
	if v := q.Get("noepoch"); strings.EqualFold(v, "true") {
		f.NoEpoch = true
	}
	if v := q.Get("epoch"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Epoch = n
			f.HasEpoch = true
		}
	}
	f.SpecVersion = q.Get("specversion")
	if v := q.Get("schema"); strings.EqualFold(v, "true") {
		f.Schema = true
	}
	if v := q.Get("noreadonly"); strings.EqualFold(v, "true") {
		f.NoReadonly = true
	}

	return f, nil
}

// WantsInline reports whether the named expandable should be inlined.
func (f *Flags) WantsInline(name string) bool {
	return f.InlineAll || f.Inline[name]
}

// Matches applies the filter terms to one entity. Structured terms compare
// case-insensitively against the named attribute, coercing numbers and
// booleans when the attribute value permits; free text matches any substring
// of the identifier.
func (f *Flags) Matches(e Object, id string) bool {
	if f.Text != "" && !strings.Contains(strings.ToLower(id), strings.ToLower(f.Text)) {
		return false
	}
	for _, term := range f.Terms {
		val, ok := e[term.Key]
		if !ok {
			return false
		}
		if !valueEquals(val, term.Value) {
			return false
		}
	}
	return true
}

func valueEquals(val any, want string) bool {
	switch v := val.(type) {
	case string:
		return strings.EqualFold(v, want)
	case bool:
		b, err := strconv.ParseBool(want)
		return err == nil && b == v
	case float64:
		n, err := strconv.ParseFloat(want, 64)
		return err == nil && n == v
	case int:
		n, err := strconv.Atoi(want)
		return err == nil && n == v
	default:
		return strings.EqualFold(fmt.Sprintf("%v", v), want)
	}
}

// SortEntities orders entities by the sort flag. Unknown attributes and the
// absence of a sort flag both fall back to ascending name; ties break
// lexicographically on the identifier.
func (f *Flags) SortEntities(entities []Object, idOf func(Object) string) {
	attr := f.Sort
	if attr == "" {
		attr = "name"
	}
	slices.SortStableFunc(entities, func(a, b Object) int {
		c := compareAttr(a[attr], b[attr])
		if c == 0 {
			c = strings.Compare(idOf(a), idOf(b))
		}
		if f.SortDesc {
			c = -c
		}
		return c
	})
}

func compareAttr(a, b any) int {
	an, aNum := a.(float64)
	bn, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	as, bs := "", ""
	if a != nil {
		as = strings.ToLower(fmt.Sprintf("%v", a))
	}
	if b != nil {
		bs = strings.ToLower(fmt.Sprintf("%v", b))
	}
	return strings.Compare(as, bs)
}

// Page slices the collection to the requested window and returns the page
// along with the pre-paging total. An offset beyond the end yields an empty
// page; the handler emits a warning for it.
func (f *Flags) Page(entities []Object) ([]Object, int) {
	total := len(entities)
	lo := f.Offset
	if lo > total {
		lo = total
	}
	hi := total
	if f.HasLimit && lo+f.Limit < hi {
		hi = lo + f.Limit
	}
	return entities[lo:hi], total
}

// ApplyCollection runs the collection stages of the flag pipeline in their
// fixed order: filter, sort, paginate. Inlining and attribute stripping
// happen afterwards so they cannot alter pagination counts.
func (f *Flags) ApplyCollection(entities []Object, idOf func(Object) string) (page []Object, total int) {
	filtered := entities[:0:0]
	for _, e := range entities {
		if f.Matches(e, idOf(e)) {
			filtered = append(filtered, e)
		}
	}
	f.SortEntities(filtered, idOf)
	return f.Page(filtered)
}

// StripEntity applies the attribute-stripping flags to one shaped entity.
func (f *Flags) StripEntity(e Object) {
	if !f.Doc {
		delete(e, "docs")
	}
	if f.NoEpoch {
		delete(e, "epoch")
	}
	if !f.Collections {
		for k := range e {
			if k != "self" && strings.HasSuffix(k, "url") {
				delete(e, k)
			}
		}
	}
}

// schemaRequired lists the attributes every entity must carry.
var schemaRequired = []string{"xid", "self", "epoch", "createdat", "modifiedat"}

// AttachSchema validates the shaped entity against the required-field rules
// and appends the _schema sub-object. It returns the validation errors so the
// handler can emit Warning headers.
func (f *Flags) AttachSchema(e Object) []string {
	var errs []string
	for _, k := range schemaRequired {
		if _, ok := e[k]; !ok {
			errs = append(errs, fmt.Sprintf("missing required attribute %q", k))
		}
	}
	if _, ok := e["versionsurl"]; ok {
		if _, hasMeta := e["metaurl"]; !hasMeta {
			errs = append(errs, `missing required attribute "metaurl"`)
		}
		if _, hasCount := e["versionscount"]; !hasCount {
			errs = append(errs, `missing required attribute "versionscount"`)
		}
	}
	schema := Object{"valid": len(errs) == 0, "version": SpecVersion}
	if len(errs) > 0 {
		schema["errors"] = errs
	}
	e["_schema"] = schema
	return errs
}
