package jsonapi

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	paramSort       = "sort"
	paramInclude    = "include"
	paramPageNumber = "page[number]"
	paramPageSize   = "page[size]"
)

// SortField is one entry of a sort parameter.
type SortField struct {
	Field      string
	Descending bool
}

// Page selects a window of a collection.
type Page struct {
	Number int
	Size   int
}

// Offset is the number of rows before the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ListQuery is a validated collection request.
type ListQuery struct {
	Sort    []SortField
	Include []string
	Page    Page
}

// PageLimits bound page sizes.
type PageLimits struct {
	DefaultSize int
	MaxSize     int
}

// ParseListQuery validates sort, include and page parameters against the
// type configuration. It performs no I/O, so an invalid query is rejected
// before anything is executed.
func ParseListQuery(cfg *ResourceTypeConfig, values url.Values, limits PageLimits) (ListQuery, error) {
	q := ListQuery{Page: Page{Number: 1, Size: limits.DefaultSize}}

	if raw := values.Get(paramSort); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			f := SortField{Field: strings.TrimSpace(part)}
			if strings.HasPrefix(f.Field, "-") {
				f.Field, f.Descending = f.Field[1:], true
			}
			if f.Field == "" || !cfg.AllowsSort(f.Field) {
				return ListQuery{}, NewError(ErrInvalidQueryParameter,
					"%s cannot be sorted by %q", cfg.Type, part).AtParameter(paramSort)
			}
			q.Sort = append(q.Sort, f)
		}
	}

	includes, err := ParseIncludes(cfg, values)
	if err != nil {
		return ListQuery{}, err
	}
	q.Include = includes

	if raw := values.Get(paramPageNumber); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return ListQuery{}, NewError(ErrInvalidQueryParameter,
				"page number must be a positive integer").AtParameter(paramPageNumber)
		}
		q.Page.Number = n
	}
	if raw := values.Get(paramPageSize); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || (limits.MaxSize > 0 && n > limits.MaxSize) {
			return ListQuery{}, NewError(ErrInvalidQueryParameter,
				"page size must be between 1 and %d", limits.MaxSize).AtParameter(paramPageSize)
		}
		q.Page.Size = n
	}
	if q.Page.Size < 1 {
		q.Page.Size = 1
	}
	return q, nil
}

// ParseIncludes validates the include parameter. Nested include paths are
// not supported.
func ParseIncludes(cfg *ResourceTypeConfig, values url.Values) ([]string, error) {
	raw := values.Get(paramInclude)
	if raw == "" {
		return nil, nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if !cfg.AllowsInclude(name) {
			return nil, NewError(ErrInvalidQueryParameter,
				"%s cannot include %q", cfg.Type, part).AtParameter(paramInclude)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

// PreservedQuery returns the parameters pagination links must carry.
func PreservedQuery(values url.Values) url.Values {
	out := url.Values{}
	for _, k := range []string{paramSort, paramInclude} {
		if v := values.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}
