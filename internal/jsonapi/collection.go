package jsonapi

import (
	"net/url"
	"strconv"
)

// Pagination describes the page being rendered.
type Pagination struct {
	Number int
	Size   int
	Total  int
}

// LastPage is the number of the last page, at least 1.
func (p Pagination) LastPage() int {
	if p.Size <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.Size - 1) / p.Size
}

// SerializeCollection renders a page of instances as a document with
// pagination links. query carries the request's other parameters (sort,
// include), which the links preserve.
func (s *Serializer) SerializeCollection(
	typ string,
	instances []ResourceInstance,
	includes []string,
	page Pagination,
	query url.Values,
	included []ResourceInstance,
) (Document, error) {
	cfg, err := s.registry.Config(typ)
	if err != nil {
		return Document{}, err
	}
	if err := checkIncludes(cfg, includes); err != nil {
		return Document{}, err
	}

	data := make([]ResourceObject, 0, len(instances))
	primary := make([]ResourceRef, 0, len(instances))
	for _, inst := range instances {
		obj, err := s.Serialize(inst, nil)
		if err != nil {
			return Document{}, err
		}
		data = append(data, obj)
		primary = append(primary, inst.Ref())
	}

	inc, err := s.serializeIncluded(included, primary)
	if err != nil {
		return Document{}, err
	}

	return Document{
		Data:     data,
		Included: inc,
		Meta:     map[string]any{"totalCount": page.Total},
		Links:    PageLinks(s.urls.Collection(typ), page, query),
	}, nil
}

// SerializeRelated renders an unpaginated to-many related collection.
func (s *Serializer) SerializeRelated(selfURL string, instances []ResourceInstance) (Document, error) {
	data := make([]ResourceObject, 0, len(instances))
	for _, inst := range instances {
		obj, err := s.Serialize(inst, nil)
		if err != nil {
			return Document{}, err
		}
		data = append(data, obj)
	}
	return Document{
		Data:  data,
		Meta:  map[string]any{"totalCount": len(instances)},
		Links: map[string]string{"self": selfURL},
	}, nil
}

// PageLinks computes self/first/prev/next/last for a page. prev is omitted on
// the first page and next on the last.
func PageLinks(base string, page Pagination, query url.Values) map[string]string {
	last := page.LastPage()
	link := func(n int) string {
		q := url.Values{}
		for k, vs := range query {
			if k == paramPageNumber || k == paramPageSize {
				continue
			}
			q[k] = vs
		}
		q.Set(paramPageNumber, strconv.Itoa(n))
		q.Set(paramPageSize, strconv.Itoa(page.Size))
		return base + "?" + q.Encode()
	}

	links := map[string]string{
		"self":  link(page.Number),
		"first": link(1),
		"last":  link(last),
	}
	if page.Number > 1 {
		prev := page.Number - 1
		if prev > last {
			prev = last
		}
		links["prev"] = link(prev)
	}
	if page.Number < last {
		links["next"] = link(page.Number + 1)
	}
	return links
}
