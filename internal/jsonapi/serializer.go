package jsonapi

import (
	"sort"
	"time"
)

// Timestamp attributes present on every resource.
const (
	AttrCreatedAt = "created_at"
	AttrUpdatedAt = "updated_at"
)

// Serializer turns resource instances into resource objects using the
// registry. It never loads data: relationships that were not loaded are
// rendered with links only.
type Serializer struct {
	registry *Registry
	urls     URLBuilder
}

// NewSerializer creates a Serializer.
func NewSerializer(registry *Registry, urls URLBuilder) *Serializer {
	return &Serializer{registry: registry, urls: urls}
}

// URLs returns the builder used for links.
func (s *Serializer) URLs() URLBuilder {
	return s.urls
}

// Serialize converts one instance into a resource object. Every requested
// include must be allowed for the instance type.
func (s *Serializer) Serialize(inst ResourceInstance, requestedIncludes []string) (ResourceObject, error) {
	cfg, err := s.registry.Config(inst.Type)
	if err != nil {
		return ResourceObject{}, err
	}
	if err := checkIncludes(cfg, requestedIncludes); err != nil {
		return ResourceObject{}, err
	}
	return s.serialize(cfg, inst), nil
}

func (s *Serializer) serialize(cfg *ResourceTypeConfig, inst ResourceInstance) ResourceObject {
	attrs := make(map[string]any, len(inst.Attributes)+2)
	for k, v := range inst.Attributes {
		if k == "id" || k == "type" || cfg.IsHidden(k) {
			continue
		}
		attrs[k] = v
	}
	attrs[AttrCreatedAt] = inst.CreatedAt.UTC().Format(time.RFC3339)
	attrs[AttrUpdatedAt] = inst.UpdatedAt.UTC().Format(time.RFC3339)

	obj := ResourceObject{
		ID:         inst.ID,
		Type:       inst.Type,
		Attributes: attrs,
		Links:      &ResourceLinks{Self: s.urls.Resource(inst.Type, inst.ID)},
	}
	if len(cfg.Relationships) == 0 {
		return obj
	}

	obj.Relationships = make(map[string]RelationshipObject, len(cfg.Relationships))
	for _, rel := range cfg.Relationships {
		ro := RelationshipObject{Links: RelationshipLinks{
			Self:    s.urls.Relationship(inst.Type, inst.ID, rel.Name),
			Related: s.urls.Related(inst.Type, inst.ID, rel.Name),
		}}
		if l, loaded := inst.Relations[rel.Name]; loaded {
			l = normalizeLinkage(l, rel.Cardinality)
			ro.Data = &l
		}
		obj.Relationships[rel.Name] = ro
	}
	return obj
}

// normalizeLinkage forces the declared cardinality onto loaded linkage so the
// rendered shape always matches the descriptor.
func normalizeLinkage(l Linkage, c Cardinality) Linkage {
	switch {
	case c == CardinalityMany && !l.IsMany():
		return ToMany(l.Refs()...)
	case c == CardinalityOne && l.IsMany():
		refs := l.Refs()
		if len(refs) == 0 {
			return ToOne(nil)
		}
		return ToOne(&refs[0])
	}
	return l
}

// SerializeDocument wraps a single instance, plus optional compound
// resources, in a document.
func (s *Serializer) SerializeDocument(inst ResourceInstance, includes []string, included []ResourceInstance) (Document, error) {
	obj, err := s.Serialize(inst, includes)
	if err != nil {
		return Document{}, err
	}
	inc, err := s.serializeIncluded(included, []ResourceRef{inst.Ref()})
	if err != nil {
		return Document{}, err
	}
	return Document{
		Data:     &obj,
		Included: inc,
		Links:    map[string]string{"self": s.urls.Resource(inst.Type, inst.ID)},
	}, nil
}

// serializeIncluded renders compound resources, dropping duplicates and any
// resource already present as primary data.
func (s *Serializer) serializeIncluded(included []ResourceInstance, primary []ResourceRef) ([]ResourceObject, error) {
	if len(included) == 0 {
		return nil, nil
	}
	seen := make(map[ResourceRef]struct{}, len(included)+len(primary))
	for _, p := range primary {
		seen[p] = struct{}{}
	}
	out := make([]ResourceObject, 0, len(included))
	for _, inst := range included {
		if _, dup := seen[inst.Ref()]; dup {
			continue
		}
		seen[inst.Ref()] = struct{}{}
		cfg, err := s.registry.Config(inst.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, s.serialize(cfg, inst))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func checkIncludes(cfg *ResourceTypeConfig, includes []string) error {
	for _, inc := range includes {
		if !cfg.AllowsInclude(inc) {
			return NewError(ErrInvalidQueryParameter, "%s cannot include %q", cfg.Type, inc).AtParameter("include")
		}
	}
	return nil
}
