package jsonapi

import (
	"fmt"
	"slices"
	"sort"
)

// Cardinality is the number of entities a relationship resolves to.
type Cardinality string

// Supported cardinalities.
const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// Fields every resource type can be sorted by without declaring them as
// attributes.
var builtinSortFields = []string{"id", "created_at", "updated_at"}

// RelationshipDescriptor declares an association. It never resolves linked
// entities itself.
type RelationshipDescriptor struct {
	Name        string
	TargetType  string
	Cardinality Cardinality
}

// RuleSet maps a dotted field path to a validator rule expression.
type RuleSet map[string]string

// ValidationRules holds the per-operation rule sets of a resource type.
type ValidationRules struct {
	Create RuleSet
	Update RuleSet
}

// ResourceTypeConfig is the declarative description of one resource type.
type ResourceTypeConfig struct {
	Type             string
	Attributes       []string
	HiddenAttributes []string
	AllowedSorts     []string
	AllowedIncludes  []string
	Relationships    []RelationshipDescriptor
	Rules            ValidationRules

	attributes map[string]struct{}
	hidden     map[string]struct{}
	sorts      map[string]struct{}
	includes   map[string]struct{}
	relations  map[string]RelationshipDescriptor
}

// HasAttribute reports whether name is a declared attribute.
func (c *ResourceTypeConfig) HasAttribute(name string) bool {
	_, ok := c.attributes[name]
	return ok
}

// IsHidden reports whether an attribute must be left out of responses.
func (c *ResourceTypeConfig) IsHidden(name string) bool {
	_, ok := c.hidden[name]
	return ok
}

// AllowsSort reports whether the type can be sorted by field.
func (c *ResourceTypeConfig) AllowsSort(field string) bool {
	_, ok := c.sorts[field]
	return ok
}

// AllowsInclude reports whether relation may be requested in include.
func (c *ResourceTypeConfig) AllowsInclude(relation string) bool {
	_, ok := c.includes[relation]
	return ok
}

// Relationship looks up a relationship declared for this type.
func (c *ResourceTypeConfig) Relationship(name string) (RelationshipDescriptor, bool) {
	d, ok := c.relations[name]
	return d, ok
}

// Registry holds the configuration of every resource type. It is built once
// and only read afterwards, so it is safe for concurrent use.
type Registry struct {
	types map[string]*ResourceTypeConfig
	names []string
}

// NewRegistry validates and indexes the given configurations. Relationship
// targets must be registered types; reference cycles between types are
// allowed.
func NewRegistry(configs ...ResourceTypeConfig) (*Registry, error) {
	reg := &Registry{types: make(map[string]*ResourceTypeConfig, len(configs))}

	for _, cfg := range configs {
		if cfg.Type == "" {
			return nil, fmt.Errorf("%w: resource type name is empty", ErrInvalidConfig)
		}
		if _, dup := reg.types[cfg.Type]; dup {
			return nil, fmt.Errorf("%w: resource type %q registered twice", ErrInvalidConfig, cfg.Type)
		}
		c, err := index(cfg)
		if err != nil {
			return nil, err
		}
		reg.types[c.Type] = c
		reg.names = append(reg.names, c.Type)
	}

	// Targets are checked once every type is known so that mutually
	// referential types can be declared in any order.
	for _, c := range reg.types {
		for _, rel := range c.Relationships {
			if _, ok := reg.types[rel.TargetType]; !ok {
				return nil, fmt.Errorf("%w: relationship %s.%s targets unregistered type %q",
					ErrInvalidConfig, c.Type, rel.Name, rel.TargetType)
			}
		}
	}

	sort.Strings(reg.names)
	return reg, nil
}

func index(in ResourceTypeConfig) (*ResourceTypeConfig, error) {
	c := &ResourceTypeConfig{
		Type:             in.Type,
		Attributes:       slices.Clone(in.Attributes),
		HiddenAttributes: slices.Clone(in.HiddenAttributes),
		AllowedSorts:     slices.Clone(in.AllowedSorts),
		AllowedIncludes:  slices.Clone(in.AllowedIncludes),
		Relationships:    slices.Clone(in.Relationships),
		Rules: ValidationRules{
			Create: cloneRules(in.Rules.Create),
			Update: cloneRules(in.Rules.Update),
		},
		attributes: make(map[string]struct{}, len(in.Attributes)),
		hidden:     make(map[string]struct{}, len(in.HiddenAttributes)),
		sorts:      make(map[string]struct{}, len(in.AllowedSorts)),
		includes:   make(map[string]struct{}, len(in.AllowedIncludes)),
		relations:  make(map[string]RelationshipDescriptor, len(in.Relationships)),
	}

	for _, a := range c.Attributes {
		c.attributes[a] = struct{}{}
	}
	for _, h := range c.HiddenAttributes {
		if !c.HasAttribute(h) {
			return nil, fmt.Errorf("%w: %s hides undeclared attribute %q", ErrInvalidConfig, c.Type, h)
		}
		c.hidden[h] = struct{}{}
	}
	for _, rel := range c.Relationships {
		if rel.Name == "" {
			return nil, fmt.Errorf("%w: %s declares a relationship without a name", ErrInvalidConfig, c.Type)
		}
		if _, dup := c.relations[rel.Name]; dup {
			return nil, fmt.Errorf("%w: %s declares relationship %q twice", ErrInvalidConfig, c.Type, rel.Name)
		}
		if c.HasAttribute(rel.Name) {
			return nil, fmt.Errorf("%w: %s uses %q as attribute and relationship", ErrInvalidConfig, c.Type, rel.Name)
		}
		if rel.Cardinality != CardinalityOne && rel.Cardinality != CardinalityMany {
			return nil, fmt.Errorf("%w: %s.%s has invalid cardinality %q",
				ErrInvalidConfig, c.Type, rel.Name, rel.Cardinality)
		}
		c.relations[rel.Name] = rel
	}
	for _, s := range c.AllowedSorts {
		if !c.HasAttribute(s) && !slices.Contains(builtinSortFields, s) {
			return nil, fmt.Errorf("%w: %s allows sorting by unknown field %q", ErrInvalidConfig, c.Type, s)
		}
		c.sorts[s] = struct{}{}
	}
	for _, inc := range c.AllowedIncludes {
		if _, ok := c.relations[inc]; !ok {
			return nil, fmt.Errorf("%w: %s allows including undeclared relationship %q",
				ErrInvalidConfig, c.Type, inc)
		}
		c.includes[inc] = struct{}{}
	}
	return c, nil
}

func cloneRules(rs RuleSet) RuleSet {
	out := make(RuleSet, len(rs))
	for k, v := range rs {
		out[k] = v
	}
	return out
}

// Config returns the configuration of a registered type.
func (r *Registry) Config(typ string) (*ResourceTypeConfig, error) {
	c, ok := r.types[typ]
	if !ok {
		return nil, NewError(ErrUnknownResourceType, "resource type %q is not registered", typ)
	}
	return c, nil
}

// Relationship resolves (ownerType, relationName) to its descriptor.
// Relationship names are scoped to their owning type.
func (r *Registry) Relationship(ownerType, name string) (RelationshipDescriptor, error) {
	c, err := r.Config(ownerType)
	if err != nil {
		return RelationshipDescriptor{}, err
	}
	d, ok := c.Relationship(name)
	if !ok {
		return RelationshipDescriptor{}, NewError(ErrInvalidRelationship,
			"%s has no relationship named %q", ownerType, name)
	}
	return d, nil
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ string) bool {
	_, ok := r.types[typ]
	return ok
}

// Types returns the registered type names in lexical order.
func (r *Registry) Types() []string {
	return slices.Clone(r.names)
}
