package jsonapi

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"
)

// MediaType is the JSON:API media type.
const MediaType = "application/vnd.api+json"

// ResourceRef identifies a resource without carrying any of its attributes.
type ResourceRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Linkage is the loaded content of a relationship: a single optional
// reference for to-one relations, an ordered list for to-many relations.
type Linkage struct {
	many bool
	one  *ResourceRef
	refs []ResourceRef
}

// ToOne builds to-one linkage. A nil ref means the relation is empty.
func ToOne(ref *ResourceRef) Linkage {
	if ref != nil {
		r := *ref
		ref = &r
	}
	return Linkage{one: ref}
}

// ToMany builds to-many linkage, ordered by id.
func ToMany(refs ...ResourceRef) Linkage {
	out := make([]ResourceRef, len(refs))
	copy(out, refs)
	sortRefs(out)
	return Linkage{many: true, refs: out}
}

// IsMany reports whether the linkage is to-many.
func (l Linkage) IsMany() bool { return l.many }

// One returns the to-one reference, nil when empty.
func (l Linkage) One() *ResourceRef { return l.one }

// Refs returns every referenced resource regardless of cardinality.
func (l Linkage) Refs() []ResourceRef {
	if l.many {
		return l.refs
	}
	if l.one == nil {
		return nil
	}
	return []ResourceRef{*l.one}
}

// IDs returns the referenced ids in order.
func (l Linkage) IDs() []string {
	refs := l.Refs()
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}

// MarshalJSON renders null, a single identifier, or an array.
func (l Linkage) MarshalJSON() ([]byte, error) {
	if l.many {
		if l.refs == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(l.refs)
	}
	return json.Marshal(l.one)
}

func sortRefs(refs []ResourceRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].ID != refs[j].ID {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].Type < refs[j].Type
	})
}

// ResourceInstance is a domain entity flattened for serialization. Instances
// live for a single request.
type ResourceInstance struct {
	ID         string
	Type       string
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Relations holds linkage the domain layer has already loaded. A missing
	// key means "not loaded", which is distinct from an empty relation.
	Relations map[string]Linkage
}

// Ref returns the identifier of the instance.
func (i ResourceInstance) Ref() ResourceRef {
	return ResourceRef{ID: i.ID, Type: i.Type}
}

// RelationshipLinks are the links of a relationship object.
type RelationshipLinks struct {
	Self    string `json:"self"`
	Related string `json:"related"`
}

// RelationshipObject is a member of a resource's relationships.
type RelationshipObject struct {
	Links RelationshipLinks `json:"links"`
	Data  *Linkage          `json:"data,omitempty"`
}

// ResourceLinks are the links of a resource object.
type ResourceLinks struct {
	Self string `json:"self"`
}

// ResourceObject is the serialized form of a resource.
type ResourceObject struct {
	ID            string                        `json:"id"`
	Type          string                        `json:"type"`
	Attributes    map[string]any                `json:"attributes"`
	Relationships map[string]RelationshipObject `json:"relationships,omitempty"`
	Links         *ResourceLinks                `json:"links,omitempty"`
}

// Document is a top-level JSON:API document. Data holds a *ResourceObject,
// a []ResourceObject or a Linkage.
type Document struct {
	Data     any               `json:"data"`
	Included []ResourceObject  `json:"included,omitempty"`
	Meta     map[string]any    `json:"meta,omitempty"`
	Links    map[string]string `json:"links,omitempty"`
}

// URLBuilder produces the canonical URLs of resources and relationships.
type URLBuilder struct {
	base string
}

// NewURLBuilder creates a builder rooted at base, e.g. "https://api.example.com".
// An empty base yields root-relative URLs.
func NewURLBuilder(base string) URLBuilder {
	return URLBuilder{base: strings.TrimRight(base, "/")}
}

// Collection returns the URL of a resource collection.
func (b URLBuilder) Collection(typ string) string {
	return b.base + "/" + url.PathEscape(typ)
}

// Resource returns the URL of a single resource.
func (b URLBuilder) Resource(typ, id string) string {
	return b.Collection(typ) + "/" + url.PathEscape(id)
}

// Relationship returns the relationship-linkage endpoint.
func (b URLBuilder) Relationship(typ, id, rel string) string {
	return b.Resource(typ, id) + "/relationships/" + url.PathEscape(rel)
}

// Related returns the related-resources endpoint.
func (b URLBuilder) Related(typ, id, rel string) string {
	return b.Resource(typ, id) + "/" + url.PathEscape(rel)
}
