package domain

import "github.com/phrazzld/folio-api/internal/jsonapi"

// Resource type names.
const (
	TypeAuthors  = "authors"
	TypeBooks    = "books"
	TypeComments = "comments"
)

// Authors describes the authors resource. Email addresses are stored but
// never rendered.
func Authors() jsonapi.ResourceTypeConfig {
	return jsonapi.ResourceTypeConfig{
		Type:             TypeAuthors,
		Attributes:       []string{"name", "email", "bio"},
		HiddenAttributes: []string{"email"},
		AllowedSorts:     []string{"id", "name", "created_at", "updated_at"},
		AllowedIncludes:  []string{"books", "comments"},
		Relationships: []jsonapi.RelationshipDescriptor{
			{Name: "books", TargetType: TypeBooks, Cardinality: jsonapi.CardinalityMany},
			{Name: "comments", TargetType: TypeComments, Cardinality: jsonapi.CardinalityMany},
		},
		Rules: jsonapi.ValidationRules{
			Create: jsonapi.RuleSet{
				"data.attributes.name":  "string,min=1,max=255",
				"data.attributes.email": "string,email,max=255",
			},
			Update: jsonapi.RuleSet{
				"data.attributes.name":  "string,min=1,max=255",
				"data.attributes.email": "string,email,max=255",
				"data.attributes.bio":   "omitempty,string,max=4000",
			},
		},
	}
}

// Books describes the books resource. Optional attributes accept null on
// update, which clears them.
func Books() jsonapi.ResourceTypeConfig {
	return jsonapi.ResourceTypeConfig{
		Type:            TypeBooks,
		Attributes:      []string{"title", "isbn", "pages", "summary"},
		AllowedSorts:    []string{"id", "title", "pages", "created_at", "updated_at"},
		AllowedIncludes: []string{"authors", "comments"},
		Relationships: []jsonapi.RelationshipDescriptor{
			{Name: "authors", TargetType: TypeAuthors, Cardinality: jsonapi.CardinalityMany},
			{Name: "comments", TargetType: TypeComments, Cardinality: jsonapi.CardinalityMany},
		},
		Rules: jsonapi.ValidationRules{
			Create: jsonapi.RuleSet{
				"data.attributes.title": "string,min=1,max=255",
				"data.attributes.pages": "integer,min=1",
			},
			Update: jsonapi.RuleSet{
				"data.attributes.title":   "string,min=1,max=255",
				"data.attributes.isbn":    "omitempty,string,isbn",
				"data.attributes.pages":   "integer,min=1",
				"data.attributes.summary": "omitempty,string,max=4000",
			},
		},
	}
}

// Comments describes the comments resource. A comment always belongs to a
// book; its author is optional.
func Comments() jsonapi.ResourceTypeConfig {
	return jsonapi.ResourceTypeConfig{
		Type:            TypeComments,
		Attributes:      []string{"body"},
		AllowedSorts:    []string{"id", "created_at", "updated_at"},
		AllowedIncludes: []string{"book", "author"},
		Relationships: []jsonapi.RelationshipDescriptor{
			{Name: "book", TargetType: TypeBooks, Cardinality: jsonapi.CardinalityOne},
			{Name: "author", TargetType: TypeAuthors, Cardinality: jsonapi.CardinalityOne},
		},
		Rules: jsonapi.ValidationRules{
			Create: jsonapi.RuleSet{
				"data.attributes.body":            "string,min=1,max=2000",
				"data.relationships.book.data.id": "string,min=1",
			},
			Update: jsonapi.RuleSet{
				"data.attributes.body":            "string,min=1,max=2000",
				"data.relationships.book.data.id": "string,min=1",
			},
		},
	}
}

// NewRegistry builds the registry of every resource type the API serves.
func NewRegistry() (*jsonapi.Registry, error) {
	return jsonapi.NewRegistry(Authors(), Books(), Comments())
}
