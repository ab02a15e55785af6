package sqlstore

import (
	"fmt"

	"github.com/phrazzld/folio-api/internal/domain"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/store"
)

// RelationKind is the storage shape of a relationship.
type RelationKind int

// Storage shapes.
const (
	// BelongsTo stores the target id in a column of the owner's row.
	BelongsTo RelationKind = iota + 1
	// HasMany stores the owner id in a column of each target row.
	HasMany
	// BelongsToMany stores (owner, target) pairs in a pivot table.
	BelongsToMany
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongsTo"
	case HasMany:
		return "hasMany"
	case BelongsToMany:
		return "belongsToMany"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

// RelationMapping locates a relationship in storage. Membership of any kind
// is read as "SELECT OwnerColumn, TargetColumn FROM Table".
type RelationMapping struct {
	Kind         RelationKind
	Table        string
	OwnerColumn  string
	TargetColumn string
	// Nullable reports whether the foreign key column may be cleared. Pivot
	// rows can always be removed.
	Nullable bool
}

// TableMapping maps a resource type onto a table. Attribute names are used
// as column names.
type TableMapping struct {
	Table     string
	Relations map[string]RelationMapping
}

// Schema maps every resource type onto storage.
type Schema map[string]TableMapping

// Check verifies that every registered type and relationship is mapped
// with a storage shape matching its cardinality.
func (s Schema) Check(registry *jsonapi.Registry) error {
	for _, typ := range registry.Types() {
		cfg, _ := registry.Config(typ)
		tm, ok := s[typ]
		if !ok {
			return fmt.Errorf("%w: type %s", store.ErrUnmapped, typ)
		}
		for _, rel := range cfg.Relationships {
			rm, ok := tm.Relations[rel.Name]
			if !ok {
				return fmt.Errorf("%w: relationship %s.%s", store.ErrUnmapped, typ, rel.Name)
			}
			wantOne := rel.Cardinality == jsonapi.CardinalityOne
			if wantOne != (rm.Kind == BelongsTo) {
				return fmt.Errorf("%w: %s.%s is %s but stored as %s",
					store.ErrUnmapped, typ, rel.Name, rel.Cardinality, rm.Kind)
			}
		}
	}
	return nil
}

func (s Schema) table(typ string) (TableMapping, error) {
	tm, ok := s[typ]
	if !ok {
		return TableMapping{}, fmt.Errorf("%w: type %s", store.ErrUnmapped, typ)
	}
	return tm, nil
}

func (s Schema) relation(ownerType, rel string) (RelationMapping, error) {
	tm, err := s.table(ownerType)
	if err != nil {
		return RelationMapping{}, err
	}
	rm, ok := tm.Relations[rel]
	if !ok {
		return RelationMapping{}, fmt.Errorf("%w: relationship %s.%s", store.ErrUnmapped, ownerType, rel)
	}
	return rm, nil
}

// LibrarySchema maps the authors, books and comments types onto the tables
// created by the embedded migrations.
func LibrarySchema() Schema {
	return Schema{
		domain.TypeAuthors: {
			Table: "authors",
			Relations: map[string]RelationMapping{
				"books": {
					Kind: BelongsToMany, Table: "author_book",
					OwnerColumn: "author_id", TargetColumn: "book_id",
				},
				"comments": {
					Kind: HasMany, Table: "comments",
					OwnerColumn: "author_id", TargetColumn: "id", Nullable: true,
				},
			},
		},
		domain.TypeBooks: {
			Table: "books",
			Relations: map[string]RelationMapping{
				"authors": {
					Kind: BelongsToMany, Table: "author_book",
					OwnerColumn: "book_id", TargetColumn: "author_id",
				},
				"comments": {
					Kind: HasMany, Table: "comments",
					OwnerColumn: "book_id", TargetColumn: "id",
				},
			},
		},
		domain.TypeComments: {
			Table: "comments",
			Relations: map[string]RelationMapping{
				"book": {
					Kind: BelongsTo, Table: "comments",
					OwnerColumn: "id", TargetColumn: "book_id",
				},
				"author": {
					Kind: BelongsTo, Table: "comments",
					OwnerColumn: "id", TargetColumn: "author_id", Nullable: true,
				},
			},
		},
	}
}
