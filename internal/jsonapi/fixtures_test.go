package jsonapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func peopleConfig() ResourceTypeConfig {
	return ResourceTypeConfig{
		Type:             "people",
		Attributes:       []string{"name", "email", "age"},
		HiddenAttributes: []string{"email"},
		AllowedSorts:     []string{"name", "created_at"},
		AllowedIncludes:  []string{"articles"},
		Relationships: []RelationshipDescriptor{
			{Name: "articles", TargetType: "articles", Cardinality: CardinalityMany},
		},
		Rules: ValidationRules{
			Create: RuleSet{
				"data.attributes.name": "string,min=1,max=50",
				"data.attributes.age":  "integer,min=0",
			},
			Update: RuleSet{
				"data.attributes.name":  "string,min=1,max=50",
				"data.attributes.age":   "integer,min=0",
				"data.attributes.email": "string,email",
			},
		},
	}
}

func articlesConfig() ResourceTypeConfig {
	return ResourceTypeConfig{
		Type:            "articles",
		Attributes:      []string{"title"},
		AllowedSorts:    []string{"title"},
		AllowedIncludes: []string{"author", "people"},
		Relationships: []RelationshipDescriptor{
			{Name: "author", TargetType: "people", Cardinality: CardinalityOne},
			{Name: "people", TargetType: "people", Cardinality: CardinalityMany},
		},
		Rules: ValidationRules{
			Create: RuleSet{"data.attributes.title": "string,min=1"},
			Update: RuleSet{"data.attributes.title": "string,min=1"},
		},
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(peopleConfig(), articlesConfig())
	require.NoError(t, err)
	return reg
}

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func person(id, name string) ResourceInstance {
	return ResourceInstance{
		ID:   id,
		Type: "people",
		Attributes: map[string]any{
			"name":  name,
			"email": name + "@example.com",
			"age":   30,
		},
		CreatedAt: fixedTime,
		UpdatedAt: fixedTime,
	}
}

func article(id, title string) ResourceInstance {
	return ResourceInstance{
		ID:         id,
		Type:       "articles",
		Attributes: map[string]any{"title": title},
		CreatedAt:  fixedTime,
		UpdatedAt:  fixedTime,
	}
}

// decode parses a JSON literal the way request bodies are decoded.
func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
