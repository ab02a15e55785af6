package jsonapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Valid(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	assert.Equal(t, []string{"articles", "people"}, reg.Types())
	assert.True(t, reg.Has("people"))
	assert.False(t, reg.Has("widgets"))

	cfg, err := reg.Config("people")
	require.NoError(t, err)
	assert.True(t, cfg.HasAttribute("name"))
	assert.True(t, cfg.IsHidden("email"))
	assert.True(t, cfg.AllowsSort("created_at"))
	assert.False(t, cfg.AllowsSort("age"))
	assert.True(t, cfg.AllowsInclude("articles"))
}

func TestNewRegistry_AllowsCycles(t *testing.T) {
	t.Parallel()

	// people -> articles -> people, registered in either order.
	_, err := NewRegistry(articlesConfig(), peopleConfig())
	require.NoError(t, err)
}

func TestNewRegistry_InvalidConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *ResourceTypeConfig)
		extra  bool
	}{
		{
			name:   "empty type name",
			mutate: func(c *ResourceTypeConfig) { c.Type = "" },
		},
		{
			name:   "unregistered target",
			mutate: func(c *ResourceTypeConfig) { c.Relationships[0].TargetType = "widgets" },
		},
		{
			name:   "invalid cardinality",
			mutate: func(c *ResourceTypeConfig) { c.Relationships[0].Cardinality = "several" },
		},
		{
			name: "duplicate relationship",
			mutate: func(c *ResourceTypeConfig) {
				c.Relationships = append(c.Relationships, c.Relationships[0])
			},
		},
		{
			name: "relationship shadows attribute",
			mutate: func(c *ResourceTypeConfig) {
				c.Attributes = append(c.Attributes, "articles")
			},
		},
		{
			name:   "include of undeclared relationship",
			mutate: func(c *ResourceTypeConfig) { c.AllowedIncludes = []string{"friends"} },
		},
		{
			name:   "sort by unknown field",
			mutate: func(c *ResourceTypeConfig) { c.AllowedSorts = []string{"shoe_size"} },
		},
		{
			name:   "hidden attribute not declared",
			mutate: func(c *ResourceTypeConfig) { c.HiddenAttributes = []string{"password"} },
		},
		{
			name:   "duplicate type",
			mutate: func(c *ResourceTypeConfig) { c.Type = "articles" },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := peopleConfig()
			tt.mutate(&cfg)
			_, err := NewRegistry(cfg, articlesConfig())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestNewRegistry_CopiesInput(t *testing.T) {
	t.Parallel()

	cfg := peopleConfig()
	reg, err := NewRegistry(cfg, articlesConfig())
	require.NoError(t, err)

	cfg.Attributes[0] = "mutated"
	cfg.Rules.Create["data.attributes.extra"] = "string"

	got, err := reg.Config("people")
	require.NoError(t, err)
	assert.Equal(t, "name", got.Attributes[0])
	assert.NotContains(t, got.Rules.Create, "data.attributes.extra")
}

func TestRegistry_Config_Unknown(t *testing.T) {
	t.Parallel()

	_, err := testRegistry(t).Config("widgets")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownResourceType)
}

func TestRegistry_Relationship(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)

	d, err := reg.Relationship("articles", "author")
	require.NoError(t, err)
	assert.Equal(t, RelationshipDescriptor{Name: "author", TargetType: "people", Cardinality: CardinalityOne}, d)

	// Names are scoped to their owner: people has no "author".
	_, err = reg.Relationship("people", "author")
	assert.ErrorIs(t, err, ErrInvalidRelationship)

	_, err = reg.Relationship("widgets", "author")
	assert.ErrorIs(t, err, ErrUnknownResourceType)
}
