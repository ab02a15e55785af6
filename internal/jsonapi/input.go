package jsonapi

// ResourceInput is the write payload of a create or update request.
type ResourceInput struct {
	ID         string
	Type       string
	Attributes map[string]any
	// ToOne maps a to-one relationship to the linked id, nil to clear it.
	ToOne map[string]*string
	// ToMany maps a to-many relationship to its complete new membership.
	ToMany map[string][]string
}

// InputFromDocument extracts the write payload of a document that has passed
// Validate. Relationships not named in the document are left out, so an
// update only touches what the client sent.
func InputFromDocument(registry *Registry, body any) (ResourceInput, error) {
	data, err := primaryData(body)
	if err != nil {
		return ResourceInput{}, err
	}
	typ, _ := data["type"].(string)
	cfg, err := registry.Config(typ)
	if err != nil {
		return ResourceInput{}, err
	}

	in := ResourceInput{Type: typ, Attributes: map[string]any{}}
	in.ID, _ = data["id"].(string)
	if attrs, ok := data["attributes"].(map[string]any); ok {
		for k, v := range attrs {
			if cfg.HasAttribute(k) {
				in.Attributes[k] = v
			}
		}
	}

	rels, _ := data["relationships"].(map[string]any)
	for name, raw := range rels {
		desc, ok := cfg.Relationship(name)
		if !ok {
			return ResourceInput{}, NewError(ErrInvalidRelationship, "%s has no relationship named %q", typ, name).
				AtPointer("/data/relationships/" + name)
		}
		obj, _ := raw.(map[string]any)
		linkage := obj["data"]
		switch desc.Cardinality {
		case CardinalityOne:
			if in.ToOne == nil {
				in.ToOne = map[string]*string{}
			}
			var id *string
			if m, ok := linkage.(map[string]any); ok {
				s, _ := m["id"].(string)
				id = &s
			}
			in.ToOne[name] = id
		case CardinalityMany:
			if in.ToMany == nil {
				in.ToMany = map[string][]string{}
			}
			items, _ := linkage.([]any)
			ids := make([]string, 0, len(items))
			for _, item := range items {
				if m, ok := item.(map[string]any); ok {
					s, _ := m["id"].(string)
					ids = append(ids, s)
				}
			}
			in.ToMany[name] = ids
		}
	}
	return in, nil
}
