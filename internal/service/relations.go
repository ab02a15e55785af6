package service

import (
	"context"
	"sort"

	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/store"
)

// loadRelations fills Relations on every instance for the named
// relationships. All instances must share one type. When withIncluded is
// set, the related instances are fetched and returned for a compound
// document, ordered by type then id.
func loadRelations(
	ctx context.Context,
	registry *jsonapi.Registry,
	resources store.ResourceStore,
	relations store.RelationshipStore,
	instances []jsonapi.ResourceInstance,
	names []string,
	withIncluded bool,
) ([]jsonapi.ResourceInstance, error) {
	if len(instances) == 0 || len(names) == 0 {
		return nil, nil
	}
	typ := instances[0].Type
	cfg, err := registry.Config(typ)
	if err != nil {
		return nil, err
	}

	ownerIDs := make([]string, len(instances))
	for i, inst := range instances {
		ownerIDs[i] = inst.ID
	}

	targets := map[string][]string{}
	for _, name := range names {
		desc, ok := cfg.Relationship(name)
		if !ok {
			return nil, jsonapi.NewError(jsonapi.ErrInvalidRelationship, "%s has no relationship named %q", typ, name)
		}
		members, err := relations.Members(ctx, typ, name, ownerIDs)
		if err != nil {
			return nil, translate("load relationship", err, typ, name)
		}
		for i := range instances {
			ids := members[instances[i].ID]
			if instances[i].Relations == nil {
				instances[i].Relations = make(map[string]jsonapi.Linkage, len(names))
			}
			instances[i].Relations[name] = linkageOf(desc, ids)
			targets[desc.TargetType] = append(targets[desc.TargetType], ids...)
		}
	}
	if !withIncluded {
		return nil, nil
	}

	types := make([]string, 0, len(targets))
	for t := range targets {
		types = append(types, t)
	}
	sort.Strings(types)

	var included []jsonapi.ResourceInstance
	for _, t := range types {
		found, err := resources.GetMany(ctx, t, targets[t])
		if err != nil {
			return nil, translate("load included", err, t, "")
		}
		included = append(included, found...)
	}
	return included, nil
}

// linkageOf builds linkage of the descriptor's cardinality from member ids.
func linkageOf(desc jsonapi.RelationshipDescriptor, ids []string) jsonapi.Linkage {
	if desc.Cardinality == jsonapi.CardinalityOne {
		if len(ids) == 0 {
			return jsonapi.ToOne(nil)
		}
		return jsonapi.ToOne(&jsonapi.ResourceRef{ID: ids[0], Type: desc.TargetType})
	}
	refs := make([]jsonapi.ResourceRef, len(ids))
	for i, id := range ids {
		refs[i] = jsonapi.ResourceRef{ID: id, Type: desc.TargetType}
	}
	return jsonapi.ToMany(refs...)
}

func relationshipNames(cfg *jsonapi.ResourceTypeConfig) []string {
	names := make([]string, len(cfg.Relationships))
	for i, r := range cfg.Relationships {
		names[i] = r.Name
	}
	return names
}

// dedupe drops repeated ids, keeping first occurrences in order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// diff returns the members of current missing from want and the members of
// want missing from current, each in input order.
func diff(current, want []string) (removed, added []string) {
	inWant := make(map[string]struct{}, len(want))
	for _, id := range want {
		inWant[id] = struct{}{}
	}
	inCurrent := make(map[string]struct{}, len(current))
	for _, id := range current {
		inCurrent[id] = struct{}{}
		if _, ok := inWant[id]; !ok {
			removed = append(removed, id)
		}
	}
	for _, id := range want {
		if _, ok := inCurrent[id]; !ok {
			added = append(added, id)
		}
	}
	return removed, added
}
