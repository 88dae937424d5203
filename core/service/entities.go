package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"dtgate/utils/dynatrace"
)

// listEntities enumerates the entities of one kind inside a management
// zone, with the detail fields the aggregators read.
func listEntities(ctx context.Context, upstream Upstream, entityType, mz string) ([]dynatrace.Entity, error) {
	params := url.Values{}
	params.Set("entitySelector", fmt.Sprintf(`type(%s),mzName("%s")`, entityType, mz))
	params.Set("fields", "+properties,+fromRelationships,+tags")
	params.Set("pageSize", "200")

	raw, err := upstream.Get(ctx, "entities", params)
	if err != nil {
		return nil, err
	}
	var resp dynatrace.EntitiesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode entity listing: %w", err)
	}
	return resp.Entities, nil
}

// capEntities bounds an entity listing to the configured maximum. The cap
// is a pragmatic cost bound, not a correctness property.
func capEntities(entities []dynatrace.Entity, max int) []dynatrace.Entity {
	if max > 0 && len(entities) > max {
		return entities[:max]
	}
	return entities
}

// decodeEntity decodes an entity details payload, returning nil on any
// failure so callers can degrade per-entity.
func decodeEntity(raw json.RawMessage) *dynatrace.Entity {
	if raw == nil {
		return nil
	}
	var entity dynatrace.Entity
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil
	}
	return &entity
}
