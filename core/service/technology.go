package service

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"dtgate/core/cache"
	"dtgate/core/models"
	"dtgate/utils/dynatrace"
)

// iconTable maps technology name fragments to dashboard icons, in
// precedence order. The first fragment found in the lower-cased
// technology name wins.
var iconTable = []struct {
	fragments []string
	icon      string
}{
	{[]string{"java"}, "coffee"},
	{[]string{"python"}, "snake"},
	{[]string{"node"}, "node"},
	{[]string{"php"}, "elephant"},
	{[]string{"dot", ".net"}, "windows"},
	{[]string{"ruby"}, "gem"},
	{[]string{"go"}, "gopher"},
	{[]string{"sql", "postgres", "oracle", "mongo", "db"}, "database"},
}

// nameKeywords is the closed table used to infer a technology from an
// entity display name when no structured data is available.
var nameKeywords = []struct {
	keyword string
	tech    string
}{
	{"java", "JAVA"},
	{"tomcat", "TOMCAT"},
	{"python", "PYTHON"},
	{"node", "NODEJS"},
	{"php", "PHP"},
	{".net", "DOTNET"},
	{"dotnet", "DOTNET"},
	{"ruby", "RUBY"},
	{"golang", "GO"},
	{"postgres", "POSTGRESQL"},
	{"oracle", "ORACLE_DB"},
	{"mongo", "MONGODB"},
	{"mysql", "MYSQL"},
	{"mssql", "MSSQL"},
	{"sql", "SQL"},
	{"nginx", "NGINX"},
	{"apache", "APACHE"},
}

var unknownTechnology = models.Technology{Name: NotSpecified, Icon: "question"}

// TechnologyResolver derives a technology name/icon pair for an entity
// from its upstream details, caching per-entity results.
type TechnologyResolver struct {
	upstream Upstream
	cache    *cache.Cache
}

// NewTechnologyResolver creates a technology resolver.
func NewTechnologyResolver(upstream Upstream, c *cache.Cache) *TechnologyResolver {
	return &TechnologyResolver{upstream: upstream, cache: c}
}

// Resolve returns the technology classification for the entity id,
// fetching entity details when no cached result exists. Failures are
// absorbed and yield the unknown classification.
func (r *TechnologyResolver) Resolve(ctx context.Context, entityID string) models.Technology {
	if tech, ok := r.cached(entityID); ok {
		return tech
	}

	raw, err := r.upstream.Get(ctx, "entities/"+entityID, nil)
	if err != nil {
		log.Printf("Technology lookup failed for %s: %v", entityID, err)
		return unknownTechnology
	}
	var entity dynatrace.Entity
	if err := json.Unmarshal(raw, &entity); err != nil {
		log.Printf("Technology lookup failed for %s: undecodable details: %v", entityID, err)
		return unknownTechnology
	}
	return r.Classify(entityID, &entity)
}

// Classify derives the technology from already-fetched entity details and
// caches the result under the entity id. It is deterministic for fixed
// details.
func (r *TechnologyResolver) Classify(entityID string, entity *dynatrace.Entity) models.Technology {
	if tech, ok := r.cached(entityID); ok {
		return tech
	}

	tech := classifyEntity(entity)
	r.cache.Set("technology:"+entityID, tech)
	return tech
}

func (r *TechnologyResolver) cached(entityID string) (models.Technology, bool) {
	v, ok := r.cache.Get("technology:" + entityID)
	if !ok {
		return models.Technology{}, false
	}
	tech, ok := v.(models.Technology)
	return tech, ok
}

// classifyEntity resolves technology types in precedence order:
// structured properties, relationships, the Technology tag, then keyword
// inference from the display name.
func classifyEntity(entity *dynatrace.Entity) models.Technology {
	if entity == nil {
		return unknownTechnology
	}

	types := technologyTypes(entity.Properties.SoftwareTechnologies)
	if len(types) == 0 {
		types = technologyTypes(entity.FromRelationships.SoftwareTechnologies)
	}
	if len(types) == 0 {
		for _, tag := range entity.Tags {
			if strings.EqualFold(tag.Key, "Technology") && tag.Value != "" {
				types = []string{tag.Value}
				break
			}
		}
	}
	if len(types) == 0 {
		name := strings.ToLower(entity.DisplayName)
		for _, kw := range nameKeywords {
			if strings.Contains(name, kw.keyword) {
				types = []string{kw.tech}
				break
			}
		}
	}

	if len(types) == 0 {
		return unknownTechnology
	}
	return models.Technology{
		Name: strings.Join(types, ", "),
		Icon: iconFor(types[0]),
	}
}

func technologyTypes(infos []dynatrace.TechnologyInfo) []string {
	var types []string
	for _, info := range infos {
		if info.Type != "" {
			types = append(types, info.Type)
		}
	}
	return types
}

// iconFor maps a technology name to its dashboard icon via the precedence
// table. Technologies with no table entry get the generic code icon.
func iconFor(tech string) string {
	lower := strings.ToLower(tech)
	for _, row := range iconTable {
		for _, fragment := range row.fragments {
			// "go" only matches as a prefix, otherwise MONGODB would
			// resolve to the gopher icon.
			if fragment == "go" {
				if strings.HasPrefix(lower, "go") {
					return row.icon
				}
				continue
			}
			if strings.Contains(lower, fragment) {
				return row.icon
			}
		}
	}
	return "code"
}
