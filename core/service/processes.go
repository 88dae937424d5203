package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"dtgate/core/cache"
	"dtgate/core/models"
)

// ProcessAggregator lists process groups for a zone with their technology
// classification. Process groups carry no metric queries.
type ProcessAggregator struct {
	upstream    Upstream
	dispatcher  *Dispatcher
	cache       *cache.Cache
	selection   *SelectionStore
	technology  *TechnologyResolver
	envURL      string
	maxEntities int
	group       singleflight.Group
	now         func() time.Time
}

// NewProcessAggregator creates a process group aggregator.
func NewProcessAggregator(
	upstream Upstream,
	dispatcher *Dispatcher,
	c *cache.Cache,
	selection *SelectionStore,
	technology *TechnologyResolver,
	envURL string,
	maxEntities int,
) *ProcessAggregator {
	return &ProcessAggregator{
		upstream:    upstream,
		dispatcher:  dispatcher,
		cache:       c,
		selection:   selection,
		technology:  technology,
		envURL:      envURL,
		maxEntities: maxEntities,
		now:         time.Now,
	}
}

// List returns the process group records for the currently selected zone.
func (a *ProcessAggregator) List(ctx context.Context) ([]models.ProcessRecord, error) {
	mz := a.selection.Current()
	if mz == "" {
		return nil, ErrMissingZone
	}

	key := "processes:" + mz
	if v, ok := a.cache.Get(key); ok {
		if records, ok := v.([]models.ProcessRecord); ok {
			return records, nil
		}
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		if v, ok := a.cache.Get(key); ok {
			return v, nil
		}
		records, err := a.build(ctx, mz)
		if err != nil {
			return nil, err
		}
		a.cache.Set(key, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.ProcessRecord), nil
}

func (a *ProcessAggregator) build(ctx context.Context, mz string) ([]models.ProcessRecord, error) {
	started := a.now()

	entities, err := listEntities(ctx, a.upstream, "PROCESS_GROUP", mz)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return []models.ProcessRecord{}, nil
	}
	entities = capEntities(entities, a.maxEntities)

	queries := make([]Query, 0, len(entities))
	for _, entity := range entities {
		queries = append(queries, Query{
			Path:     "entities/" + entity.EntityID,
			UseCache: true,
			CacheKey: "process_details:" + entity.EntityID,
		})
	}
	results := a.dispatcher.Batch(ctx, queries)

	records := make([]models.ProcessRecord, 0, len(entities))
	for i, entity := range entities {
		detail := decodeEntity(results[i].Value)
		if detail == nil {
			detail = &entities[i]
		}
		tech := a.technology.Classify(entity.EntityID, detail)
		records = append(records, models.ProcessRecord{
			ID:         entity.EntityID,
			Name:       entity.DisplayName,
			Technology: tech.Name,
			TechIcon:   tech.Icon,
			DtURL:      fmt.Sprintf("%s/#processgroupdetails;id=%s", a.envURL, entity.EntityID),
		})
	}

	log.Printf("Aggregated %d process groups for zone %q in %v",
		len(records), mz, time.Since(started))
	return records, nil
}
