package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"dtgate/core/cache"
	"dtgate/core/models"
	"dtgate/utils/dynatrace"
)

// ServiceAggregator composes per-service records: point metrics over the
// last 24 hours, minute-resolution history for the first few services,
// monitoring state and technology classification.
type ServiceAggregator struct {
	upstream     Upstream
	dispatcher   *Dispatcher
	cache        *cache.Cache
	selection    *SelectionStore
	technology   *TechnologyResolver
	envURL       string
	maxEntities  int
	historyLimit int
	group        singleflight.Group
	now          func() time.Time
}

// NewServiceAggregator creates a service aggregator.
func NewServiceAggregator(
	upstream Upstream,
	dispatcher *Dispatcher,
	c *cache.Cache,
	selection *SelectionStore,
	technology *TechnologyResolver,
	envURL string,
	maxEntities, historyLimit int,
) *ServiceAggregator {
	return &ServiceAggregator{
		upstream:     upstream,
		dispatcher:   dispatcher,
		cache:        c,
		selection:    selection,
		technology:   technology,
		envURL:       envURL,
		maxEntities:  maxEntities,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// List returns the service records for the currently selected zone.
// Concurrent identical passes collapse onto a single upstream listing.
func (a *ServiceAggregator) List(ctx context.Context) ([]models.ServiceRecord, error) {
	mz := a.selection.Current()
	if mz == "" {
		return nil, ErrMissingZone
	}

	key := "services:" + mz
	if v, ok := a.cache.Get(key); ok {
		if records, ok := v.([]models.ServiceRecord); ok {
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
	return v.([]models.ServiceRecord), nil
}

// servicePlan indexes one service's queries inside the batch. A negative
// index means the query was not planned for this service.
type servicePlan struct {
	entity  dynatrace.Entity
	rt      int
	er      int
	req     int
	rtHist  int
	erHist  int
	reqHist int
	details int
}

func (a *ServiceAggregator) build(ctx context.Context, mz string) ([]models.ServiceRecord, error) {
	started := a.now()
	window := last24h(started)

	entities, err := listEntities(ctx, a.upstream, "SERVICE", mz)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return []models.ServiceRecord{}, nil
	}
	entities = capEntities(entities, a.maxEntities)

	var queries []Query
	plans := make([]servicePlan, 0, len(entities))
	for i, entity := range entities {
		id := entity.EntityID
		plan := servicePlan{
			entity: entity, rt: -1, er: -1, req: -1,
			rtHist: -1, erHist: -1, reqHist: -1, details: -1,
		}

		plan.rt = len(queries)
		queries = append(queries, Query{
			Path:     "metrics/query",
			Params:   metricQueryParams(metricServiceResponseTime, id, window, ""),
			UseCache: true,
			CacheKey: fmt.Sprintf("response_time:%s:%d:%d", id, window.From, window.To),
		})
		plan.er = len(queries)
		queries = append(queries, Query{
			Path:     "metrics/query",
			Params:   metricQueryParams(metricServiceErrorRate, id, window, ""),
			UseCache: true,
			CacheKey: fmt.Sprintf("error_rate:%s:%d:%d", id, window.From, window.To),
		})
		plan.req = len(queries)
		queries = append(queries, Query{
			Path:     "metrics/query",
			Params:   metricQueryParams(metricServiceRequests, id, window, ""),
			UseCache: true,
			CacheKey: fmt.Sprintf("requests:%s:%d:%d", id, window.From, window.To),
		})

		// History is bounded to the first few services to keep the
		// upstream call count in check.
		if i < a.historyLimit {
			plan.rtHist = len(queries)
			queries = append(queries, Query{
				Path:     "metrics/query",
				Params:   metricQueryParams(metricServiceResponseTime, id, window, "1m"),
				UseCache: true,
				CacheKey: fmt.Sprintf("rt_history:%s:%d:%d", id, window.From, window.To),
			})
			plan.erHist = len(queries)
			queries = append(queries, Query{
				Path:     "metrics/query",
				Params:   metricQueryParams(metricServiceErrorRate, id, window, "1m"),
				UseCache: true,
				CacheKey: fmt.Sprintf("er_history:%s:%d:%d", id, window.From, window.To),
			})
			plan.reqHist = len(queries)
			queries = append(queries, Query{
				Path:     "metrics/query",
				Params:   metricQueryParams(metricServiceRequests, id, window, "1m"),
				UseCache: true,
				CacheKey: fmt.Sprintf("req_history:%s:%d:%d", id, window.From, window.To),
			})
		}

		plan.details = len(queries)
		queries = append(queries, Query{
			Path:     "entities/" + id,
			UseCache: true,
			CacheKey: "service_details:" + id,
		})

		plans = append(plans, plan)
	}

	results := a.dispatcher.Batch(ctx, queries)

	records := make([]models.ServiceRecord, 0, len(plans))
	for _, plan := range plans {
		records = append(records, a.compose(plan, results))
	}

	log.Printf("Aggregated %d services for zone %q in %v (upstream requests: %d)",
		len(records), mz, time.Since(started), a.upstream.RequestCount())
	return records, nil
}

// compose assembles one service record; sub-query failures degrade the
// affected fields instead of failing the pass.
func (a *ServiceAggregator) compose(plan servicePlan, results []QueryResult) models.ServiceRecord {
	entity := plan.entity
	record := models.ServiceRecord{
		ID:     entity.EntityID,
		Name:   entity.DisplayName,
		Status: serviceStatus(&entity),
		DtURL:  fmt.Sprintf("%s/#serviceOverview;id=%s", a.envURL, entity.EntityID),
		History: models.ServiceHistory{
			ResponseTime: []models.HistoryPoint{},
			ErrorRate:    []models.HistoryPoint{},
			Requests:     []models.HistoryPoint{},
		},
	}

	if raw := firstMetricValue(results[plan.rt].Value); raw != nil {
		normalized := normalizeResponseTime(*raw)
		record.ResponseTime = &normalized
	}
	if raw := firstMetricValue(results[plan.er].Value); raw != nil {
		rate := round1(*raw)
		record.ErrorRate = &rate
	}
	if raw := firstMetricValue(results[plan.req].Value); raw != nil {
		requests := int64(*raw)
		record.Requests = &requests
	}

	if plan.rtHist >= 0 {
		record.History.ResponseTime = historyPoints(results[plan.rtHist].Value)
		record.History.ErrorRate = historyPoints(results[plan.erHist].Value)
		record.History.Requests = historyPoints(results[plan.reqHist].Value)
	}

	// Prefer the detail payload for classification; the listing entity is
	// the degraded fallback.
	detail := decodeEntity(results[plan.details].Value)
	if detail == nil {
		detail = &entity
	}
	tech := a.technology.Classify(entity.EntityID, detail)
	record.Technology = tech.Name
	record.TechIcon = tech.Icon

	return record
}

// serviceStatus derives the dashboard status from the monitoring state.
func serviceStatus(entity *dynatrace.Entity) string {
	monitoring := entity.Properties.Monitoring
	if monitoring != nil && monitoring.MonitoringState != "ACTIVE" {
		return "Inactive"
	}
	return "Active"
}
