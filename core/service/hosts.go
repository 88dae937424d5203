package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"dtgate/core/cache"
	"dtgate/core/models"
	"dtgate/utils/dynatrace"
)

// osTagKeys are the tag keys consulted for the host OS fallback, in order.
var osTagKeys = []string{"OS", "os", "Operating System", "system"}

// HostAggregator composes per-host records: CPU and RAM point metrics
// over the last 24 hours, hour-resolution history for the first few
// hosts, and the OS version.
type HostAggregator struct {
	upstream     Upstream
	dispatcher   *Dispatcher
	cache        *cache.Cache
	selection    *SelectionStore
	envURL       string
	maxEntities  int
	historyLimit int
	group        singleflight.Group
	now          func() time.Time
}

// NewHostAggregator creates a host aggregator.
func NewHostAggregator(
	upstream Upstream,
	dispatcher *Dispatcher,
	c *cache.Cache,
	selection *SelectionStore,
	envURL string,
	maxEntities, historyLimit int,
) *HostAggregator {
	return &HostAggregator{
		upstream:     upstream,
		dispatcher:   dispatcher,
		cache:        c,
		selection:    selection,
		envURL:       envURL,
		maxEntities:  maxEntities,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// List returns the host records for the currently selected zone.
func (a *HostAggregator) List(ctx context.Context) ([]models.HostRecord, error) {
	mz := a.selection.Current()
	if mz == "" {
		return nil, ErrMissingZone
	}

	key := "hosts:" + mz
	if v, ok := a.cache.Get(key); ok {
		if records, ok := v.([]models.HostRecord); ok {
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
	return v.([]models.HostRecord), nil
}

type hostPlan struct {
	entity  dynatrace.Entity
	cpu     int
	ram     int
	cpuHist int
	ramHist int
	details int
}

func (a *HostAggregator) build(ctx context.Context, mz string) ([]models.HostRecord, error) {
	started := a.now()
	window := last24h(started)

	entities, err := listEntities(ctx, a.upstream, "HOST", mz)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return []models.HostRecord{}, nil
	}
	entities = capEntities(entities, a.maxEntities)

	var queries []Query
	plans := make([]hostPlan, 0, len(entities))
	for i, entity := range entities {
		id := entity.EntityID
		plan := hostPlan{entity: entity, cpu: -1, ram: -1, cpuHist: -1, ramHist: -1, details: -1}

		plan.cpu = len(queries)
		queries = append(queries, Query{
			Path:     "metrics/query",
			Params:   metricQueryParams(metricHostCPU, id, window, ""),
			UseCache: true,
			CacheKey: fmt.Sprintf("cpu_usage:%s:%d:%d", id, window.From, window.To),
		})
		plan.ram = len(queries)
		queries = append(queries, Query{
			Path:     "metrics/query",
			Params:   metricQueryParams(metricHostRAM, id, window, ""),
			UseCache: true,
			CacheKey: fmt.Sprintf("ram_usage:%s:%d:%d", id, window.From, window.To),
		})

		if i < a.historyLimit {
			plan.cpuHist = len(queries)
			queries = append(queries, Query{
				Path:     "metrics/query",
				Params:   metricQueryParams(metricHostCPU, id, window, "1h"),
				UseCache: true,
				CacheKey: fmt.Sprintf("cpu_history:%s:%d:%d", id, window.From, window.To),
			})
			plan.ramHist = len(queries)
			queries = append(queries, Query{
				Path:     "metrics/query",
				Params:   metricQueryParams(metricHostRAM, id, window, "1h"),
				UseCache: true,
				CacheKey: fmt.Sprintf("ram_history:%s:%d:%d", id, window.From, window.To),
			})
		}

		plan.details = len(queries)
		queries = append(queries, Query{
			Path:     "entities/" + id,
			UseCache: true,
			CacheKey: "host_details:" + id,
		})

		plans = append(plans, plan)
	}

	results := a.dispatcher.Batch(ctx, queries)

	records := make([]models.HostRecord, 0, len(plans))
	for _, plan := range plans {
		records = append(records, a.compose(plan, results))
	}

	log.Printf("Aggregated %d hosts for zone %q in %v (upstream requests: %d)",
		len(records), mz, time.Since(started), a.upstream.RequestCount())
	return records, nil
}

func (a *HostAggregator) compose(plan hostPlan, results []QueryResult) models.HostRecord {
	entity := plan.entity
	record := models.HostRecord{
		ID:    entity.EntityID,
		Name:  entity.DisplayName,
		DtURL: fmt.Sprintf("%s/#newhosts/hostdetails;id=%s", a.envURL, entity.EntityID),
		History: models.HostHistory{
			CPU: []models.HistoryPoint{},
			RAM: []models.HistoryPoint{},
		},
	}

	// Scalar CPU/RAM are rendered as integers; history keeps floats.
	if raw := firstMetricValue(results[plan.cpu].Value); raw != nil {
		cpu := math.Round(clampPercent(*raw))
		record.CPU = &cpu
	}
	if raw := firstMetricValue(results[plan.ram].Value); raw != nil {
		ram := math.Round(clampPercent(*raw))
		record.RAM = &ram
	}

	if plan.cpuHist >= 0 {
		record.History.CPU = clampHistory(historyPoints(results[plan.cpuHist].Value))
		record.History.RAM = clampHistory(historyPoints(results[plan.ramHist].Value))
	}

	detail := decodeEntity(results[plan.details].Value)
	if detail == nil {
		detail = &entity
	}
	record.OSVersion = osVersion(detail)

	return record
}

func clampHistory(points []models.HistoryPoint) []models.HistoryPoint {
	for i := range points {
		points[i].Value = clampPercent(points[i].Value)
	}
	return points
}

// osVersion renders the host OS description from structured properties,
// falling back to tags and finally the unspecified placeholder.
func osVersion(entity *dynatrace.Entity) string {
	props := entity.Properties
	switch {
	case props.OsType != "" && props.OsVersion != "":
		return fmt.Sprintf("%s %s", props.OsType, props.OsVersion)
	case props.OsVersion != "" && props.KernelVersion != "":
		return fmt.Sprintf("%s (Kernel %s)", props.OsVersion, props.KernelVersion)
	case props.KernelVersion != "":
		return fmt.Sprintf("Kernel %s", props.KernelVersion)
	}

	for _, key := range osTagKeys {
		for _, tag := range entity.Tags {
			if strings.EqualFold(tag.Key, key) && tag.Value != "" {
				return tag.Value
			}
		}
	}
	return NotSpecified
}
