package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"dtgate/core/cache"
	"dtgate/core/models"
	"dtgate/utils/dynatrace"
)

const (
	summaryAttempts = 3
	summaryBackoff  = 1 * time.Second
)

// Data quality levels reported by the summary aggregator.
const (
	QualityFull    = "full"
	QualityPartial = "partial"
	QualityError   = "error"
)

// SummaryService builds the one-shot environmental summary for the
// selected zone: entity counts, averaged host CPU, service error totals
// and open problem count.
type SummaryService struct {
	upstream    Upstream
	dispatcher  *Dispatcher
	cache       *cache.Cache
	selection   *SelectionStore
	problems    *ProblemService
	maxEntities int
	criticalCPU float64
	group       singleflight.Group
	now         func() time.Time
	sleep       func(time.Duration)
}

// NewSummaryService creates a summary service. criticalCPU is the
// percentage above which a host counts as critical.
func NewSummaryService(
	upstream Upstream,
	dispatcher *Dispatcher,
	c *cache.Cache,
	selection *SelectionStore,
	problems *ProblemService,
	maxEntities int,
	criticalCPU float64,
) *SummaryService {
	return &SummaryService{
		upstream:    upstream,
		dispatcher:  dispatcher,
		cache:       c,
		selection:   selection,
		problems:    problems,
		maxEntities: maxEntities,
		criticalCPU: criticalCPU,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Get returns the summary for the currently selected zone. The rolling
// window is anchored to the current minute so repeated requests within a
// minute share one cache entry.
func (s *SummaryService) Get(ctx context.Context) (*models.Summary, error) {
	mz := s.selection.Current()
	if mz == "" {
		return nil, ErrMissingZone
	}

	anchor := s.now().Truncate(time.Minute)
	window := metricWindow{
		From: anchor.Add(-24 * time.Hour).UnixMilli(),
		To:   anchor.UnixMilli(),
	}
	key := fmt.Sprintf("summary:%s:%d:%d", mz, window.From, window.To)
	if v, ok := s.cache.Get(key); ok {
		if summary, ok := v.(*models.Summary); ok {
			return summary, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
		summary := s.build(ctx, mz, window)
		s.cache.Set(key, summary)
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Summary), nil
}

// triple holds the three parallel listings the summary is built from.
type triple struct {
	services []dynatrace.Entity
	hosts    []dynatrace.Entity
	problems []models.ProblemRecord

	servicesOK bool
	hostsOK    bool
	problemsOK bool
}

func (s *SummaryService) build(ctx context.Context, mz string, window metricWindow) *models.Summary {
	started := s.now()

	t := s.fetchTriple(ctx, mz)
	summary := &models.Summary{
		Timestamp:   s.now().UnixMilli(),
		DataQuality: QualityFull,
	}
	switch {
	case !t.servicesOK && !t.hostsOK && !t.problemsOK:
		summary.DataQuality = QualityError
		log.Printf("Summary for zone %q degraded: all listings failed", mz)
		return summary
	case !t.servicesOK || !t.hostsOK || !t.problemsOK:
		summary.DataQuality = QualityPartial
		log.Printf("Summary for zone %q degraded: services=%v hosts=%v problems=%v",
			mz, t.servicesOK, t.hostsOK, t.problemsOK)
	}

	summary.Problems.Count = len(t.problems)
	summary.Hosts = s.hostStats(ctx, t.hosts, window)
	summary.Services, summary.Requests = s.serviceStats(ctx, t.services, window)

	log.Printf("Summary for zone %q built in %v (quality=%s)", mz, time.Since(started), summary.DataQuality)
	return summary
}

// fetchTriple runs the three listings in parallel, retrying the whole
// triple with a short backoff while any of them is missing.
func (s *SummaryService) fetchTriple(ctx context.Context, mz string) *triple {
	t := &triple{}
	for attempt := 1; attempt <= summaryAttempts; attempt++ {
		if attempt > 1 {
			s.sleep(summaryBackoff)
		}

		var g errgroup.Group
		if !t.servicesOK {
			g.Go(func() error {
				services, err := listEntities(ctx, s.upstream, "SERVICE", mz)
				if err == nil {
					t.services, t.servicesOK = services, true
				}
				return nil
			})
		}
		if !t.hostsOK {
			g.Go(func() error {
				hosts, err := listEntities(ctx, s.upstream, "HOST", mz)
				if err == nil {
					t.hosts, t.hostsOK = hosts, true
				}
				return nil
			})
		}
		if !t.problemsOK {
			g.Go(func() error {
				problems, err := s.problems.List(ctx, mz, "-24h", "OPEN")
				if err == nil {
					t.problems, t.problemsOK = problems, true
				}
				return nil
			})
		}
		g.Wait()

		if t.servicesOK && t.hostsOK && t.problemsOK {
			break
		}
		log.Printf("Summary listings incomplete for zone %q (attempt %d/%d)", mz, attempt, summaryAttempts)
	}
	return t
}

// hostStats fetches CPU for the first hosts and derives the average and
// critical count.
func (s *SummaryService) hostStats(ctx context.Context, hosts []dynatrace.Entity, window metricWindow) models.SummaryHosts {
	stats := models.SummaryHosts{Count: len(hosts)}
	hosts = capEntities(hosts, s.maxEntities)
	if len(hosts) == 0 {
		return stats
	}

	queries := make([]Query, 0, len(hosts))
	for _, host := range hosts {
		queries = append(queries, Query{
			Path:     "metrics/query",
			Params:   metricQueryParams(metricHostCPU, host.EntityID, window, ""),
			UseCache: true,
			CacheKey: fmt.Sprintf("summary_host_cpu:%s:%d:%d", host.EntityID, window.From, window.To),
		})
	}
	results := s.dispatcher.Batch(ctx, queries)

	var sum float64
	var present int
	for _, result := range results {
		value := firstMetricValue(result.Value)
		if value == nil {
			continue
		}
		cpu := clampPercent(*value)
		sum += cpu
		present++
		if cpu > s.criticalCPU {
			stats.CriticalCount++
		}
	}
	if present > 0 {
		stats.AvgCPU = int(math.Round(sum / float64(present)))
	}
	return stats
}

// serviceStats fetches request counts and error rates for the first
// services and derives the volume and error aggregates.
func (s *SummaryService) serviceStats(ctx context.Context, services []dynatrace.Entity, window metricWindow) (models.SummaryServices, models.SummaryRequests) {
	stats := models.SummaryServices{Count: len(services)}
	services = capEntities(services, s.maxEntities)
	if len(services) == 0 {
		return stats, models.SummaryRequests{}
	}

	queries := make([]Query, 0, 2*len(services))
	for _, svc := range services {
		queries = append(queries, Query{
			Path:     "metrics/query",
			Params:   metricQueryParams(metricServiceRequests, svc.EntityID, window, ""),
			UseCache: true,
			CacheKey: fmt.Sprintf("summary_service_requests:%s:%d:%d", svc.EntityID, window.From, window.To),
		})
		queries = append(queries, Query{
			Path:     "metrics/query",
			Params:   metricQueryParams(metricServiceErrorRate, svc.EntityID, window, ""),
			UseCache: true,
			CacheKey: fmt.Sprintf("summary_service_errors:%s:%d:%d", svc.EntityID, window.From, window.To),
		})
	}
	results := s.dispatcher.Batch(ctx, queries)

	var total int64
	var errorSum float64
	for i := 0; i < len(results); i += 2 {
		if value := firstMetricValue(results[i].Value); value != nil {
			total += int64(*value)
		}
		if value := firstMetricValue(results[i+1].Value); value != nil && *value > 0 {
			stats.WithErrors++
			errorSum += *value
		}
	}
	if stats.WithErrors > 0 {
		stats.AvgErrorRate = round1(errorSum / float64(stats.WithErrors))
	}

	return stats, models.SummaryRequests{
		Total:     total,
		HourlyAvg: int64(math.Round(float64(total) / 24)),
	}
}
