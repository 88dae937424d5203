package service

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"time"

	"dtgate/core/models"
	"dtgate/utils/dynatrace"
)

// Upstream metric selectors used by the aggregators. The metric set is
// fixed; there is no general-purpose query surface.
const (
	metricServiceResponseTime = "builtin:service.response.time"
	metricServiceErrorRate    = "builtin:service.errors.total.rate"
	metricServiceRequests     = "builtin:service.requestCount.total"
	metricHostCPU             = "builtin:host.cpu.usage"
	metricHostRAM             = "builtin:host.mem.usage"
)

// metricWindow is the rolling aggregation window in millisecond epochs.
type metricWindow struct {
	From int64
	To   int64
}

// last24h returns the rolling 24 hour window anchored at now.
func last24h(now time.Time) metricWindow {
	return metricWindow{
		From: now.Add(-24 * time.Hour).UnixMilli(),
		To:   now.UnixMilli(),
	}
}

// metricQueryParams builds the query string for a metrics/query call
// scoped to a single entity.
func metricQueryParams(selector, entityID string, w metricWindow, resolution string) url.Values {
	params := url.Values{}
	params.Set("metricSelector", selector)
	params.Set("entitySelector", "entityId("+entityID+")")
	params.Set("from", strconv.FormatInt(w.From, 10))
	params.Set("to", strconv.FormatInt(w.To, 10))
	if resolution != "" {
		params.Set("resolution", resolution)
	}
	return params
}

// firstMetricValue extracts the first non-null sample of the first series
// in a metrics/query payload, or nil when the payload carries no value.
func firstMetricValue(raw json.RawMessage) *float64 {
	if raw == nil {
		return nil
	}
	var resp dynatrace.MetricsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	if len(resp.Result) == 0 || len(resp.Result[0].Data) == 0 {
		return nil
	}
	for _, v := range resp.Result[0].Data[0].Values {
		if v != nil {
			val := *v
			return &val
		}
	}
	return nil
}

// historyPoints converts a metrics/query payload into a history series,
// dropping null samples. A nil or undecodable payload yields an empty
// series, never nil.
func historyPoints(raw json.RawMessage) []models.HistoryPoint {
	points := []models.HistoryPoint{}
	if raw == nil {
		return points
	}
	var resp dynatrace.MetricsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return points
	}
	if len(resp.Result) == 0 || len(resp.Result[0].Data) == 0 {
		return points
	}
	series := resp.Result[0].Data[0]
	for i, v := range series.Values {
		if v == nil || i >= len(series.Timestamps) {
			continue
		}
		points = append(points, models.HistoryPoint{
			Timestamp: series.Timestamps[i],
			Value:     *v,
		})
	}
	return points
}

// normalizeResponseTime converts a raw response time to seconds with two
// decimals. Raw values below 10 are already seconds; larger values are
// microseconds-as-milliseconds and divided by 1000.
func normalizeResponseTime(raw float64) float64 {
	if raw < 10 {
		return round2(raw)
	}
	return round2(raw / 1000)
}

// clampPercent bounds a percentage value to [0, 100].
func clampPercent(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
