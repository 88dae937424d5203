package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dtgate/core/cache"
	"dtgate/core/models"
	"dtgate/utils/dynatrace"
)

const defaultProblemWindow = 72 * time.Hour

// timeFromPattern accepts relative windows of the form -Nh or -Nd.
var timeFromPattern = regexp.MustCompile(`^-(\d+)([hd])$`)

// hostPatterns extract an impacted host name from a problem title, in
// precedence order. The stricter trailing patterns also run against the
// problem description.
var hostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`HOST:\s*(\S+)`),
	regexp.MustCompile(`(?i)\bhost\s+(\S+)`),
	regexp.MustCompile(`(?i)\bon\s+(\S+)`),
	regexp.MustCompile(`(?i)\bat\s+(\S+)`),
	regexp.MustCompile(`\b([Ss][A-Za-z0-9]{5,})\b`),
	regexp.MustCompile(`\b(WIN\w+)\b`),
}

// strictHostPattern is the only pattern trusted against free-form
// descriptions.
var strictHostPattern = regexp.MustCompile(`\b([Ss][A-Za-z0-9]{5,})\b`)

// hostBlocklist rejects common words the loose patterns keep matching.
var hostBlocklist = map[string]struct{}{
	"status":  {},
	"service": {},
	"such":    {},
	"still":   {},
	"some":    {},
	"system":  {},
	"server":  {},
}

// ProblemService retrieves upstream problems, filters them server-side by
// management zone membership and time window, and formats them into
// ProblemRecords.
type ProblemService struct {
	upstream Upstream
	cache    *cache.Cache
	envURL   string
	tzOffset time.Duration
	now      func() time.Time
}

// NewProblemService creates a problem service. tzOffset shifts upstream
// UTC timestamps to the dashboard's local wall clock.
func NewProblemService(upstream Upstream, c *cache.Cache, envURL string, tzOffset time.Duration) *ProblemService {
	return &ProblemService{
		upstream: upstream,
		cache:    c,
		envURL:   envURL,
		tzOffset: tzOffset,
		now:      time.Now,
	}
}

// List returns the formatted problems for the zone over the window.
// timeFrom accepts -Nh and -Nd (default -72h on anything malformed);
// status is OPEN, RESOLVED, CLOSED or ALL. OPEN and ALL listings are
// never served from cache so stale openers cannot shadow real-time
// changes, but their results are still stored.
func (s *ProblemService) List(ctx context.Context, mz, timeFrom, status string) ([]models.ProblemRecord, error) {
	if timeFrom == "" {
		timeFrom = "-72h"
	}
	status = strings.ToUpper(status)
	if status == "" {
		status = "ALL"
	}

	key := fmt.Sprintf("problems:%s:%s:%s", mz, timeFrom, status)
	realtime := status == "OPEN" || status == "ALL"
	if !realtime {
		if v, ok := s.cache.Get(key); ok {
			if records, ok := v.([]models.ProblemRecord); ok {
				return records, nil
			}
		}
	}

	window := parseWindow(timeFrom)
	params := url.Values{}
	params.Set("from", timeFrom)
	if status != "ALL" {
		params.Set("status", status)
	} else if window >= defaultProblemWindow {
		// Long ALL windows page deep into history.
		params.Set("pageSize", "500")
	}

	raw, err := s.upstream.Get(ctx, "problems", params)
	if err != nil {
		return nil, err
	}
	var resp dynatrace.ProblemsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode problems response: %w", err)
	}

	now := s.now()
	timeLimit := now.Add(-window).UnixMilli()

	records := []models.ProblemRecord{}
	for _, p := range resp.Problems {
		if status == "OPEN" && (p.Status != "OPEN" || p.EndTime > 0) {
			continue
		}
		if p.StartTime < timeLimit {
			// Early starters only survive an ALL listing, and only when
			// they were still active inside the window.
			if status != "ALL" || (p.EndTime != 0 && p.EndTime < timeLimit) {
				continue
			}
		}
		if mz != "" && !problemInZone(&p, mz) {
			continue
		}
		records = append(records, s.format(&p, mz, now))
	}

	log.Printf("Problems for zone %q (from=%s, status=%s): kept %d of %d upstream",
		mz, timeFrom, status, len(records), len(resp.Problems))

	s.cache.Set(key, records)
	return records, nil
}

// parseWindow converts a -Nh/-Nd window into a duration, defaulting to
// 72 hours on malformed input.
func parseWindow(timeFrom string) time.Duration {
	m := timeFromPattern.FindStringSubmatch(timeFrom)
	if m == nil {
		return defaultProblemWindow
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return defaultProblemWindow
	}
	if m[2] == "d" {
		return time.Duration(n) * 24 * time.Hour
	}
	return time.Duration(n) * time.Hour
}

// problemInZone reports management zone membership, on the problem record
// itself or on any of its affected entities.
func problemInZone(p *dynatrace.Problem, mz string) bool {
	for _, zone := range p.ManagementZones {
		if zone.Name == mz {
			return true
		}
	}
	for _, entity := range p.AffectedEntities {
		for _, zone := range entity.ManagementZones {
			if zone.Name == mz {
				return true
			}
		}
	}
	return false
}

// format builds the ProblemRecord for one upstream problem.
func (s *ProblemService) format(p *dynatrace.Problem, mz string, now time.Time) models.ProblemRecord {
	resolved := p.Status != "OPEN" || p.EndTime > 0 || p.ResolutionState == "RESOLVED"
	status := "OPEN"
	if resolved {
		status = "RESOLVED"
	}

	end := now
	if p.EndTime > 0 {
		end = time.UnixMilli(p.EndTime)
	}
	var endTime *string
	if resolved {
		formatted := s.localClock(end)
		endTime = &formatted
	}

	zone := mz
	if zone == "" {
		if len(p.ManagementZones) > 0 {
			zone = p.ManagementZones[0].Name
		} else {
			zone = NotSpecified
		}
	}

	return models.ProblemRecord{
		ID:            p.ProblemID,
		Title:         p.Title,
		Impact:        p.ImpactLevel,
		Status:        status,
		AffectedCount: len(p.AffectedEntities),
		StartTime:     s.localClock(time.UnixMilli(p.StartTime)),
		EndTime:       endTime,
		Duration:      renderDuration(end.Sub(time.UnixMilli(p.StartTime))),
		DtURL:         fmt.Sprintf("%s/#problems/problemdetails;pid=%s", s.envURL, p.ProblemID),
		Zone:          zone,
		Resolved:      resolved,
		Host:          extractHost(p),
	}
}

// localClock renders an instant as local wall clock at minute resolution.
// Upstream timestamps are UTC epoch milliseconds; the configured offset
// shifts them to the dashboard's timezone.
func (s *ProblemService) localClock(t time.Time) string {
	return t.UTC().Add(s.tzOffset).Format("2006-01-02 15:04")
}

// renderDuration renders a problem duration in the dashboard's compact
// form: Ns, Nm, "Nh Mm" or "Dj Hh".
func renderDuration(d time.Duration) string {
	seconds := int64(d.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	default:
		return fmt.Sprintf("%dj %dh", seconds/86400, (seconds%86400)/3600)
	}
}

// extractHost finds the impacted host name: first a HOST affected entity,
// then title pattern matching, finally the description with the strict
// pattern only.
func extractHost(p *dynatrace.Problem) string {
	for _, entity := range p.AffectedEntities {
		if entity.EntityID.Type == "HOST" && entity.Name != "" {
			return entity.Name
		}
	}

	for _, pattern := range hostPatterns {
		if host := firstAllowedMatch(pattern, p.Title); host != "" {
			log.Printf("Problem %s: host %q extracted from title via %s", p.ProblemID, host, pattern)
			return host
		}
	}
	if p.Description != "" {
		if host := firstAllowedMatch(strictHostPattern, p.Description); host != "" {
			log.Printf("Problem %s: host %q extracted from description", p.ProblemID, host)
			return host
		}
	}
	return NotSpecified
}

// firstAllowedMatch returns the first capture of pattern in text that is
// not on the blocklist, stripped of trailing punctuation.
func firstAllowedMatch(pattern *regexp.Regexp, text string) string {
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.Trim(m[1], ".,;:!?)('\"")
		if candidate == "" {
			continue
		}
		if _, blocked := hostBlocklist[strings.ToLower(candidate)]; blocked {
			continue
		}
		return candidate
	}
	return ""
}
