package service

import (
	"context"
	"encoding/json"
	"fmt"

	"dtgate/core/cache"
	"dtgate/utils/dynatrace"
)

// ZoneService lists the upstream management zone catalog and the
// configured vital-for-group zone subset.
type ZoneService struct {
	upstream Upstream
	cache    *cache.Cache
	vfgZones []string
}

// NewZoneService creates a zone service.
func NewZoneService(upstream Upstream, c *cache.Cache, vfgZones []string) *ZoneService {
	return &ZoneService{upstream: upstream, cache: c, vfgZones: vfgZones}
}

// List returns the management zone catalog from the upstream config API.
func (z *ZoneService) List(ctx context.Context) ([]dynatrace.ManagementZone, error) {
	if v, ok := z.cache.Get("management_zones"); ok {
		if zones, ok := v.([]dynatrace.ManagementZone); ok {
			return zones, nil
		}
	}

	raw, err := z.upstream.GetConfig(ctx, "managementZones", nil)
	if err != nil {
		return nil, err
	}
	var resp dynatrace.ManagementZonesConfigResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode management zones: %w", err)
	}

	zones := resp.Values
	if zones == nil {
		zones = []dynatrace.ManagementZone{}
	}
	z.cache.Set("management_zones", zones)
	return zones, nil
}

// VitalForGroup returns the configured privileged zone names.
func (z *ZoneService) VitalForGroup() []string {
	if v, ok := z.cache.Get("vital_for_group_mzs"); ok {
		if zones, ok := v.([]string); ok {
			return zones
		}
	}
	zones := z.vfgZones
	if zones == nil {
		zones = []string{}
	}
	z.cache.Set("vital_for_group_mzs", zones)
	return zones
}
