package service

import (
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtgate/core/cache"
	"dtgate/utils/dynatrace"
)

func newHostFixture(t *testing.T, listing string, metrics map[string]string, details map[string]string) *HostAggregator {
	t.Helper()

	upstream := newFakeUpstream()
	upstream.handler = func(path string, params url.Values) (json.RawMessage, error) {
		if path == "entities" {
			return json.RawMessage(listing), nil
		}
		if id, ok := strings.CutPrefix(path, "entities/"); ok {
			if body, found := details[id]; found {
				return json.RawMessage(body), nil
			}
			return json.RawMessage(`{}`), nil
		}
		key := params.Get("metricSelector") + "|" + params.Get("entitySelector") + "|" + params.Get("resolution")
		if body, ok := metrics[key]; ok {
			return json.RawMessage(body), nil
		}
		return json.RawMessage(`{"result": []}`), nil
	}

	c := cache.New(0)
	selection := NewSelectionStore(filepath.Join(t.TempDir(), "selection.json"), "Production", c)
	dispatcher := NewDispatcher(upstream, c, 15)
	dispatcher.sleep = func(time.Duration) {}

	a := NewHostAggregator(upstream, dispatcher, c, selection, "https://env.example.com", 20, 5)
	a.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestHostListRendersIntegerUsage(t *testing.T) {
	listing := `{"totalCount": 2, "entities": [
		{"entityId": "HOST-1", "displayName": "web01"},
		{"entityId": "HOST-2", "displayName": "web02"}
	]}`
	metrics := map[string]string{
		metricKey(metricHostCPU, "HOST-1", ""): metricJSON(f(52.4)),
		metricKey(metricHostRAM, "HOST-1", ""): metricJSON(f(87.6)),
		metricKey(metricHostCPU, "HOST-2", ""): metricJSON(f(104.2)),
	}
	a := newHostFixture(t, listing, metrics, nil)

	records, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, records[0].CPU)
	assert.Equal(t, 52.0, *records[0].CPU)
	require.NotNil(t, records[0].RAM)
	assert.Equal(t, 88.0, *records[0].RAM)

	// Out-of-range samples clamp into [0, 100]
	require.NotNil(t, records[1].CPU)
	assert.Equal(t, 100.0, *records[1].CPU)
	assert.Nil(t, records[1].RAM)

	assert.Equal(t, "https://env.example.com/#newhosts/hostdetails;id=HOST-1", records[0].DtURL)
}

func TestHostHistoryKeepsFloats(t *testing.T) {
	listing := `{"totalCount": 1, "entities": [
		{"entityId": "HOST-1", "displayName": "web01"}
	]}`
	metrics := map[string]string{
		metricKey(metricHostCPU, "HOST-1", "1h"): metricJSON(f(41.7), nil, f(120.5)),
	}
	a := newHostFixture(t, listing, metrics, nil)

	records, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	history := records[0].History.CPU
	require.Len(t, history, 2)
	assert.Equal(t, 41.7, history[0].Value)
	assert.Equal(t, 100.0, history[1].Value)
	assert.NotNil(t, records[0].History.RAM)
	assert.Empty(t, records[0].History.RAM)
}

func TestHostOSVersionFromDetails(t *testing.T) {
	listing := `{"totalCount": 1, "entities": [
		{"entityId": "HOST-1", "displayName": "web01"}
	]}`
	details := map[string]string{
		"HOST-1": `{"entityId": "HOST-1", "displayName": "web01",
			"properties": {"osType": "LINUX", "osVersion": "Ubuntu 22.04"}}`,
	}
	a := newHostFixture(t, listing, nil, details)

	records, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "LINUX Ubuntu 22.04", records[0].OSVersion)
}

func TestOSVersionFallbackChain(t *testing.T) {
	cases := []struct {
		name   string
		entity dynatrace.Entity
		want   string
	}{
		{
			name: "type and version",
			entity: dynatrace.Entity{Properties: dynatrace.EntityProperties{
				OsType: "LINUX", OsVersion: "RHEL 9.3",
			}},
			want: "LINUX RHEL 9.3",
		},
		{
			name: "version and kernel",
			entity: dynatrace.Entity{Properties: dynatrace.EntityProperties{
				OsVersion: "RHEL 9.3", KernelVersion: "5.14.0",
			}},
			want: "RHEL 9.3 (Kernel 5.14.0)",
		},
		{
			name: "kernel only",
			entity: dynatrace.Entity{Properties: dynatrace.EntityProperties{
				KernelVersion: "5.14.0",
			}},
			want: "Kernel 5.14.0",
		},
		{
			name: "os tag",
			entity: dynatrace.Entity{Tags: []dynatrace.Tag{
				{Key: "team", Value: "infra"},
				{Key: "OS", Value: "Windows Server 2019"},
			}},
			want: "Windows Server 2019",
		},
		{
			name:   "nothing",
			entity: dynatrace.Entity{},
			want:   "Non spécifié",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, osVersion(&tc.entity))
		})
	}
}
