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
)

func newProcessFixture(t *testing.T, listing string, details map[string]string) *ProcessAggregator {
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
		return json.RawMessage(`{}`), nil
	}

	c := cache.New(0)
	selection := NewSelectionStore(filepath.Join(t.TempDir(), "selection.json"), "Production", c)
	dispatcher := NewDispatcher(upstream, c, 15)
	dispatcher.sleep = func(time.Duration) {}
	technology := NewTechnologyResolver(upstream, c)

	a := NewProcessAggregator(upstream, dispatcher, c, selection, technology, "https://env.example.com", 20)
	a.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestProcessListClassifiesFromDetails(t *testing.T) {
	listing := `{"totalCount": 2, "entities": [
		{"entityId": "PROCESS_GROUP-1", "displayName": "billing-jvm"},
		{"entityId": "PROCESS_GROUP-2", "displayName": "batch-runner"}
	]}`
	details := map[string]string{
		"PROCESS_GROUP-1": `{"entityId": "PROCESS_GROUP-1", "displayName": "billing-jvm",
			"properties": {"softwareTechnologies": [{"type": "JAVA"}]}}`,
	}
	a := newProcessFixture(t, listing, details)

	records, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "JAVA", records[0].Technology)
	assert.Equal(t, "coffee", records[0].TechIcon)
	assert.Equal(t, "https://env.example.com/#processgroupdetails;id=PROCESS_GROUP-1", records[0].DtURL)

	// No structured data and no name keyword: unknown classification
	assert.Equal(t, "Non spécifié", records[1].Technology)
	assert.Equal(t, "question", records[1].TechIcon)
}

func TestProcessListEmptyZone(t *testing.T) {
	a := newProcessFixture(t, `{"totalCount": 0, "entities": []}`, nil)

	records, err := a.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
