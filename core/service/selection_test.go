package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtgate/core/cache"
)

func TestSelectionFallsBackToDefault(t *testing.T) {
	store := NewSelectionStore(filepath.Join(t.TempDir(), "selection.json"), "Production", cache.New(0))
	assert.Equal(t, "Production", store.Current())
}

func TestSelectionSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.json")
	store := NewSelectionStore(path, "Production", cache.New(0))

	require.NoError(t, store.Set("Staging"))
	assert.Equal(t, "Staging", store.Current())

	// A fresh store over the same file observes the persisted selection
	reopened := NewSelectionStore(path, "Production", cache.New(0))
	assert.Equal(t, "Staging", reopened.Current())
}

func TestSelectionRejectsEmptyName(t *testing.T) {
	store := NewSelectionStore(filepath.Join(t.TempDir(), "selection.json"), "Production", cache.New(0))
	assert.Error(t, store.Set(""))
}

func TestSelectionIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	store := NewSelectionStore(path, "Production", cache.New(0))
	assert.Equal(t, "Production", store.Current())
}

func TestSelectionSetInvalidatesAggregatorCaches(t *testing.T) {
	c := cache.New(0)
	c.Set("services:Production", "stale")
	c.Set("hosts:Production", "stale")
	c.Set("processes:Production", "stale")
	c.Set("summary:Production:1:2", "stale")
	c.Set("problems:Production:-72h:ALL", "stale")
	c.Set("technology:SERVICE-1", "kept")
	c.Set("management_zones", "kept")

	store := NewSelectionStore(filepath.Join(t.TempDir(), "selection.json"), "Production", c)
	require.NoError(t, store.Set("Staging"))

	for _, key := range []string{
		"services:Production",
		"hosts:Production",
		"processes:Production",
		"summary:Production:1:2",
		"problems:Production:-72h:ALL",
	} {
		_, ok := c.Get(key)
		assert.False(t, ok, "key %s should be invalidated", key)
	}

	// Per-entity and catalog entries survive a zone change
	_, ok := c.Get("technology:SERVICE-1")
	assert.True(t, ok)
	_, ok = c.Get("management_zones")
	assert.True(t, ok)
}

func TestSelectionSetCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "selection.json")
	store := NewSelectionStore(path, "", cache.New(0))

	require.NoError(t, store.Set("Production"))
	assert.Equal(t, "Production", store.Current())
}
