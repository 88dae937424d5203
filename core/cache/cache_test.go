package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get("services:Zone A")
	assert.False(t, ok)

	c.Set("services:Zone A", []int{1, 2, 3})
	v, ok := c.Get("services:Zone A")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, v)
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Minute)
	base := time.Now()
	now := base
	c.now = func() time.Time { return now }

	c.Set("hosts:Z", "payload")

	now = base.Add(59 * time.Second)
	_, ok := c.Get("hosts:Z")
	assert.True(t, ok, "entry should be live just before the TTL")

	now = base.Add(time.Minute)
	_, ok = c.Get("hosts:Z")
	assert.False(t, ok, "entry should miss once the TTL has elapsed")
}

func TestSetOverwritesAndRestamps(t *testing.T) {
	c := New(time.Minute)
	base := time.Now()
	now := base
	c.now = func() time.Time { return now }

	c.Set("summary:Z:1:2", "old")
	now = base.Add(50 * time.Second)
	c.Set("summary:Z:1:2", "new")

	now = base.Add(100 * time.Second)
	v, ok := c.Get("summary:Z:1:2")
	require.True(t, ok, "restamped entry should still be live")
	assert.Equal(t, "new", v)
}

func TestInvalidatePrefix(t *testing.T) {
	c := New(time.Minute)
	c.Set("services:Zone A", 1)
	c.Set("services:Zone B", 2)
	c.Set("hosts:Zone A", 3)
	c.Set("technology:SERVICE-1", 4)

	removed := c.Invalidate("services:")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("services:Zone A")
	assert.False(t, ok)
	_, ok = c.Get("hosts:Zone A")
	assert.True(t, ok)
	_, ok = c.Get("technology:SERVICE-1")
	assert.True(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	removed := c.Invalidate("")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, c.Len())
}

func TestGetOrCompute(t *testing.T) {
	c := New(time.Minute)
	calls := 0
	compute := func() (any, error) {
		calls++
		return "computed", nil
	}

	v, err := c.GetOrCompute("response_time:SERVICE-1:0:100", compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)

	v, err = c.GetOrCompute("response_time:SERVICE-1:0:100", compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
	assert.Equal(t, 1, calls, "second call should be served from cache")
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c := New(time.Minute)
	calls := 0
	compute := func() (any, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("transient")
		}
		return 42, nil
	}

	_, err := c.GetOrCompute("k", compute)
	require.Error(t, err)

	v, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}

func TestAge(t *testing.T) {
	c := New(time.Minute)
	base := time.Now()
	now := base
	c.now = func() time.Time { return now }

	_, ok := c.Age("missing")
	assert.False(t, ok)

	c.Set("problems:Z:-24h:ALL", "v")
	now = base.Add(10 * time.Second)
	age, ok := c.Age("problems:Z:-24h:ALL")
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, age)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := New(time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("cpu_usage:HOST-%d:%d", n, j%10)
				c.Set(key, j)
				c.Get(key)
				if j%50 == 0 {
					c.Invalidate(fmt.Sprintf("cpu_usage:HOST-%d:", n))
				}
			}
		}(i)
	}
	wg.Wait()
}
