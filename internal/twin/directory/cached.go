package directory

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/cache"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
)

// Cached memoizes successful lookups of another directory for a while.
// Misses and errors always reach the underlying directory.
type Cached struct {
	next        core.DeviceDirectory
	ttl         time.Duration
	devices     *cache.LRUExpireCache
	assignments *cache.LRUExpireCache
}

var _ core.DeviceDirectory = (*Cached)(nil)

func NewCached(next core.DeviceDirectory, size int, ttl time.Duration, c clock.PassiveClock) *Cached {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Cached{
		next:        next,
		ttl:         ttl,
		devices:     cache.NewLRUExpireCacheWithClock(size, c),
		assignments: cache.NewLRUExpireCacheWithClock(size, c),
	}
}

func (c *Cached) LookupDeviceByRoutingKey(ctx context.Context, key string) (*model.Device, error) {
	if v, ok := c.devices.Get(key); ok {
		d := v.(model.Device)
		return &d, nil
	}
	d, err := c.next.LookupDeviceByRoutingKey(ctx, key)
	if err != nil {
		return nil, err
	}
	c.devices.Add(key, *d, c.ttl)
	return d, nil
}

func (c *Cached) ActiveAssignment(ctx context.Context, deviceID string) (*model.Assignment, error) {
	if v, ok := c.assignments.Get(deviceID); ok {
		a := v.(model.Assignment)
		return &a, nil
	}
	a, err := c.next.ActiveAssignment(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	c.assignments.Add(deviceID, *a, c.ttl)
	return a, nil
}

// Invalidate drops every cached entry.
func (c *Cached) Invalidate() {
	for _, k := range c.devices.Keys() {
		c.devices.Remove(k)
	}
	for _, k := range c.assignments.Keys() {
		c.assignments.Remove(k)
	}
}
