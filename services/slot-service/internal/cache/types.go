package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
)

// TypeCache fronts an AppointmentTypeStore with an in-process LRU whose entries expire after
// ttl. Only successful loads are cached. Cached values are shared and must not be mutated.
type TypeCache struct {
	inner slots.AppointmentTypeStore
	lru   *expirable.LRU[string, slots.AppointmentType]
}

func NewTypeCache(inner slots.AppointmentTypeStore, size int, ttl time.Duration) *TypeCache {
	return &TypeCache{
		inner: inner,
		lru:   expirable.NewLRU[string, slots.AppointmentType](size, nil, ttl),
	}
}

func (c *TypeCache) Get(ctx context.Context, id string) (slots.AppointmentType, error) {
	if at, ok := c.lru.Get(id); ok {
		return at, nil
	}
	at, err := c.inner.Get(ctx, id)
	if err != nil {
		return slots.AppointmentType{}, err
	}
	c.lru.Add(id, at)
	return at, nil
}

// Evict drops one type, typically after an appointment.type.changed event.
func (c *TypeCache) Evict(id string) bool {
	return c.lru.Remove(id)
}

func (c *TypeCache) Len() int {
	return c.lru.Len()
}
