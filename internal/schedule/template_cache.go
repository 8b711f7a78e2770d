package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TemplateCache keeps recently read templates in memory. Other processes may
// delete a template or take over the default flag, so entries only live for a
// short TTL and writes that matter (ApplyTemplate) always read the repository.
type TemplateCache interface {
	Get(id uuid.UUID) (Template, bool)
	Add(t Template)
	Remove(id uuid.UUID)
	Purge()
}

type LRUTemplateCache struct {
	cache *expirable.LRU[uuid.UUID, Template]
}

func NewLRUTemplateCache(size int, ttl time.Duration) (*LRUTemplateCache, error) {
	if size < 1 {
		return nil, errors.New("template cache size must be positive")
	}
	if ttl <= 0 {
		return nil, errors.New("template cache ttl must be positive")
	}
	return &LRUTemplateCache{cache: expirable.NewLRU[uuid.UUID, Template](size, nil, ttl)}, nil
}

// Get returns a copy; callers may modify it freely.
func (c *LRUTemplateCache) Get(id uuid.UUID) (Template, bool) {
	t, ok := c.cache.Get(id)
	if !ok {
		return Template{}, false
	}
	t.Content.WorkDays = copyWorkDays(t.Content.WorkDays)
	return t, true
}

func (c *LRUTemplateCache) Add(t Template) {
	t.Content.WorkDays = copyWorkDays(t.Content.WorkDays)
	c.cache.Add(t.ID, t)
}

func (c *LRUTemplateCache) Remove(id uuid.UUID) {
	c.cache.Remove(id)
}

func (c *LRUTemplateCache) Purge() {
	c.cache.Purge()
}
