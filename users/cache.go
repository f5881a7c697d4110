package users

import (
	"sync"

	"github.com/deemkeen/mergodon/domain"
)

// Cache is the process-wide mapping from numeric actor id to the best known
// record for that id. It is shared between background loaders and the
// rendering path, so reads take a shared lock and replacements happen under
// the write lock where the merge comparator is re-evaluated against whatever
// is current, never against a stale read.
type Cache struct {
	mu     sync.RWMutex
	actors map[int64]domain.Actor
}

func NewCache() *Cache {
	return &Cache{actors: make(map[int64]domain.Actor)}
}

// Get returns the cached record for actorId, or the Empty actor.
func (c *Cache) Get(actorId int64) domain.Actor {
	if actorId == 0 {
		return domain.EmptyActor
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	actor, ok := c.actors[actorId]
	if !ok {
		return domain.EmptyActor
	}
	return actor
}

// Offer proposes a candidate record and returns whichever of candidate and
// the current entry is better. A winning candidate replaces the entry; a
// losing one leaves the cache untouched. Losing a race never downgrades the
// cache, a superseded offer just returns the better record.
func (c *Cache) Offer(candidate domain.Actor) domain.Actor {
	if candidate.ActorId == 0 {
		return candidate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.actors[candidate.ActorId]
	if !ok {
		current = domain.EmptyActor
	}
	if candidate.BetterToCache(current) {
		c.actors[candidate.ActorId] = candidate
		return candidate
	}
	return current
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.actors)
}

// Reset clears the cache. Owned by the application context, used on account
// switch and in tests.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actors = make(map[int64]domain.Actor)
}
