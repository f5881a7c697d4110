package users

import "github.com/deemkeen/mergodon/domain"

// ActorStore hydrates a full actor row from the persistent store.
type ActorStore interface {
	ReadActorById(actorId int64) (error, *domain.Actor)
}

// Fetcher requests a full profile from the network, fire-and-forget. The
// result re-enters through Cache.Offer when it arrives.
type Fetcher interface {
	RequestProfile(actorId int64, username string)
}

// Loader reads actors through the cache. A cache hit that is fully defined
// is returned as is; a partial hit falls back to the store, and a record
// that is still incomplete after that triggers a background profile fetch.
// The store fallback happens outside the cache's critical section and feeds
// its result back through Offer.
type Loader struct {
	Cache   *Cache
	Store   ActorStore
	Fetcher Fetcher
}

func NewLoader(cache *Cache, store ActorStore, fetcher Fetcher) *Loader {
	return &Loader{Cache: cache, Store: store, Fetcher: fetcher}
}

func (l *Loader) Load(actorId int64) domain.Actor {
	if actorId == 0 {
		return domain.EmptyActor
	}
	cached := l.Cache.Get(actorId)
	if !cached.PartiallyDefined() {
		return cached
	}
	if l.Store != nil {
		err, actor := l.Store.ReadActorById(actorId)
		if err == nil && actor != nil {
			cached = l.Cache.Offer(*actor)
		}
	}
	if l.Fetcher != nil && cached.PartiallyDefined() {
		username := cached.Username
		if cached.IsEmpty() {
			username = ""
		}
		l.Fetcher.RequestProfile(actorId, username)
	}
	return cached
}
