package users

import (
	"sync"
	"testing"
	"time"

	"github.com/deemkeen/mergodon/domain"
)

func testOrigin() domain.Origin {
	return domain.Origin{Id: 1, Kind: domain.OriginKindMastodon, Name: "mastodon.example"}
}

func fullActor(actorId int64) domain.Actor {
	return domain.ActorFromId(testOrigin(), actorId, "https://example.org/users/a").
		WithUsername("someone").
		WithUpdatedDate(time.UnixMilli(1000))
}

func partialActor(actorId int64) domain.Actor {
	return domain.ActorFromId(testOrigin(), actorId, domain.TempOid("", "someone")).
		WithUsername("someone")
}

func TestCacheGetMissing(t *testing.T) {
	cache := NewCache()
	if !cache.Get(0).IsEmpty() {
		t.Error("id zero should return the empty actor")
	}
	if !cache.Get(99).IsEmpty() {
		t.Error("a missing id should return the empty actor")
	}
}

func TestCacheOfferAndGet(t *testing.T) {
	cache := NewCache()
	actor := fullActor(7)

	returned := cache.Offer(actor)
	if !returned.Equals(actor) {
		t.Errorf("first offer should win, got %s", returned.ToString())
	}
	if got := cache.Get(7); !got.Equals(actor) {
		t.Errorf("expected cached actor, got %s", got.ToString())
	}
	if cache.Len() != 1 {
		t.Errorf("expected one entry, got %d", cache.Len())
	}
}

func TestCacheOfferIgnoresZeroId(t *testing.T) {
	cache := NewCache()
	cache.Offer(domain.NewActor(testOrigin(), "oid-only"))
	if cache.Len() != 0 {
		t.Error("a record without a local id must not enter the cache")
	}
}

func TestCacheOfferKeepsBetterRecord(t *testing.T) {
	cache := NewCache()
	full := fullActor(7)
	partial := partialActor(7)

	cache.Offer(full)
	returned := cache.Offer(partial)
	if returned.PartiallyDefined() {
		t.Error("losing offer should return the winner, not the candidate")
	}
	if cache.Get(7).PartiallyDefined() {
		t.Error("a partial record must never displace a full one")
	}

	// And the other way around: full replaces partial.
	cache.Reset()
	cache.Offer(partial)
	cache.Offer(full)
	if cache.Get(7).PartiallyDefined() {
		t.Error("a full record should displace a partial one")
	}
}

func TestCacheOfferIdempotent(t *testing.T) {
	cache := NewCache()
	actor := fullActor(7)
	cache.Offer(actor)
	returned := cache.Offer(actor)
	if !returned.Equals(actor) {
		t.Errorf("offering the same record twice returns it, got %s", returned.ToString())
	}
	if cache.Len() != 1 {
		t.Errorf("expected one entry, got %d", cache.Len())
	}
}

func TestCacheConcurrentOffers(t *testing.T) {
	cache := NewCache()
	full := fullActor(7)
	partial := partialActor(7)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cache.Offer(partial)
		}()
		go func() {
			defer wg.Done()
			cache.Offer(full)
		}()
	}
	wg.Wait()

	if cache.Get(7).PartiallyDefined() {
		t.Error("after racing offers the full record must survive")
	}
}

func TestCacheReset(t *testing.T) {
	cache := NewCache()
	cache.Offer(fullActor(1))
	cache.Offer(fullActor(2))
	cache.Reset()
	if cache.Len() != 0 {
		t.Errorf("expected empty cache after reset, got %d entries", cache.Len())
	}
}
