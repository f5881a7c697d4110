package identity

import "github.com/deemkeen/mergodon/domain"

// Store is the narrow lookup contract against the persistent store.
// A miss and a storage failure both come back as 0; neither is an error
// from the resolver's point of view.
type Store interface {
	ActorIdByOid(originId int64, oid string) int64
	ActorIdByWebFinger(originId int64, webFingerId string) int64
	ActorIdByUsername(originId int64, username string) int64
}

// Resolver maps partial identity evidence to the local numeric actor id.
// Queries are synchronous and may block on the store; do not call it from
// an interactive thread.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// LocalId runs the priority-ordered lookup sequence, short-circuiting on
// the first non-zero result: real opaque id, validated WebFinger address,
// username, primary placeholder, alternate placeholder. Real identifiers
// are the most trustworthy; placeholders exist only so that two
// independently-extracted mentions of an unresolvable user collapse to one
// local row.
func (r *Resolver) LocalId(actor domain.Actor) int64 {
	actorId := actor.ActorId
	originId := actor.Origin.Id
	if actorId == 0 && actor.OidReal() {
		actorId = r.store.ActorIdByOid(originId, actor.Oid)
	}
	if actorId == 0 && actor.WebFingerValid {
		actorId = r.store.ActorIdByWebFinger(originId, actor.WebFingerId)
	}
	if actorId == 0 && !actor.WebFingerValid && actor.Username != "" {
		actorId = r.store.ActorIdByUsername(originId, actor.Username)
	}
	if actorId == 0 {
		actorId = r.store.ActorIdByOid(originId, actor.TempOid())
	}
	if actorId == 0 && actor.HasAltTempOid() {
		actorId = r.store.ActorIdByOid(originId, actor.AltTempOid())
	}
	return actorId
}

// Resolve returns the actor with its local id filled in, or unchanged on a
// miss.
func (r *Resolver) Resolve(actor domain.Actor) domain.Actor {
	actor.ActorId = r.LocalId(actor)
	return actor
}
