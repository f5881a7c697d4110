package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// TempOidPrefix marks placeholder opaque ids synthesized locally for actors
// whose real, origin-issued id is not known yet.
const TempOidPrefix = "temp:"

// SomeTimeAgo is the minimum sentinel for created/updated dates. A date at
// or below the sentinel means "unknown, but in the past".
var SomeTimeAgo = time.UnixMilli(1).UTC()

var webFingerRegex = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.\-]*@[a-zA-Z0-9][a-zA-Z0-9\-]*(\.[a-zA-Z0-9\-]+)+$`)

// Actor is an author record assembled from whatever identity evidence a
// loader had: a numeric local id, an origin-scoped opaque id, a WebFinger
// address, a username, or any mix of those. Actors are value types; all
// transitions go through With* methods that return a changed copy.
type Actor struct {
	Origin  Origin
	ActorId int64
	Oid     string

	Username       string
	WebFingerId    string
	WebFingerValid bool

	RealName   string
	ProfileUrl string
	Homepage   string
	AvatarUrl  string

	NotesCount     int64
	FavoritesCount int64
	FollowingCount int64
	FollowersCount int64

	CreatedDate time.Time
	UpdatedDate time.Time

	// When the avatar file was last downloaded, zero if never.
	AvatarDownloadedAt time.Time

	// Latest known note of this actor, referenced by id to avoid an
	// ownership cycle through the note's author.
	LatestNoteId int64
}

var EmptyActor = Actor{Username: "Empty"}

func NewActor(origin Origin, oid string) Actor {
	return Actor{Origin: origin, Oid: oid}
}

func ActorFromId(origin Origin, actorId int64, oid string) Actor {
	return Actor{Origin: origin, ActorId: actorId, Oid: oid}
}

// WebFingerIdValid reports whether s looks like a user@host address.
func WebFingerIdValid(s string) bool {
	return s != "" && webFingerRegex.MatchString(s)
}

func (a Actor) IsEmpty() bool {
	return !a.Origin.Valid() && a.ActorId == 0 && !a.OidReal() &&
		a.WebFingerId == "" && !a.Origin.UsernameValid(a.Username)
}

// OidReal reports whether the opaque id was issued by the origin, as
// opposed to a locally synthesized placeholder.
func (a Actor) OidReal() bool {
	return a.Oid != "" && !strings.HasPrefix(a.Oid, TempOidPrefix)
}

// PartiallyDefined reports whether the record is missing identity evidence:
// an actor with a local id and a real opaque id is fully defined, anything
// less is partial.
func (a Actor) PartiallyDefined() bool {
	return !a.Origin.Valid() || a.ActorId == 0 || !a.OidReal()
}

// WithUsername trims and stores the username, deriving the WebFinger
// address when the username itself carries a host part or when the profile
// URL provides one.
func (a Actor) WithUsername(username string) Actor {
	a.Username = strings.TrimSpace(username)
	return a.fixWebFingerId()
}

// WithWebFingerId stores the address lower-cased when it is valid.
// Invalid-looking addresses are kept but excluded from equality.
func (a Actor) WithWebFingerId(webFingerId string) Actor {
	if WebFingerIdValid(webFingerId) {
		a.WebFingerId = strings.ToLower(webFingerId)
		a.WebFingerValid = true
	} else if webFingerId != "" && a.WebFingerId == "" {
		a.WebFingerId = strings.ToLower(webFingerId)
		a.WebFingerValid = false
	}
	return a
}

func (a Actor) WithProfileUrl(profileUrl string) Actor {
	a.ProfileUrl = profileUrl
	return a.fixWebFingerId()
}

func (a Actor) fixWebFingerId() Actor {
	if a.Username == "" {
		return a
	}
	if strings.Contains(a.Username, "@") {
		return a.WithWebFingerId(a.Username)
	}
	if host := urlHost(a.ProfileUrl); host != "" {
		return a.WithWebFingerId(a.Username + "@" + host)
	}
	return a
}

// WithCreatedDate clamps the date to the SomeTimeAgo sentinel.
func (a Actor) WithCreatedDate(created time.Time) Actor {
	if created.Before(SomeTimeAgo) {
		created = SomeTimeAgo
	}
	a.CreatedDate = created
	return a
}

// WithUpdatedDate is monotonic: an older value never replaces a newer one.
func (a Actor) WithUpdatedDate(updated time.Time) Actor {
	if !a.UpdatedDate.Before(updated) {
		return a
	}
	if updated.Before(SomeTimeAgo) {
		updated = SomeTimeAgo
	}
	a.UpdatedDate = updated
	return a
}

// TempOid returns the deterministic placeholder opaque id, preferring the
// WebFinger address over the bare username. Repeated extraction of the same
// mention yields the same placeholder.
func (a Actor) TempOid() string {
	return TempOid(a.WebFingerId, a.Username)
}

// AltTempOid is the username-only placeholder, ignoring the WebFinger address.
func (a Actor) AltTempOid() string {
	return TempOid("", a.Username)
}

func (a Actor) HasAltTempOid() bool {
	return a.TempOid() != a.AltTempOid() && a.Username != ""
}

func TempOid(webFingerId, username string) string {
	if WebFingerIdValid(webFingerId) {
		return TempOidPrefix + strings.ToLower(webFingerId)
	}
	return TempOidPrefix + username
}

// Host returns the host part of the WebFinger address, falling back to the
// profile URL's host.
func (a Actor) Host() string {
	if pos := strings.Index(a.WebFingerId, "@"); pos >= 0 {
		return a.WebFingerId[pos+1:]
	}
	return urlHost(a.ProfileUrl)
}

// Equals decides whether two records denote the same entity within one
// origin. Evidence is compared in strict priority order: local id, real
// opaque id, validated WebFinger address, username. A mismatch on stronger
// evidence is never overridden by a match on weaker evidence.
func (a Actor) Equals(other Actor) bool {
	if !a.Origin.Equals(other.Origin) {
		return false
	}
	if a.ActorId != 0 || other.ActorId != 0 {
		return a.ActorId == other.ActorId
	}
	if a.OidReal() || other.OidReal() {
		return a.Oid == other.Oid
	}
	if a.WebFingerValid || other.WebFingerValid {
		return a.WebFingerValid && other.WebFingerValid && a.WebFingerId == other.WebFingerId
	}
	return a.Username == other.Username
}

// IsSame is the cross-origin variant: a validated WebFinger match links
// records even when they were fetched through different origins.
func (a Actor) IsSame(other Actor) bool {
	if a.ActorId != 0 && a.ActorId == other.ActorId {
		return true
	}
	if a.Origin.Equals(other.Origin) && a.OidReal() && a.Oid == other.Oid {
		return true
	}
	return a.WebFingerValid && other.WebFingerValid && a.WebFingerId == other.WebFingerId
}

// BetterToCache decides whether this record should replace other in the
// actor cache. First decisive criterion wins: completeness, updated
// freshness, avatar download freshness, note count. A record never beats
// an identical copy of itself.
func (a Actor) BetterToCache(other Actor) bool {
	if other.IsEmpty() {
		return true
	}
	if !a.PartiallyDefined() && other.PartiallyDefined() {
		return true
	}
	if a.PartiallyDefined() && !other.PartiallyDefined() {
		return false
	}
	if !a.UpdatedDate.Equal(other.UpdatedDate) {
		return a.UpdatedDate.After(other.UpdatedDate)
	}
	if !a.AvatarDownloadedAt.Equal(other.AvatarDownloadedAt) {
		return a.AvatarDownloadedAt.After(other.AvatarDownloadedAt)
	}
	return a.NotesCount > other.NotesCount
}

// NamePreferablyWebFingerId picks the most specific display name available.
func (a Actor) NamePreferablyWebFingerId() string {
	if a.WebFingerValid {
		return a.WebFingerId
	}
	if a.Username != "" {
		return a.Username
	}
	if a.RealName != "" {
		return a.RealName
	}
	if a.Oid != "" {
		return "oid:" + a.Oid
	}
	return fmt.Sprintf("id:%d", a.ActorId)
}

// ActorInTimeline selects how an actor is titled in a rendered timeline.
type ActorInTimeline int

const (
	AtUsername ActorInTimeline = iota
	WebFingerId
	RealName
	RealNameAtUsername
)

func (a Actor) TimelineUsername(mode ActorInTimeline) string {
	var name string
	switch mode {
	case AtUsername:
		if a.Username != "" {
			name = "@" + a.Username
		}
	case WebFingerId:
		if a.WebFingerValid {
			name = a.WebFingerId
		}
	case RealName:
		name = a.RealName
	case RealNameAtUsername:
		if a.RealName != "" && a.Username != "" {
			name = a.RealName + " @" + a.Username
		} else {
			name = a.Username
		}
	}
	if name != "" {
		return name
	}
	return a.NamePreferablyWebFingerId()
}

func (a Actor) ToString() string {
	if a.IsEmpty() {
		return "Actor:EMPTY"
	}
	members := "origin:" + a.Origin.Name + ","
	if a.ActorId != 0 {
		members += fmt.Sprintf("id:%d,", a.ActorId)
	}
	if a.Oid != "" {
		members += "oid:" + a.Oid + ","
	}
	if a.WebFingerValid {
		members += a.WebFingerId + ","
	} else if a.WebFingerId != "" {
		members += "invalidWebFingerId:" + a.WebFingerId + ","
	}
	if a.Username != "" {
		members += "username:" + a.Username + ","
	}
	return fmt.Sprintf("Actor{%s}", strings.TrimSuffix(members, ","))
}

func urlHost(rawUrl string) string {
	if rawUrl == "" {
		return ""
	}
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// HostValid is the minimum sanity check applied before a host is used to
// synthesize a WebFinger address.
func HostValid(host string) bool {
	return host != "" && strings.Contains(host, ".") && !strings.ContainsAny(host, " @/")
}
