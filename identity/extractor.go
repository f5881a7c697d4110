package identity

import (
	"strings"

	"github.com/deemkeen/mergodon/domain"
	"github.com/deemkeen/mergodon/users"
	"github.com/deemkeen/mergodon/util"
)

// Characters that terminate an @mention token.
const mentionSeparators = ", ;'=`~!#$%^&*(){}[]/"

// Extractor pulls @name mentions out of free-form note text and resolves
// each one to a stored identity. It consults the resolver for local ids and
// the actor cache for the best known record.
type Extractor struct {
	resolver *Resolver
	cache    *users.Cache
}

func NewExtractor(resolver *Resolver, cache *users.Cache) *Extractor {
	return &Extractor{resolver: resolver, cache: cache}
}

// Extract scans text left to right for @ tokens and returns the mentioned
// actors in order of appearance, with no duplicates by identity. With
// replyOnly set, only an @ at position 0 counts and the rest of the text is
// not scanned. From each @ the token is extended greedily until a
// separator; the longest prefix that is a valid username and the longest
// prefix that is a valid WebFinger address are tracked independently, since
// the two can diverge.
func (e *Extractor) Extract(author domain.Actor, textIn string, replyOnly bool, inReplyTo domain.Actor) []domain.Actor {
	var actors []domain.Actor
	text := util.StripHtml(textIn)
	for text != "" {
		atPos := strings.IndexByte(text, '@')
		if atPos < 0 || (atPos > 0 && replyOnly) {
			break
		}
		validUsername := ""
		validWebFingerId := ""
		ind := atPos + 1
		for ; ind < len(text); ind++ {
			if strings.IndexByte(mentionSeparators, text[ind]) >= 0 {
				break
			}
			token := text[atPos+1 : ind+1]
			if author.Origin.UsernameValid(token) {
				validUsername = token
			}
			if domain.WebFingerIdValid(token) {
				validWebFingerId = token
			}
		}
		if ind < len(text) {
			text = text[ind:]
		} else {
			text = ""
		}
		if validWebFingerId != "" || validUsername != "" {
			actors = e.addExtracted(actors, author, validWebFingerId, validUsername, inReplyTo)
		}
	}
	return actors
}

func (e *Extractor) addExtracted(actors []domain.Actor, author domain.Actor, webFingerId, validUsername string, inReplyTo domain.Actor) []domain.Actor {
	actor := domain.NewActor(author.Origin, "")
	if domain.WebFingerIdValid(webFingerId) {
		actor = actor.WithWebFingerId(webFingerId)
		actor = actor.WithUsername(validUsername)
	} else if !inReplyTo.IsEmpty() && strings.EqualFold(validUsername, inReplyTo.Username) {
		// Replying in thread, no lookup needed.
		actor = inReplyTo
	} else if strings.EqualFold(validUsername, author.Username) {
		actor = author
	} else {
		// Try the author's host, then the origin's host.
		for _, host := range uniqueHosts(author.Host(), author.Origin.Host) {
			if !domain.HostValid(host) {
				continue
			}
			possible := strings.ToLower(validUsername + "@" + host)
			if actorId := e.resolver.store.ActorIdByWebFinger(author.Origin.Id, possible); actorId != 0 {
				actor.ActorId = actorId
				actor = actor.WithWebFingerId(possible)
				break
			}
		}
		actor = actor.WithUsername(validUsername)
	}
	actor = e.resolver.Resolve(actor)
	if actor.ActorId != 0 && e.cache != nil {
		if cached := e.cache.Get(actor.ActorId); !cached.IsEmpty() {
			actor = cached
		} else {
			actor = e.cache.Offer(actor)
		}
	}
	for _, existing := range actors {
		if existing.Equals(actor) {
			return actors
		}
	}
	return append(actors, actor)
}

func uniqueHosts(hosts ...string) []string {
	var unique []string
	seen := make(map[string]bool)
	for _, host := range hosts {
		if host != "" && !seen[host] {
			seen[host] = true
			unique = append(unique, host)
		}
	}
	return unique
}
