package domain

import (
	"regexp"
	"strings"
)

// OriginKind is the closed set of supported federated network flavors.
// Username syntax and text limits depend on the kind.
type OriginKind int

const (
	OriginKindUnknown OriginKind = iota
	OriginKindMastodon
	OriginKindGNUSocial
	OriginKindPumpIO
)

const TextLimitMaximum = 5000

// Origin represents one remote social-network source with its own
// identifier namespace and validation rules.
type Origin struct {
	Id   int64
	Kind OriginKind
	Name string
	Host string
}

var OriginEmpty = Origin{}

var (
	usernameSimpleRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{1,100}$`)
	usernameDottedRegex = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.\-]{0,99}$`)
)

func OriginKindFromString(s string) OriginKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mastodon":
		return OriginKindMastodon
	case "gnusocial":
		return OriginKindGNUSocial
	case "pumpio":
		return OriginKindPumpIO
	default:
		return OriginKindUnknown
	}
}

func (k OriginKind) String() string {
	switch k {
	case OriginKindMastodon:
		return "mastodon"
	case OriginKindGNUSocial:
		return "gnusocial"
	case OriginKindPumpIO:
		return "pumpio"
	default:
		return "unknown"
	}
}

func (o Origin) Valid() bool {
	return o.Id != 0 && o.Kind != OriginKindUnknown
}

func (o Origin) IsEmpty() bool {
	return o.Id == 0
}

// UsernameValid reports whether username is syntactically valid for this
// origin kind. A WebFinger-shaped string (containing '@') is never a valid
// bare username.
func (o Origin) UsernameValid(username string) bool {
	if username == "" {
		return false
	}
	switch o.Kind {
	case OriginKindMastodon:
		return usernameSimpleRegex.MatchString(username)
	case OriginKindGNUSocial, OriginKindPumpIO:
		return usernameDottedRegex.MatchString(username)
	default:
		return false
	}
}

// TextLimit returns the maximum note length the origin accepts.
func (o Origin) TextLimit() int {
	switch o.Kind {
	case OriginKindMastodon:
		return 500
	case OriginKindGNUSocial:
		return 200
	case OriginKindPumpIO:
		return TextLimitMaximum
	default:
		return 0
	}
}

func (o Origin) Equals(other Origin) bool {
	return o.Id == other.Id
}
