package timeline

import (
	"strings"
	"time"

	"github.com/deemkeen/mergodon/domain"
)

const (
	// Content below this length is too short to compare reliably.
	DefaultMinLengthToCompare = 5
	// Entries whose updated dates differ by at least this much are assumed
	// to be distinct notes even when their content matches.
	DefaultMaxDistance = 24 * time.Hour
)

// Timeline holds the per-timeline context the duplicate linker needs: the
// preferred origin when one note arrived through several origins, and the
// content comparison thresholds. Both thresholds are policy, not invariants,
// and come from configuration.
type Timeline struct {
	PreferredOrigin    domain.Origin
	MinLengthToCompare int
	MaxDistance        time.Duration
}

func NewTimeline(preferredOrigin domain.Origin) Timeline {
	return Timeline{
		PreferredOrigin:    preferredOrigin,
		MinLengthToCompare: DefaultMinLengthToCompare,
		MaxDistance:        DefaultMaxDistance,
	}
}

func (tl Timeline) minLength() int {
	if tl.MinLengthToCompare <= 0 {
		return DefaultMinLengthToCompare
	}
	return tl.MinLengthToCompare
}

func (tl Timeline) maxDistance() time.Duration {
	if tl.MaxDistance <= 0 {
		return DefaultMaxDistance
	}
	return tl.MaxDistance
}

// Duplicates computes the tie-break verdict for e against other. Entries
// with the same note id only ever differ by how the interaction was
// recorded per account; entries with different note ids are compared by
// content, guarded so short or far-apart notes never false-positive.
func (e *Entry) Duplicates(tl Timeline, other *Entry) DuplicationLink {
	if e == other || e.IsEmpty() || other.IsEmpty() {
		return LinkNone
	}
	if e.NoteId == other.NoteId {
		return e.duplicatesByFavoritedAndReblogged(tl, other)
	}
	return e.duplicatesByContent(tl, other)
}

func (e *Entry) duplicatesByFavoritedAndReblogged(tl Timeline, other *Entry) DuplicationLink {
	if e.Favorited != other.Favorited {
		if e.Favorited {
			return LinkIsDuplicated
		}
		return LinkDuplicates
	}
	if e.Reblogged != other.Reblogged {
		if e.Reblogged {
			return LinkIsDuplicated
		}
		return LinkDuplicates
	}
	if !tl.PreferredOrigin.IsEmpty() && !e.Author.Origin.Equals(other.Author.Origin) {
		if tl.PreferredOrigin.Equals(e.Author.Origin) {
			return LinkIsDuplicated
		}
		if tl.PreferredOrigin.Equals(other.Author.Origin) {
			return LinkDuplicates
		}
	}
	if e.LinkedAccount != other.LinkedAccount {
		if strings.Compare(e.LinkedAccount, other.LinkedAccount) <= 0 {
			return LinkIsDuplicated
		}
		return LinkDuplicates
	}
	if len(e.Rebloggers) > len(other.Rebloggers) {
		return LinkIsDuplicated
	}
	return LinkDuplicates
}

func (e *Entry) duplicatesByContent(tl Timeline, other *Entry) DuplicationLink {
	if e.updatedDateKnown() && other.updatedDateKnown() {
		distance := e.UpdatedDate.Sub(other.UpdatedDate)
		if distance < 0 {
			distance = -distance
		}
		if distance >= tl.maxDistance() {
			return LinkNone
		}
	}
	if e.tooShortToCompare(tl.minLength()) || other.tooShortToCompare(tl.minLength()) {
		return LinkNone
	}
	if e.ContentToSearch == other.ContentToSearch {
		if e.UpdatedDate.Equal(other.UpdatedDate) {
			return e.duplicatesByFavoritedAndReblogged(tl, other)
		}
		// The earlier entry is the canonical one.
		if e.UpdatedDate.Before(other.UpdatedDate) {
			return LinkIsDuplicated
		}
		return LinkDuplicates
	}
	// The super-string carries more of the note, keep it.
	if strings.Contains(e.ContentToSearch, other.ContentToSearch) {
		return LinkIsDuplicated
	}
	if strings.Contains(other.ContentToSearch, e.ContentToSearch) {
		return LinkDuplicates
	}
	return LinkNone
}

// Collapse applies pairwise duplicate linking over a freshly loaded page,
// marking hidden entries in place. Already hidden entries are skipped so a
// re-render cannot cascade hides through an entry that is itself hidden.
func (tl Timeline) Collapse(entries []*Entry) {
	for i := 0; i < len(entries); i++ {
		if entries[i].Hidden() {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Hidden() {
				continue
			}
			switch entries[i].Duplicates(tl, entries[j]) {
			case LinkDuplicates:
				entries[i].HiddenByNoteId = entries[j].NoteId
			case LinkIsDuplicated:
				entries[j].HiddenByNoteId = entries[i].NoteId
			}
			if entries[i].Hidden() {
				break
			}
		}
	}
}

// Visible returns the entries that survived collapsing, in input order.
func (tl Timeline) Visible(entries []*Entry) []*Entry {
	visible := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Hidden() {
			visible = append(visible, entry)
		}
	}
	return visible
}
