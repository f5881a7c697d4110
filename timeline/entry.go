package timeline

import (
	"time"

	"github.com/deemkeen/mergodon/domain"
)

// DuplicationLink is the verdict for a pair of timeline entries. The verdict
// is directed: the entry that "duplicates" the other is the one hidden.
type DuplicationLink int

const (
	LinkNone DuplicationLink = iota
	// The receiver duplicates the other entry and should be hidden.
	LinkDuplicates
	// The receiver is duplicated by the other entry and is kept.
	LinkIsDuplicated
)

func (l DuplicationLink) String() string {
	switch l {
	case LinkDuplicates:
		return "duplicates"
	case LinkIsDuplicated:
		return "is-duplicated"
	default:
		return "none"
	}
}

// DownloadStatus of a note's content.
type DownloadStatus int

const (
	StatusUnknown DownloadStatus = iota
	StatusLoaded
	StatusNeedsDownload
	StatusDeleted
)

// Entry wraps one note as it appears in a merged timeline: the note
// identity, its author, reply context, per-account interaction state and
// the denormalized text used for content comparison. The same logical note
// can appear as several entries, one per account that downloaded it.
type Entry struct {
	NoteId int64
	Origin domain.Origin

	Author          domain.Actor
	InReplyToNoteId int64
	InReplyToActor  domain.Actor

	NoteStatus DownloadStatus

	Content         string
	ContentToSearch string

	Favorited  bool
	Reblogged  bool
	Rebloggers map[int64]string

	// Name of the account that downloaded this entry.
	LinkedAccount string

	UpdatedDate  time.Time
	ActivityDate time.Time

	// Non-zero once duplicate linking has hidden this entry in favor of
	// another. Entries are never deleted while collapsing.
	HiddenByNoteId int64
}

func (e *Entry) IsEmpty() bool {
	return e == nil || e.NoteId == 0
}

func (e *Entry) Hidden() bool {
	return e.HiddenByNoteId != 0
}

func (e *Entry) IsRebloggedByAnyone() bool {
	return len(e.Rebloggers) > 0
}

// AddReblogger records an actor who reblogged this note.
func (e *Entry) AddReblogger(actorId int64, name string) {
	if e.Rebloggers == nil {
		e.Rebloggers = make(map[int64]string)
	}
	e.Rebloggers[actorId] = name
}

func (e *Entry) tooShortToCompare(minLength int) bool {
	return len(e.ContentToSearch) < minLength
}

func (e *Entry) updatedDateKnown() bool {
	return e.UpdatedDate.After(domain.SomeTimeAgo)
}
