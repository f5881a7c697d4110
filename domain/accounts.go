package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Account is one of the user's own accounts on an origin. Timeline entries
// remember which account downloaded them; the account name is the order key
// when duplicate entries tie on everything else.
type Account struct {
	Id        uuid.UUID
	Name      string // username@origin
	OriginId  int64
	ActorId   int64
	CreatedAt time.Time
}

func (acc *Account) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tName: %s \n\tOriginId: %d \n\tActorId: %d", acc.Id, acc.Name, acc.OriginId, acc.ActorId)
}
