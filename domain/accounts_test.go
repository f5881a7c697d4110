package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAccountToString(t *testing.T) {
	id := uuid.New()
	acc := &Account{
		Id:        id,
		Name:      "testuser@mastodon.example",
		OriginId:  1,
		ActorId:   7,
		CreatedAt: time.Now(),
	}

	result := acc.ToString()

	if len(result) == 0 {
		t.Error("ToString() returned empty string")
	}

	// Should contain the account name
	if !strings.Contains(result, "testuser@mastodon.example") {
		t.Errorf("ToString() should contain the name, got: %s", result)
	}

	// Should contain ID
	if !strings.Contains(result, id.String()) {
		t.Errorf("ToString() should contain ID, got: %s", result)
	}
}
