package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/deemkeen/mergodon/db"
	"github.com/deemkeen/mergodon/domain"
	"github.com/deemkeen/mergodon/identity"
	"github.com/deemkeen/mergodon/timeline"
	"github.com/deemkeen/mergodon/users"
	"github.com/deemkeen/mergodon/util"
	"github.com/gin-gonic/gin"
)

func setupTestServer(t *testing.T) (*Server, *db.DB, domain.Origin) {
	gin.SetMode(gin.TestMode)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	origin := domain.Origin{Kind: domain.OriginKindMastodon, Name: "mastodon.example", Host: "example.org"}
	if err := database.CreateOrigin(&origin); err != nil {
		t.Fatalf("Failed to create origin: %v", err)
	}

	cache := users.NewCache()
	resolver := identity.NewResolver(database)

	conf := &util.AppConfig{}
	conf.Conf.Host = "127.0.0.1"
	conf.Conf.HttpPort = 8080

	server := &Server{
		Conf:      conf,
		DB:        database,
		Loader:    users.NewLoader(cache, database, nil),
		Extractor: identity.NewExtractor(resolver, cache),
		Timeline:  timeline.NewTimeline(domain.OriginEmpty),
	}
	return server, database, origin
}

func createTestActor(t *testing.T, database *db.DB, origin domain.Origin, username string) domain.Actor {
	actor := domain.NewActor(origin, "https://example.org/users/"+username).
		WithUsername(username).
		WithWebFingerId(username + "@example.org")
	if err := database.SaveActor(&actor); err != nil {
		t.Fatalf("Failed to save actor: %v", err)
	}
	return actor
}

func createTestNote(t *testing.T, database *db.DB, origin domain.Origin, author domain.Actor, noteId int64, content string, updated time.Time) {
	entry := &timeline.Entry{
		NoteId:          noteId,
		Origin:          origin,
		Author:          author,
		Content:         content,
		ContentToSearch: util.ContentToSearch(content),
		LinkedAccount:   "me@mastodon.example",
		UpdatedDate:     updated,
	}
	if err := database.CreateNote(entry); err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}
}

func TestTimelineEndpointCollapsesDuplicates(t *testing.T) {
	server, database, origin := setupTestServer(t)
	author := createTestActor(t, database, origin, "alice")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	createTestNote(t, database, origin, author, 1, "the very same words", base)
	createTestNote(t, database, origin, author, 2, "the very same words", base.Add(10*time.Minute))
	createTestNote(t, database, origin, author, 3, "something else entirely", base.Add(time.Minute))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/timeline", nil)
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Entries []entryView `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("Expected 2 visible entries, got %d", len(resp.Entries))
	}
	for _, entry := range resp.Entries {
		if entry.NoteId == 2 {
			t.Error("The duplicate note should be hidden")
		}
	}
}

func TestTimelineEndpointAllIncludesHidden(t *testing.T) {
	server, database, origin := setupTestServer(t)
	author := createTestActor(t, database, origin, "alice")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	createTestNote(t, database, origin, author, 1, "the very same words", base)
	createTestNote(t, database, origin, author, 2, "the very same words", base.Add(10*time.Minute))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/timeline?all=true", nil)
	server.Handler().ServeHTTP(w, req)

	var resp struct {
		Entries []entryView `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("Expected both entries with all=true, got %d", len(resp.Entries))
	}

	hidden := 0
	for _, entry := range resp.Entries {
		if entry.HiddenByNoteId != 0 {
			hidden++
		}
	}
	if hidden != 1 {
		t.Errorf("Expected exactly one hidden entry, got %d", hidden)
	}
}

func TestTimelineEndpointBadLimit(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/timeline?limit=zero", nil)
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad limit, got %d", w.Code)
	}
}

func TestActorEndpoint(t *testing.T) {
	server, database, origin := setupTestServer(t)
	actor := createTestActor(t, database, origin, "bob")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/actors/"+strconv.FormatInt(actor.ActorId, 10), nil)
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var view actorView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if view.Username != "bob" || view.WebFingerId != "bob@example.org" {
		t.Errorf("Unexpected actor view: %+v", view)
	}
	if view.Partial {
		t.Error("A stored actor with a real oid should not report partial")
	}
}

func TestActorEndpointNotFound(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/actors/9999", nil)
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/actors/notanumber", nil)
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed id, got %d", w.Code)
	}
}

func TestMentionsEndpoint(t *testing.T) {
	server, database, origin := setupTestServer(t)
	author := createTestActor(t, database, origin, "alice")
	mentioned := createTestActor(t, database, origin, "carol")

	body, _ := json.Marshal(mentionsRequest{
		AuthorId: author.ActorId,
		Text:     "hello @carol@example.org nice to meet you",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/mentions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Mentions []actorView `json:"mentions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Mentions) != 1 {
		t.Fatalf("Expected one mention, got %d", len(resp.Mentions))
	}
	if resp.Mentions[0].ActorId != mentioned.ActorId {
		t.Errorf("Mention should resolve to the stored actor, got %+v", resp.Mentions[0])
	}
}

func TestMentionsEndpointUnknownAuthor(t *testing.T) {
	server, _, _ := setupTestServer(t)

	body, _ := json.Marshal(mentionsRequest{AuthorId: 9999, Text: "@nobody"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/mentions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown author, got %d", w.Code)
	}
}

func TestFeedEndpoint(t *testing.T) {
	server, database, origin := setupTestServer(t)
	author := createTestActor(t, database, origin, "alice")
	createTestNote(t, database, origin, author, 1, "a note for the feed", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/feed", nil)
	req.Header.Set("Accept-Encoding", "identity")
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("a note for the feed")) {
		t.Error("Feed should contain the note content")
	}
}
