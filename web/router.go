package web

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/deemkeen/mergodon/db"
	"github.com/deemkeen/mergodon/domain"
	"github.com/deemkeen/mergodon/identity"
	"github.com/deemkeen/mergodon/timeline"
	"github.com/deemkeen/mergodon/users"
	"github.com/deemkeen/mergodon/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"golang.org/x/time/rate"
)

const defaultTimelineLimit = 100

// Server wires the timeline API onto the engine components. Everything is
// injected; the server owns no state of its own.
type Server struct {
	Conf      *util.AppConfig
	DB        *db.DB
	Loader    *users.Loader
	Extractor *identity.Extractor
	Timeline  timeline.Timeline
}

type actorView struct {
	ActorId     int64  `json:"actorId"`
	Oid         string `json:"oid,omitempty"`
	Username    string `json:"username,omitempty"`
	WebFingerId string `json:"webFingerId,omitempty"`
	RealName    string `json:"realName,omitempty"`
	Origin      string `json:"origin,omitempty"`
	DisplayName string `json:"displayName"`
	Partial     bool   `json:"partiallyDefined"`
}

type entryView struct {
	NoteId         int64     `json:"noteId"`
	Author         actorView `json:"author"`
	Content        string    `json:"content"`
	Favorited      bool      `json:"favorited"`
	Reblogged      bool      `json:"reblogged"`
	Rebloggers     []string  `json:"rebloggers,omitempty"`
	LinkedAccount  string    `json:"linkedAccount"`
	UpdatedDate    time.Time `json:"updatedDate"`
	HiddenByNoteId int64     `json:"hiddenByNoteId,omitempty"`
}

type mentionsRequest struct {
	AuthorId         int64  `json:"authorId"`
	Text             string `json:"text"`
	ReplyOnly        bool   `json:"replyOnly"`
	InReplyToActorId int64  `json:"inReplyToActorId"`
}

// Router starts the HTTP server.
func (s *Server) Router() error {
	log.Printf("Starting timeline API server on %s:%d", s.Conf.Conf.Host, s.Conf.Conf.HttpPort)
	g := s.Handler()
	return g.Run(fmt.Sprintf(":%d", s.Conf.Conf.HttpPort))
}

// Handler builds the gin engine, separate from Router so tests can drive
// it through httptest.
func (s *Server) Handler() *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/api/timeline", s.handleTimeline)
	g.GET("/api/actors/:id", s.handleActor)
	g.POST("/api/mentions", MaxBytesMiddleware(64*1024), s.handleMentions)

	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		rss, err := s.GetRSS()
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	return g
}

func (s *Server) handleTimeline(c *gin.Context) {
	limit := defaultTimelineLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	err, entries := s.DB.ReadTimeline(limit)
	if err != nil {
		log.Printf("Could not read timeline: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Timeline unavailable"})
		return
	}

	s.Timeline.Collapse(entries)
	if c.Query("all") != "true" {
		entries = s.Timeline.Visible(entries)
	}

	views := make([]entryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toEntryView(entry))
	}
	c.JSON(http.StatusOK, gin.H{"entries": views})
}

func (s *Server) handleActor(c *gin.Context) {
	actorId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || actorId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid actor ID"})
		return
	}

	actor := s.Loader.Load(actorId)
	if actor.IsEmpty() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Actor not found"})
		return
	}
	c.JSON(http.StatusOK, toActorView(actor))
}

func (s *Server) handleMentions(c *gin.Context) {
	var req mentionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	author := s.Loader.Load(req.AuthorId)
	if author.IsEmpty() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Author not found"})
		return
	}
	inReplyTo := domain.EmptyActor
	if req.InReplyToActorId != 0 {
		inReplyTo = s.Loader.Load(req.InReplyToActorId)
	}

	mentioned := s.Extractor.Extract(author, req.Text, req.ReplyOnly, inReplyTo)
	views := make([]actorView, 0, len(mentioned))
	for _, actor := range mentioned {
		views = append(views, toActorView(actor))
	}
	c.JSON(http.StatusOK, gin.H{"mentions": views})
}

func toActorView(actor domain.Actor) actorView {
	view := actorView{
		ActorId:     actor.ActorId,
		Oid:         actor.Oid,
		Username:    actor.Username,
		RealName:    actor.RealName,
		Origin:      actor.Origin.Name,
		DisplayName: actor.NamePreferablyWebFingerId(),
		Partial:     actor.PartiallyDefined(),
	}
	if actor.WebFingerValid {
		view.WebFingerId = actor.WebFingerId
	}
	return view
}

func toEntryView(entry *timeline.Entry) entryView {
	view := entryView{
		NoteId:         entry.NoteId,
		Author:         toActorView(entry.Author),
		Content:        entry.Content,
		Favorited:      entry.Favorited,
		Reblogged:      entry.Reblogged,
		LinkedAccount:  entry.LinkedAccount,
		UpdatedDate:    entry.UpdatedDate,
		HiddenByNoteId: entry.HiddenByNoteId,
	}
	for _, name := range entry.Rebloggers {
		view.Rebloggers = append(view.Rebloggers, name)
	}
	return view
}
