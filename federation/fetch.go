package federation

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/deemkeen/mergodon/domain"
	"github.com/deemkeen/mergodon/users"
	"github.com/deemkeen/mergodon/util"
	"github.com/google/uuid"
)

// ProfileResponse represents the JSON structure of a federated actor profile
type ProfileResponse struct {
	Context           interface{} `json:"@context"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              string      `json:"name"`
	Summary           string      `json:"summary"`
	URL               string      `json:"url"`
	Icon              struct {
		Type      string `json:"type"`
		MediaType string `json:"mediaType"`
		URL       string `json:"url"`
	} `json:"icon"`
}

// Store is what the fetcher needs from the database: persisting the fetched
// record and keeping the fetch log.
type Store interface {
	SaveActor(actor *domain.Actor) error
	LogFetchRequest(id uuid.UUID, actorId int64, username string) error
	UpdateFetchStatus(id uuid.UUID, status string) error
}

type request struct {
	id       uuid.UUID
	actorId  int64
	username string
}

// Fetcher loads full actor profiles from their home servers in the
// background. Requests are fire-and-forget; a fetched profile re-enters
// the system through the actor cache's Offer and the persistent store.
type Fetcher struct {
	conf     *util.AppConfig
	cache    *users.Cache
	store    Store
	client   *http.Client
	requests chan request
}

var retryBackoff = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}

func NewFetcher(conf *util.AppConfig, cache *users.Cache, store Store) *Fetcher {
	queueSize := conf.Conf.FetchQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Fetcher{
		conf:     conf,
		cache:    cache,
		store:    store,
		client:   &http.Client{Timeout: 10 * time.Second},
		requests: make(chan request, queueSize),
	}
}

// Start launches the background worker.
func (f *Fetcher) Start() {
	log.Println("Starting profile fetch worker...")
	go func() {
		for req := range f.requests {
			f.process(req)
		}
	}()
}

// RequestProfile enqueues a profile fetch without blocking the caller.
// A full queue drops the request; an incomplete actor will be requested
// again the next time it is used.
func (f *Fetcher) RequestProfile(actorId int64, username string) {
	if actorId == 0 {
		return
	}
	req := request{id: uuid.New(), actorId: actorId, username: username}
	select {
	case f.requests <- req:
		if f.store != nil {
			if err := f.store.LogFetchRequest(req.id, actorId, username); err != nil {
				log.Printf("FetchWorker: could not log request: %v", err)
			}
		}
	default:
		log.Printf("FetchWorker: queue full, dropping fetch for actor %d", actorId)
	}
}

func (f *Fetcher) process(req request) {
	var err error
	for attempt := 0; attempt < len(retryBackoff); attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff[attempt-1])
		}
		if err = f.fetchProfile(req); err == nil {
			f.markStatus(req, "done")
			return
		}
	}
	log.Printf("FetchWorker: giving up on actor %d: %v", req.actorId, err)
	f.markStatus(req, "failed")
}

func (f *Fetcher) markStatus(req request, status string) {
	if f.store == nil {
		return
	}
	if err := f.store.UpdateFetchStatus(req.id, status); err != nil {
		log.Printf("FetchWorker: could not update fetch log: %v", err)
	}
}

func (f *Fetcher) fetchProfile(req request) error {
	cached := f.cache.Get(req.actorId)
	username := req.username
	if username == "" {
		username = cached.Username
	}
	host := cached.Host()
	if pos := strings.Index(username, "@"); pos >= 0 {
		host = username[pos+1:]
		username = username[:pos]
	}
	if !domain.HostValid(host) || username == "" {
		return fmt.Errorf("no usable host for actor %d", req.actorId)
	}

	profileURI := fmt.Sprintf("https://%s/users/%s", host, username)
	httpReq, err := http.NewRequest("GET", profileURI, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/activity+json")
	httpReq.Header.Set("User-Agent", util.GetNameAndVersion())

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("profile fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var profile ProfileResponse
	if err := json.Unmarshal(body, &profile); err != nil {
		return fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	if profile.ID == "" || profile.PreferredUsername == "" {
		return fmt.Errorf("profile missing required fields")
	}

	actor := domain.ActorFromId(cached.Origin, req.actorId, profile.ID)
	actor = actor.WithUsername(profile.PreferredUsername)
	actor = actor.WithWebFingerId(strings.ToLower(profile.PreferredUsername + "@" + host))
	actor = actor.WithProfileUrl(profile.URL)
	actor.RealName = profile.Name
	actor.AvatarUrl = profile.Icon.URL
	actor = actor.WithUpdatedDate(time.Now().UTC())

	best := f.cache.Offer(actor)
	if f.store != nil && best.Oid == actor.Oid && best.UpdatedDate.Equal(actor.UpdatedDate) {
		saved := best
		if err := f.store.SaveActor(&saved); err != nil {
			log.Printf("FetchWorker: could not persist actor %d: %v", req.actorId, err)
		}
	}
	return nil
}
