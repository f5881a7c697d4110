package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/mergodon/util"
	"github.com/gorilla/feeds"
)

func (s *Server) GetRSS() (string, error) {

	link := fmt.Sprintf("http://%s:%d/feed", s.Conf.Conf.Host, s.Conf.Conf.HttpPort)

	err, entries := s.DB.ReadTimeline(defaultTimelineLimit)
	if err != nil {
		log.Println("Could not get timeline entries!", err)
		return "", errors.New("error retrieving timeline entries")
	}

	s.Timeline.Collapse(entries)
	entries = s.Timeline.Visible(entries)

	feed := &feeds.Feed{
		Title:       "Mergodon Timeline",
		Link:        &feeds.Link{Href: link},
		Description: "merged and deduplicated fediverse timeline",
		Author:      &feeds.Author{Name: "everyone", Email: "everyone@mergodon"},
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, entry := range entries {
		author := entry.Author.NamePreferablyWebFingerId()
		feedItems = append(feedItems,
			&feeds.Item{
				Id:      fmt.Sprintf("%d", entry.NoteId),
				Title:   entry.UpdatedDate.Format(util.DateTimeFormat()),
				Link:    &feeds.Link{Href: fmt.Sprintf("http://%s:%d/feed/%d", s.Conf.Conf.Host, s.Conf.Conf.HttpPort, entry.NoteId)},
				Content: entry.Content,
				Author:  &feeds.Author{Name: author, Email: fmt.Sprintf("%s@mergodon", author)},
				Created: entry.UpdatedDate,
			})
	}

	feed.Items = feedItems
	return feed.ToRss()
}
