package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/joinguard/joinguard/common"
)

type FeedFormat int

const (
	FeedFormatAtom FeedFormat = iota
	FeedFormatRSS
	FeedFormatJSON
)

// DecisionFeed renders the most recent moderation decisions as a feed that
// admins can subscribe to.
func DecisionFeed(store *Store, format FeedFormat) (string, error) {
	recs, err := store.ListRecentDecisions(50)
	if err != nil {
		return "", err
	}
	feed := &feeds.Feed{
		Title:       "joinguard decisions",
		Link:        &feeds.Link{Href: "https://t.me/"},
		Description: "Recent join verification outcomes",
		Created:     time.Now(),
	}
	for _, rec := range recs {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          common.StringToUUID5(rec.Key().String() + rec.ResolvedAt.UTC().Format(time.RFC3339)),
			Title:       fmt.Sprintf("%v: %v (%v)", rec.FullName(), rec.State, rec.Resolution),
			Link:        &feeds.Link{Href: "https://t.me/"},
			Description: fmt.Sprintf("risk_score=%d; %s", rec.RiskScore, strings.Join(rec.RiskReasons, "; ")),
			Created:     rec.ResolvedAt,
		})
	}
	switch format {
	case FeedFormatRSS:
		return feed.ToRss()
	case FeedFormatJSON:
		return feed.ToJSON()
	default:
		return feed.ToAtom()
	}
}
