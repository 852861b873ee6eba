package service

import (
	"time"

	"github.com/joinguard/joinguard/model"
)

type DecisionSummary struct {
	Key        string
	User       string
	State      model.State
	Resolution model.Resolution
	RiskScore  int
	ResolvedAt time.Time
}

// StatsReport is the 24h dashboard shared by the bot commands and the ops API.
type StatsReport struct {
	Since           time.Time
	Total           int
	ByState         map[model.State]int
	RecentDecisions []DecisionSummary
}

func BuildStats(store *Store, window time.Duration, recentLimit int) (*StatsReport, error) {
	since := time.Now().Add(-window)
	counts, err := store.CountByStateSince(since)
	if err != nil {
		return nil, err
	}
	recent, err := store.ListRecentDecisions(recentLimit)
	if err != nil {
		return nil, err
	}
	report := &StatsReport{
		Since:   since,
		ByState: counts,
	}
	for _, n := range counts {
		report.Total += n
	}
	for _, rec := range recent {
		report.RecentDecisions = append(report.RecentDecisions, DecisionSummary{
			Key:        rec.Key().String(),
			User:       rec.FullName(),
			State:      rec.State,
			Resolution: rec.Resolution,
			RiskScore:  rec.RiskScore,
			ResolvedAt: rec.ResolvedAt,
		})
	}
	return report, nil
}
