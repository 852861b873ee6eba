package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joinguard/joinguard/common"
)

// RiskAssessment summarizes the join-time signals used to pick the challenge
// difficulty. It never decides the outcome on its own.
type RiskAssessment struct {
	EstimatedAgeDays int
	Score            int
	Reasons          []string
}

var digitRunPattern = regexp.MustCompile(`\d{4,}`)

func nameLooksSuspicious(firstName, lastName string) bool {
	full := strings.ToLower(strings.TrimSpace(firstName + " " + lastName))
	compact := strings.ReplaceAll(full, " ", "")
	if len(compact) < 4 {
		return true
	}
	if digitRunPattern.MatchString(compact) {
		return true
	}
	return hasCharRun(compact, 4)
}

func hasCharRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// AssessRisk scores a joining user from locally available signals.
func AssessRisk(userID int64, username, firstName, lastName string, isBot bool, minAccountAgeDays int, now time.Time) RiskAssessment {
	ageDays := common.EstimateAccountAgeDays(userID, now)
	r := RiskAssessment{EstimatedAgeDays: ageDays}
	r.Reasons = append(r.Reasons, fmt.Sprintf("estimated_account_age=%dd", ageDays))
	if isBot {
		r.Score += 10
		r.Reasons = append(r.Reasons, "bot_account")
	}
	if ageDays < minAccountAgeDays {
		r.Score += 5
		r.Reasons = append(r.Reasons, fmt.Sprintf("age_below_threshold(%d<%d)", ageDays, minAccountAgeDays))
	}
	if username == "" {
		r.Score += 3
		r.Reasons = append(r.Reasons, "no_username")
	}
	if nameLooksSuspicious(firstName, lastName) {
		r.Score += 2
		r.Reasons = append(r.Reasons, "suspicious_name")
	}
	return r
}

func (r RiskAssessment) Summary() string {
	if len(r.Reasons) == 0 {
		return fmt.Sprintf("risk_score=%d; reasons=none", r.Score)
	}
	return fmt.Sprintf("risk_score=%d; reasons=%s", r.Score, strings.Join(r.Reasons, "; "))
}
