package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const BucketVerification = "verification"

var (
	ErrRecordNotFound = fmt.Errorf("verification record not found")
	ErrTerminalRecord = fmt.Errorf("verification record is terminal")
)

type State string

const (
	StatePendingAgeCheck State = "pending_age_check"
	StateAwaitingAnswer  State = "awaiting_answer"
	StateVerified        State = "verified"
	StateFailed          State = "failed"
	StateExpired         State = "expired"
)

func (s State) Terminal() bool {
	switch s {
	case StateVerified, StateFailed, StateExpired:
		return true
	}
	return false
}

type Resolution string

const (
	ResolutionCaptchaPassed Resolution = "captcha_passed"
	ResolutionCaptchaFailed Resolution = "captcha_failed"
	ResolutionTooNewAccount Resolution = "too_new_account"
	ResolutionTimeout       Resolution = "timeout"
	ResolutionLeft          Resolution = "left"
	ResolutionAdminApprove  Resolution = "admin_approve"
	ResolutionAdminDecline  Resolution = "admin_decline"
)

// RecordKey identifies one pending or resolved join.
type RecordKey struct {
	ChatID int64
	UserID int64
}

func (k RecordKey) String() string {
	return strconv.FormatInt(k.ChatID, 10) + ":" + strconv.FormatInt(k.UserID, 10)
}

func (k RecordKey) Bytes() []byte {
	return []byte(k.String())
}

func ParseRecordKey(s string) (RecordKey, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return RecordKey{}, fmt.Errorf("invalid record key: %v", s)
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return RecordKey{}, fmt.Errorf("invalid record key: %v", s)
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return RecordKey{}, fmt.Errorf("invalid record key: %v", s)
	}
	return RecordKey{ChatID: chatID, UserID: userID}, nil
}

// VerificationRecord tracks one (chat, user) join from arrival to disposition.
type VerificationRecord struct {
	ChatID           int64
	UserID           int64
	Username         string
	FirstName        string
	LastName         string
	JoinedAt         time.Time
	AccountCreatedAt *time.Time
	EstimatedAgeDays int
	RiskScore        int
	RiskReasons      []string
	State            State
	Challenge        *Challenge
	AttemptsUsed     int
	MaxAttempts      int
	DeadlineAt       time.Time
	ResolvedAt       time.Time
	Resolution       Resolution
	DecidedBy        int64
}

func (r *VerificationRecord) Key() RecordKey {
	return RecordKey{ChatID: r.ChatID, UserID: r.UserID}
}

func (r *VerificationRecord) Terminal() bool {
	return r.State.Terminal()
}

func (r *VerificationRecord) FullName() string {
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if name == "" {
		return strconv.FormatInt(r.UserID, 10)
	}
	return name
}
