package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/joinguard/joinguard/common"
	"github.com/joinguard/joinguard/model"
	"github.com/joinguard/joinguard/pkg/log"
)

type JoinEvent struct {
	ChatID           int64
	UserID           int64
	Username         string
	FirstName        string
	LastName         string
	IsBot            bool
	AccountCreatedAt *time.Time
}

type AnswerEvent struct {
	ChatID int64
	UserID int64
	Answer string
}

type LeaveEvent struct {
	ChatID int64
	UserID int64
}

type EngineConfig struct {
	MinAccountAgeDays      int
	MaxCaptchaAttempts     int
	HardCaptchaAttempts    int
	RiskScoreToHardCaptcha int
	ChallengeTimeout       time.Duration
}

// Engine drives each (chat, user) verification record from join to a terminal
// disposition. Events for the same key are serialized; the record is always
// persisted before the matching moderation directive is dispatched.
type Engine struct {
	store  *Store
	timers Scheduler
	gen    ChallengeGenerator
	out    Directives
	cfg    EngineConfig

	locks keyLock
	now   func() time.Time
}

func NewEngine(store *Store, timers Scheduler, gen ChallengeGenerator, out Directives, cfg EngineConfig) *Engine {
	return &Engine{
		store:  store,
		timers: timers,
		gen:    gen,
		out:    out,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (e *Engine) resolve(rec *model.VerificationRecord, state model.State, resolution model.Resolution, decidedBy int64) error {
	rec.State = state
	rec.Resolution = resolution
	rec.ResolvedAt = e.now()
	rec.DecidedBy = decidedBy
	return e.store.Upsert(rec)
}

// OnJoin handles a join event. Join events can be redelivered; an existing
// pending record only has its deadline re-armed.
func (e *Engine) OnJoin(ev JoinEvent) error {
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	unlock := e.locks.Lock(key)
	defer unlock()

	now := e.now()
	rec, err := e.store.Get(key)
	if err != nil && !errors.Is(err, model.ErrRecordNotFound) {
		return err
	}
	if err == nil && !rec.Terminal() {
		rec.DeadlineAt = now.Add(e.cfg.ChallengeTimeout)
		if err := e.store.Upsert(rec); err != nil {
			return err
		}
		e.timers.Schedule(key, rec.DeadlineAt)
		log.Debug("join redelivered for %v, deadline re-armed", key)
		return nil
	}

	rec = &model.VerificationRecord{
		ChatID:           ev.ChatID,
		UserID:           ev.UserID,
		Username:         ev.Username,
		FirstName:        ev.FirstName,
		LastName:         ev.LastName,
		JoinedAt:         now,
		AccountCreatedAt: ev.AccountCreatedAt,
		State:            model.StatePendingAgeCheck,
		MaxAttempts:      e.cfg.MaxCaptchaAttempts,
		DeadlineAt:       now.Add(e.cfg.ChallengeTimeout),
	}
	risk := AssessRisk(ev.UserID, ev.Username, ev.FirstName, ev.LastName, ev.IsBot, e.cfg.MinAccountAgeDays, now)
	rec.RiskScore = risk.Score
	rec.RiskReasons = risk.Reasons
	rec.EstimatedAgeDays = risk.EstimatedAgeDays
	if ev.AccountCreatedAt != nil {
		rec.EstimatedAgeDays = int(now.Sub(*ev.AccountCreatedAt).Hours() / 24)
	}
	if err := e.store.Upsert(rec); err != nil {
		return err
	}

	ageOK := ev.AccountCreatedAt != nil && rec.EstimatedAgeDays >= e.cfg.MinAccountAgeDays
	if !ageOK {
		if err := e.resolve(rec, model.StateFailed, model.ResolutionTooNewAccount, 0); err != nil {
			return err
		}
		log.Info("join rejected for %v: %v", key, risk.Summary())
		return e.out.Kick(ev.ChatID, ev.UserID, fmt.Sprintf("account too new (%dd < %dd)", rec.EstimatedAgeDays, e.cfg.MinAccountAgeDays))
	}

	difficulty := model.DifficultyNormal
	if risk.Score >= e.cfg.RiskScoreToHardCaptcha {
		difficulty = model.DifficultyHard
		rec.MaxAttempts = common.Min(e.cfg.MaxCaptchaAttempts, e.cfg.HardCaptchaAttempts)
	}
	ch, err := e.gen.Generate(difficulty)
	if err != nil {
		return fmt.Errorf("generate challenge: %w", err)
	}
	rec.Challenge = ch
	rec.State = model.StateAwaitingAnswer
	rec.DeadlineAt = now.Add(e.cfg.ChallengeTimeout)
	if err := e.store.Upsert(rec); err != nil {
		return err
	}
	e.timers.Schedule(key, rec.DeadlineAt)
	log.Info("challenge issued for %v (difficulty=%v, %v)", key, difficulty, risk.Summary())

	if err := e.out.Restrict(ev.ChatID, ev.UserID); err != nil {
		return err
	}
	snapshot := *rec
	return e.out.PresentChallenge(&snapshot, rec.MaxAttempts-rec.AttemptsUsed, false)
}

// OnAnswer handles a submitted captcha answer. Answers for unknown or already
// resolved records are silent no-ops.
func (e *Engine) OnAnswer(ev AnswerEvent) error {
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	unlock := e.locks.Lock(key)
	defer unlock()

	rec, err := e.store.Get(key)
	if errors.Is(err, model.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.State != model.StateAwaitingAnswer || rec.Challenge == nil {
		return nil
	}

	if e.gen.Check(rec.Challenge, ev.Answer) {
		if err := e.resolve(rec, model.StateVerified, model.ResolutionCaptchaPassed, 0); err != nil {
			return err
		}
		e.timers.Cancel(key)
		log.Info("captcha passed for %v on attempt %d", key, rec.AttemptsUsed+1)
		return e.out.Admit(ev.ChatID, ev.UserID)
	}

	rec.AttemptsUsed++
	if rec.AttemptsUsed >= rec.MaxAttempts {
		if err := e.resolve(rec, model.StateFailed, model.ResolutionCaptchaFailed, 0); err != nil {
			return err
		}
		e.timers.Cancel(key)
		log.Info("captcha failed for %v after %d attempts", key, rec.AttemptsUsed)
		return e.out.Kick(ev.ChatID, ev.UserID, "captcha failed")
	}

	ch, err := e.gen.Generate(rec.Challenge.Difficulty)
	if err != nil {
		return fmt.Errorf("generate challenge: %w", err)
	}
	rec.Challenge = ch
	rec.DeadlineAt = e.now().Add(e.cfg.ChallengeTimeout)
	if err := e.store.Upsert(rec); err != nil {
		return err
	}
	e.timers.Schedule(key, rec.DeadlineAt)
	snapshot := *rec
	return e.out.PresentChallenge(&snapshot, rec.MaxAttempts-rec.AttemptsUsed, true)
}

// OnTimeout fires when an armed deadline passes. Cancellation is best-effort,
// so the persisted state is authoritative: late fires on resolved or re-armed
// records are no-ops.
func (e *Engine) OnTimeout(key model.RecordKey) error {
	unlock := e.locks.Lock(key)
	defer unlock()

	rec, err := e.store.Get(key)
	if errors.Is(err, model.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Terminal() {
		return nil
	}
	now := e.now()
	if now.Before(rec.DeadlineAt) {
		e.timers.Schedule(key, rec.DeadlineAt)
		return nil
	}
	if err := e.resolve(rec, model.StateExpired, model.ResolutionTimeout, 0); err != nil {
		return err
	}
	log.Info("verification expired for %v", key)
	return e.out.Kick(key.ChatID, key.UserID, "captcha timeout")
}

// OnLeave expires a pending record when the user leaves on their own. The
// platform already removed membership, so no directive is dispatched.
func (e *Engine) OnLeave(ev LeaveEvent) error {
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	unlock := e.locks.Lock(key)
	defer unlock()

	rec, err := e.store.Get(key)
	if errors.Is(err, model.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Terminal() {
		return nil
	}
	e.timers.Cancel(key)
	if err := e.resolve(rec, model.StateExpired, model.ResolutionLeft, 0); err != nil {
		return err
	}
	log.Info("user %v left before resolution", key)
	return nil
}

// Approve is the admin override that force-admits a pending user.
func (e *Engine) Approve(key model.RecordKey, adminID int64) error {
	unlock := e.locks.Lock(key)
	defer unlock()

	rec, err := e.store.Get(key)
	if err != nil {
		return err
	}
	if rec.Terminal() {
		return model.ErrTerminalRecord
	}
	e.timers.Cancel(key)
	if err := e.resolve(rec, model.StateVerified, model.ResolutionAdminApprove, adminID); err != nil {
		return err
	}
	log.Info("admin %v approved %v", adminID, key)
	return e.out.Admit(key.ChatID, key.UserID)
}

// Decline is the admin override that force-rejects a pending user.
func (e *Engine) Decline(key model.RecordKey, adminID int64) error {
	unlock := e.locks.Lock(key)
	defer unlock()

	rec, err := e.store.Get(key)
	if err != nil {
		return err
	}
	if rec.Terminal() {
		return model.ErrTerminalRecord
	}
	e.timers.Cancel(key)
	if err := e.resolve(rec, model.StateFailed, model.ResolutionAdminDecline, adminID); err != nil {
		return err
	}
	log.Info("admin %v declined %v", adminID, key)
	return e.out.Kick(key.ChatID, key.UserID, "declined by admin")
}

// Recover rebuilds outstanding timers from the store after a restart. Records
// whose deadline already passed are expired immediately.
func (e *Engine) Recover() error {
	recs, err := e.store.ListNonTerminal()
	if err != nil {
		return err
	}
	now := e.now()
	for _, rec := range recs {
		key := rec.Key()
		if !rec.DeadlineAt.After(now) {
			if err := e.OnTimeout(key); err != nil {
				log.Warn("recover: expire %v: %v", key, err)
			}
			continue
		}
		e.timers.Schedule(key, rec.DeadlineAt)
	}
	if len(recs) > 0 {
		log.Info("recovered %d pending verification(s)", len(recs))
	}
	return nil
}
