package service

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joinguard/joinguard/model"
	"github.com/joinguard/joinguard/pkg/log"
)

// Directives is the moderation surface the engine emits against. The platform
// adapter implements it; every call must be idempotent on the platform side.
type Directives interface {
	Admit(chatID, userID int64) error
	Restrict(chatID, userID int64) error
	Kick(chatID, userID int64, reason string) error
	PresentChallenge(rec *model.VerificationRecord, attemptsLeft int, reissued bool) error
}

// AdminNotifier pushes a message to every configured admin.
type AdminNotifier interface {
	NotifyAdmins(text string)
}

// RetryDispatcher wraps a Directives implementation with bounded exponential
// backoff. Directives are dispatched asynchronously; the engine has already
// persisted the terminal state, so a retry re-reads nothing and re-sends the
// same action. Exhausted retries are surfaced to the admins, never dropped.
type RetryDispatcher struct {
	inner           Directives
	notifier        AdminNotifier
	maxRetries      uint64
	initialInterval time.Duration
}

func NewRetryDispatcher(inner Directives, notifier AdminNotifier) *RetryDispatcher {
	return &RetryDispatcher{
		inner:           inner,
		notifier:        notifier,
		maxRetries:      5,
		initialInterval: 500 * time.Millisecond,
	}
}

func (d *RetryDispatcher) retry(desc string, op func() error) {
	go func() {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = d.initialInterval
		if err := backoff.Retry(op, backoff.WithMaxRetries(bo, d.maxRetries)); err != nil {
			log.Error("dispatch %v failed after %d retries: %v", desc, d.maxRetries, err)
			if d.notifier != nil {
				d.notifier.NotifyAdmins(fmt.Sprintf("Moderation action undelivered: %v (%v)", desc, err))
			}
		}
	}()
}

func describe(dir model.Directive) string {
	if dir.Reason != "" {
		return fmt.Sprintf("%v %v in %v (%v)", dir.Kind, dir.UserID, dir.ChatID, dir.Reason)
	}
	return fmt.Sprintf("%v %v in %v", dir.Kind, dir.UserID, dir.ChatID)
}

func (d *RetryDispatcher) Admit(chatID, userID int64) error {
	dir := model.Directive{Kind: model.DirectiveAdmit, ChatID: chatID, UserID: userID}
	d.retry(describe(dir), func() error {
		return d.inner.Admit(chatID, userID)
	})
	return nil
}

func (d *RetryDispatcher) Restrict(chatID, userID int64) error {
	dir := model.Directive{Kind: model.DirectiveRestrict, ChatID: chatID, UserID: userID}
	d.retry(describe(dir), func() error {
		return d.inner.Restrict(chatID, userID)
	})
	return nil
}

func (d *RetryDispatcher) Kick(chatID, userID int64, reason string) error {
	dir := model.Directive{Kind: model.DirectiveKick, ChatID: chatID, UserID: userID, Reason: reason}
	d.retry(describe(dir), func() error {
		return d.inner.Kick(chatID, userID, reason)
	})
	if d.notifier != nil {
		d.notifier.NotifyAdmins(fmt.Sprintf("User %v kicked from %v: %v", userID, chatID, reason))
	}
	return nil
}

func (d *RetryDispatcher) PresentChallenge(rec *model.VerificationRecord, attemptsLeft int, reissued bool) error {
	d.retry(fmt.Sprintf("challenge for %v", rec.Key()), func() error {
		return d.inner.PresentChallenge(rec, attemptsLeft, reissued)
	})
	return nil
}
