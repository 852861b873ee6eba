package bot

import (
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/joinguard/joinguard/pkg/log"
)

// The engine talks to Telegram through these three calls. All of them are
// idempotent on the platform side: lifting restrictions twice or banning an
// absent member are harmless.

func (b *Bot) Admit(chatID, userID int64) error {
	return b.Bot.Restrict(&tb.Chat{ID: chatID}, &tb.ChatMember{
		User:   &tb.User{ID: userID},
		Rights: tb.NoRestrictions(),
	})
}

func (b *Bot) Restrict(chatID, userID int64) error {
	return b.Bot.Restrict(&tb.Chat{ID: chatID}, &tb.ChatMember{
		User:            &tb.User{ID: userID},
		Rights:          tb.NoRights(),
		RestrictedUntil: tb.Forever(),
	})
}

// Kick removes the member without a permanent ban: ban then unban, so the
// user may request to join again later.
func (b *Bot) Kick(chatID, userID int64, reason string) error {
	chat := &tb.Chat{ID: chatID}
	user := &tb.User{ID: userID}
	if err := b.Bot.Ban(chat, &tb.ChatMember{User: user, RestrictedUntil: tb.Forever()}); err != nil {
		return err
	}
	if err := b.Bot.Unban(chat, user); err != nil {
		log.Warn("unban after kick of %v: %v", userID, err)
	}
	return nil
}
