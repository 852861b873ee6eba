package command_handler

import (
	"fmt"
	"strings"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/joinguard/joinguard/bot"
	"github.com/joinguard/joinguard/model"
)

func init() {
	bot.RegisterCommands("pending", Pending)
}

func Pending(b *bot.Bot, m *tb.Message, params []string) {
	if !b.IsAdmin(int64(m.Sender.ID)) {
		_, _ = b.Bot.Reply(m, "Admins only.", tb.Silent)
		return
	}
	recs, err := b.Store.ListByState(model.StateAwaitingAnswer, 8)
	if err != nil {
		_, _ = b.Bot.Reply(m, err.Error(), tb.Silent)
		return
	}
	if len(recs) == 0 {
		_, _ = b.Bot.Reply(m, "No pending verifications.", tb.Silent)
		return
	}
	lines := []string{fmt.Sprintf("Pending verifications: %d", len(recs))}
	var rows [][]tb.InlineButton
	for _, rec := range recs {
		username := "not set"
		if rec.Username != "" {
			username = "@" + rec.Username
		}
		lines = append(lines, fmt.Sprintf("%v %v %v risk=%d attempts=%d/%d deadline=%v",
			rec.Key(), rec.FullName(), username, rec.RiskScore, rec.AttemptsUsed, rec.MaxAttempts,
			rec.DeadlineAt.UTC().Format("15:04:05 UTC")))
		rows = append(rows, []tb.InlineButton{
			{Text: fmt.Sprintf("Approve %v", rec.UserID), Data: fmt.Sprintf("adm:approve:%d:%d", rec.ChatID, rec.UserID)},
			{Text: fmt.Sprintf("Decline %v", rec.UserID), Data: fmt.Sprintf("adm:decline:%d:%d", rec.ChatID, rec.UserID)},
		})
	}
	_, _ = b.Bot.Reply(m, strings.Join(lines, "\n"), tb.Silent, &tb.ReplyMarkup{InlineKeyboard: rows})
}
