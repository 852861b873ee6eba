package command_handler

import (
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/joinguard/joinguard/bot"
	"github.com/joinguard/joinguard/model"
)

func init() {
	bot.RegisterCommands("approve", Approve)
	bot.RegisterCommands("decline", Decline)
}

func decide(b *bot.Bot, m *tb.Message, params []string, approve bool) {
	if !b.IsAdmin(int64(m.Sender.ID)) {
		_, _ = b.Bot.Reply(m, "Admins only.", tb.Silent)
		return
	}
	if len(params) < 1 {
		_, _ = b.Bot.Reply(m, "Usage: /approve <chat:user>", tb.Silent)
		return
	}
	key, err := model.ParseRecordKey(params[0])
	if err != nil {
		_, _ = b.Bot.Reply(m, err.Error(), tb.Silent)
		return
	}
	if approve {
		err = b.Engine.Approve(key, int64(m.Sender.ID))
	} else {
		err = b.Engine.Decline(key, int64(m.Sender.ID))
	}
	if err != nil {
		_, _ = b.Bot.Reply(m, err.Error(), tb.Silent)
		return
	}
	_, _ = b.Bot.Reply(m, "Done.", tb.Silent)
}

func Approve(b *bot.Bot, m *tb.Message, params []string) {
	decide(b, m, params, true)
}

func Decline(b *bot.Bot, m *tb.Message, params []string) {
	decide(b, m, params, false)
}
