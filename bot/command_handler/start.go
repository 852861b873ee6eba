package command_handler

import (
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/joinguard/joinguard/bot"
)

func init() {
	bot.RegisterCommands("start", Start)
}

func Start(b *bot.Bot, m *tb.Message, params []string) {
	if b.IsAdmin(int64(m.Sender.ID)) {
		_, _ = b.Bot.Reply(m, "Admin commands: /stats, /pending, /approve <chat:user>, /decline <chat:user>.", tb.Silent)
		return
	}
	_, _ = b.Bot.Reply(m, "I guard the group against automated accounts. Solve the captcha posted in the group after you join.", tb.Silent)
}
