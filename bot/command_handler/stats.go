package command_handler

import (
	"fmt"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/joinguard/joinguard/bot"
	"github.com/joinguard/joinguard/model"
	"github.com/joinguard/joinguard/service"
)

func init() {
	bot.RegisterCommands("stats", Stats)
}

func Stats(b *bot.Bot, m *tb.Message, params []string) {
	if !b.IsAdmin(int64(m.Sender.ID)) {
		_, _ = b.Bot.Reply(m, "Admins only.", tb.Silent)
		return
	}
	report, err := service.BuildStats(b.Store, 24*time.Hour, 5)
	if err != nil {
		_, _ = b.Bot.Reply(m, err.Error(), tb.Silent)
		return
	}
	lines := []string{
		"Joinguard stats (24h)",
		fmt.Sprintf("Total joins: %d", report.Total),
		fmt.Sprintf("- awaiting answer: %d", report.ByState[model.StateAwaitingAnswer]),
		fmt.Sprintf("- verified: %d", report.ByState[model.StateVerified]),
		fmt.Sprintf("- failed: %d", report.ByState[model.StateFailed]),
		fmt.Sprintf("- expired: %d", report.ByState[model.StateExpired]),
	}
	if len(report.RecentDecisions) > 0 {
		lines = append(lines, "", "Recent decisions:")
		for _, d := range report.RecentDecisions {
			lines = append(lines, fmt.Sprintf("%v %v user=%v risk=%d at=%v",
				d.Key, d.State, d.User, d.RiskScore, d.ResolvedAt.UTC().Format("2006-01-02 15:04 UTC")))
		}
	}
	_, _ = b.Bot.Reply(m, strings.Join(lines, "\n"), tb.Silent)
}
