package bot

import (
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/joinguard/joinguard/common"
	"github.com/joinguard/joinguard/pkg/log"
	"github.com/joinguard/joinguard/service"
)

type Bot struct {
	Bot    *tb.Bot
	Engine *service.Engine
	Store  *service.Store
	ChatID int64

	adminIDs map[int64]struct{}
}

type CommandHandler func(b *Bot, m *tb.Message, params []string)

var GlobalCommandMapper = make(map[string]CommandHandler)

func RegisterCommands(command string, f CommandHandler) {
	GlobalCommandMapper[command] = f
}

func New(token string, chatID int64, adminIDs []int64, poller *tb.LongPoller) (*Bot, error) {
	if poller == nil {
		poller = &tb.LongPoller{Timeout: 15 * time.Second}
	}
	b, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: poller,
	})
	if err != nil {
		return nil, err
	}
	bot := &Bot{
		Bot:      b,
		ChatID:   chatID,
		adminIDs: make(map[int64]struct{}),
	}
	for _, id := range adminIDs {
		bot.adminIDs[id] = struct{}{}
	}
	return bot, nil
}

func (b *Bot) IsAdmin(userID int64) bool {
	_, ok := b.adminIDs[userID]
	return ok
}

func (b *Bot) AdminIDs() []int64 {
	ids := make([]int64, 0, len(b.adminIDs))
	for id := range b.adminIDs {
		ids = append(ids, id)
	}
	return ids
}

// Start registers the update handlers and blocks on the long poller.
// Engine and Store must be attached before calling it.
func (b *Bot) Start() {
	b.Bot.Handle(tb.OnUserJoined, b.handleUserJoined)
	b.Bot.Handle(tb.OnUserLeft, b.handleUserLeft)
	b.Bot.Handle(tb.OnCallback, b.handleCallback)
	b.Bot.Handle(tb.OnText, func(m *tb.Message) {
		if !m.Private() || !strings.HasPrefix(m.Text, "/") || len(m.Text) <= 1 {
			return
		}
		fields := strings.Fields(strings.TrimPrefix(m.Text, "/"))
		if handler, ok := GlobalCommandMapper[fields[0]]; ok {
			handler(b, m, fields[1:])
		}
	})
	b.Bot.Start()
}

func (b *Bot) handleUserJoined(m *tb.Message) {
	if m.Chat == nil || m.Chat.ID != b.ChatID {
		return
	}
	users := m.UsersJoined
	if len(users) == 0 && m.UserJoined != nil {
		users = []tb.User{*m.UserJoined}
	}
	for i := range users {
		u := &users[i]
		if b.Bot.Me != nil && u.ID == b.Bot.Me.ID {
			continue
		}
		// Telegram does not report account creation time; estimate it from
		// the user id so the engine can apply the age gate.
		created := common.EstimateCreatedAt(int64(u.ID))
		ev := service.JoinEvent{
			ChatID:           m.Chat.ID,
			UserID:           int64(u.ID),
			Username:         u.Username,
			FirstName:        u.FirstName,
			LastName:         u.LastName,
			IsBot:            u.IsBot,
			AccountCreatedAt: &created,
		}
		if err := b.Engine.OnJoin(ev); err != nil {
			log.Error("handle join of %v: %v", u.ID, err)
		}
	}
}

func (b *Bot) handleUserLeft(m *tb.Message) {
	if m.Chat == nil || m.Chat.ID != b.ChatID || m.UserLeft == nil {
		return
	}
	ev := service.LeaveEvent{ChatID: m.Chat.ID, UserID: int64(m.UserLeft.ID)}
	if err := b.Engine.OnLeave(ev); err != nil {
		log.Error("handle leave of %v: %v", m.UserLeft.ID, err)
	}
}

// NotifyAdmins sends text to every configured admin's private chat.
func (b *Bot) NotifyAdmins(text string) {
	for id := range b.adminIDs {
		if _, err := b.Bot.Send(&tb.User{ID: id}, text, tb.Silent, tb.NoPreview); err != nil {
			log.Warn("notify admin %v: %v", id, err)
		}
	}
}
