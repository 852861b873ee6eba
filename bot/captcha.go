package bot

import (
	"fmt"
	"strconv"
	"strings"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/joinguard/joinguard/model"
	"github.com/joinguard/joinguard/pkg/log"
	"github.com/joinguard/joinguard/service"
)

// PresentChallenge posts the captcha into the guarded chat, mentioning the
// user, with one inline button per answer option.
func (b *Bot) PresentChallenge(rec *model.VerificationRecord, attemptsLeft int, reissued bool) error {
	mention := fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, rec.UserID, rec.FullName())
	var text string
	if reissued {
		text = fmt.Sprintf("%s, wrong answer. Attempts left: %d\nNew captcha:\n<b>%s</b>",
			mention, attemptsLeft, rec.Challenge.Question)
	} else {
		text = fmt.Sprintf("Welcome %s! To get posting rights, solve the captcha:\n<b>%s</b>",
			mention, rec.Challenge.Question)
	}
	_, err := b.Bot.Send(
		&tb.Chat{ID: rec.ChatID},
		text,
		&tb.SendOptions{ParseMode: tb.ModeHTML},
		captchaKeyboard(rec),
	)
	return err
}

func captchaKeyboard(rec *model.VerificationRecord) *tb.ReplyMarkup {
	var row []tb.InlineButton
	var rows [][]tb.InlineButton
	for _, option := range rec.Challenge.Options {
		row = append(row, tb.InlineButton{
			Text: strconv.Itoa(option),
			Data: fmt.Sprintf("cap:%d:%d:%d", rec.ChatID, rec.UserID, option),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return &tb.ReplyMarkup{InlineKeyboard: rows}
}

func (b *Bot) handleCallback(c *tb.Callback) {
	data := strings.TrimPrefix(strings.TrimSpace(c.Data), "\f")
	switch {
	case strings.HasPrefix(data, "cap:"):
		b.handleCaptchaCallback(c, data)
	case strings.HasPrefix(data, "adm:"):
		b.handleAdminCallback(c, data)
	default:
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Unknown action."})
	}
}

func parseCaptchaCallback(data string) (key model.RecordKey, answer string, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != "cap" {
		return key, "", false
	}
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return key, "", false
	}
	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return key, "", false
	}
	return model.RecordKey{ChatID: chatID, UserID: userID}, parts[3], true
}

func (b *Bot) handleCaptchaCallback(c *tb.Callback, data string) {
	key, answer, ok := parseCaptchaCallback(data)
	if !ok {
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Invalid captcha.", ShowAlert: true})
		return
	}
	if c.Sender == nil || int64(c.Sender.ID) != key.UserID {
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "This captcha is not yours.", ShowAlert: true})
		return
	}
	if err := b.Engine.OnAnswer(service.AnswerEvent{ChatID: key.ChatID, UserID: key.UserID, Answer: answer}); err != nil {
		log.Error("handle answer of %v: %v", key, err)
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Something went wrong, try again.", ShowAlert: true})
		return
	}
	rec, err := b.Store.Get(key)
	if err != nil {
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Answer received."})
		return
	}
	switch rec.State {
	case model.StateVerified:
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Captcha passed, welcome!"})
		if c.Message != nil {
			_, _ = b.Bot.Edit(c.Message, fmt.Sprintf("%s passed the captcha.", rec.FullName()))
		}
	case model.StateFailed:
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Attempt limit reached.", ShowAlert: true})
		if c.Message != nil {
			_, _ = b.Bot.Edit(c.Message, fmt.Sprintf("%s failed the captcha.", rec.FullName()))
		}
	default:
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Wrong, try again."})
		if c.Message != nil {
			_ = b.Bot.Delete(c.Message)
		}
	}
}

func parseAdminCallback(data string) (action string, key model.RecordKey, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != "adm" {
		return "", key, false
	}
	if parts[1] != "approve" && parts[1] != "decline" {
		return "", key, false
	}
	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", key, false
	}
	userID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return "", key, false
	}
	return parts[1], model.RecordKey{ChatID: chatID, UserID: userID}, true
}

func (b *Bot) handleAdminCallback(c *tb.Callback, data string) {
	if c.Sender == nil || !b.IsAdmin(int64(c.Sender.ID)) {
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Admins only.", ShowAlert: true})
		return
	}
	action, key, ok := parseAdminCallback(data)
	if !ok {
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: "Invalid action.", ShowAlert: true})
		return
	}
	adminID := int64(c.Sender.ID)
	var err error
	if action == "approve" {
		err = b.Engine.Approve(key, adminID)
	} else {
		err = b.Engine.Decline(key, adminID)
	}
	if err != nil {
		_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: err.Error(), ShowAlert: true})
		return
	}
	_ = b.Bot.Respond(c, &tb.CallbackResponse{Text: fmt.Sprintf("Request %vd.", action)})
	if c.Message != nil {
		_, _ = b.Bot.Edit(c.Message, fmt.Sprintf("Request for %v %vd by admin %v.", key, action, adminID))
	}
}
