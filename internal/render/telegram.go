package render

import (
	"fmt"

	"carrier/internal/event"
	"carrier/pkg/logx"
)

// Telegram sendMessage payload (webhook URL carries the bot token and
// method). Markup is parse_mode=html; the severity marker is an HTML emoji
// entity so it renders inside the escaped text.
const (
	telegramEmojiCritical = "&#x1F525;"
	telegramEmojiWarning  = "&#x26A0;"
	telegramEmojiOK       = "&#x1F4E2;"

	telegramPretextFormat = "<b>%s</b>: %s "
)

type telegramPayload struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	DisableNotification string `json:"disable_notification"`
	ParseMode           string `json:"parse_mode"`
}

type telegramRenderer struct {
	cfg    Config
	fields []string
	x      event.Extractor
}

func newTelegram(cfg Config, log logx.Logger) Renderer {
	return &telegramRenderer{cfg: cfg, fields: fieldList(cfg), x: event.NewExtractor(log)}
}

func (r *telegramRenderer) Render(ev *event.Event) (string, error) {
	text := fmt.Sprintf("%s[%s] %s <a href='%s'>View</a>\n%s",
		r.emoji(ev),
		timestamp(ev),
		pretext(r.x, ev, r.fields, telegramPretextFormat),
		eventLink(r.cfg, ev),
		messageText(ev, r.cfg.TextLimit),
	)
	return marshal(telegramPayload{
		ChatID:              r.cfg.Channel,
		Text:                text,
		DisableNotification: "false",
		ParseMode:           "html",
	})
}

func (r *telegramRenderer) emoji(ev *event.Event) string {
	switch classify(r.x.Level(ev)) {
	case sevCritical:
		return telegramEmojiCritical
	case sevWarning:
		return telegramEmojiWarning
	}
	return telegramEmojiOK
}
