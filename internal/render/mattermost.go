package render

import (
	"fmt"

	"carrier/internal/event"
	"carrier/pkg/logx"
)

// Mattermost incoming-webhook payload. Markup is markdown: bracketed keys in
// the pretext line, "[label](url)" links.
const (
	mattermostColorCritical = "#D40E0D"
	mattermostColorWarning  = "#EBB424"
	mattermostColorOK       = "#49C39E"

	mattermostPretextFormat = "[%s]: %s "
)

type mattermostPayload struct {
	Username    string                 `json:"username"`
	Channel     string                 `json:"channel"`
	Attachments []mattermostAttachment `json:"attachments"`
}

type mattermostAttachment struct {
	AuthorName string `json:"author_name"`
	Title      string `json:"title"`
	Color      string `json:"color"`
	Text       string `json:"text"`
}

type mattermostRenderer struct {
	cfg    Config
	fields []string
	x      event.Extractor
}

func newMattermost(cfg Config, log logx.Logger) Renderer {
	return &mattermostRenderer{cfg: cfg, fields: fieldList(cfg), x: event.NewExtractor(log)}
}

func (r *mattermostRenderer) Render(ev *event.Event) (string, error) {
	return marshal(mattermostPayload{
		Username: senderName,
		Channel:  r.cfg.Channel,
		Attachments: []mattermostAttachment{{
			AuthorName: pretext(r.x, ev, r.fields, mattermostPretextFormat),
			Title:      timestamp(ev),
			Color:      r.color(ev),
			Text:       fmt.Sprintf("%s [View](%s)", messageText(ev, r.cfg.TextLimit), eventLink(r.cfg, ev)),
		}},
	})
}

func (r *mattermostRenderer) color(ev *event.Event) string {
	switch classify(r.x.Level(ev)) {
	case sevCritical:
		return mattermostColorCritical
	case sevWarning:
		return mattermostColorWarning
	}
	return mattermostColorOK
}
