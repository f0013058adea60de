package render

import (
	"fmt"

	"carrier/internal/event"
	"carrier/pkg/logx"
)

// Slack incoming-webhook payload. The field set is a compatibility surface;
// markup is mrkdwn (bold keys in the pretext, "<url|label>" links).
const (
	slackColorCritical = "danger"
	slackColorWarning  = "warning"
	slackColorOK       = "good"

	slackPretextFormat = "*%s*: %s "
)

type slackPayload struct {
	Username    string            `json:"username"`
	Channel     string            `json:"channel"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Pretext  string   `json:"pretext"`
	Color    string   `json:"color"`
	Text     string   `json:"text"`
	Footer   string   `json:"footer"`
	MrkdwnIn []string `json:"mrkdwn_in"`
}

type slackRenderer struct {
	cfg    Config
	fields []string
	x      event.Extractor
}

func newSlack(cfg Config, log logx.Logger) Renderer {
	return &slackRenderer{cfg: cfg, fields: fieldList(cfg), x: event.NewExtractor(log)}
}

func (r *slackRenderer) Render(ev *event.Event) (string, error) {
	return marshal(slackPayload{
		Username: senderName,
		Channel:  r.cfg.Channel,
		Attachments: []slackAttachment{{
			Pretext:  pretext(r.x, ev, r.fields, slackPretextFormat),
			Color:    r.color(ev),
			Text:     fmt.Sprintf("%s <%s|View>", messageText(ev, r.cfg.TextLimit), eventLink(r.cfg, ev)),
			Footer:   timestamp(ev),
			MrkdwnIn: []string{"text", "pretext"},
		}},
	})
}

func (r *slackRenderer) color(ev *event.Event) string {
	switch classify(r.x.Level(ev)) {
	case sevCritical:
		return slackColorCritical
	case sevWarning:
		return slackColorWarning
	}
	return slackColorOK
}
