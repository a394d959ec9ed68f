package alert

import (
	"context"
	"strings"
)

// Slack posts Block Kit messages to an incoming webhook.
type Slack struct {
	poster
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{newPoster("slack webhook", webhookURL)}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	return s.post(ctx, slackPayload(n), nil)
}

func slackPayload(n *Notification) map[string]any {
	text := func(kind, body string) map[string]any {
		return map[string]any{"type": kind, "text": body}
	}

	blocks := []map[string]any{
		{"type": "header", "text": text("plain_text", n.Title)},
		{"type": "section", "text": text("mrkdwn", n.Body)},
	}
	if cands := listed(n); len(cands) > 0 {
		var b strings.Builder
		for _, c := range cands {
			b.WriteString("• " + c.Label() + "\n")
		}
		blocks = append(blocks, map[string]any{"type": "section", "text": text("mrkdwn", b.String())})
	}
	blocks = append(blocks, map[string]any{
		"type":     "context",
		"elements": []map[string]any{text("mrkdwn", "run "+n.RunID)},
	})
	return map[string]any{"blocks": blocks}
}
