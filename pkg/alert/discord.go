package alert

import (
	"context"
	"strings"
	"time"
)

// embedColor is the sidebar color of candidate embeds.
const embedColor = 0x2E8B57

// Discord posts embeds to a channel webhook.
type Discord struct {
	poster
	now func() time.Time
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{poster: newPoster("discord webhook", webhookURL), now: time.Now}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	return d.post(ctx, discordPayload(n, d.now()), nil)
}

func discordPayload(n *Notification, at time.Time) map[string]any {
	lines := []string{n.Body, ""}
	for _, c := range listed(n) {
		lines = append(lines, "• "+c.Label())
	}
	return map[string]any{
		"embeds": []map[string]any{{
			"title":       n.Title,
			"description": strings.Join(lines, "\n"),
			"color":       embedColor,
			"footer":      map[string]any{"text": "run " + n.RunID},
			"timestamp":   at.UTC().Format(time.RFC3339),
		}},
	}
}
