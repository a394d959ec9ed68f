package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
)

// Webhook posts the notification itself as JSON. With a secret the body is
// signed in the X-Signature-256 header.
type Webhook struct {
	poster
	secret string
}

func NewWebhook(url, secret string) *Webhook {
	return &Webhook{poster: newPoster("webhook", url), secret: secret}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	header := http.Header{}
	header.Set("User-Agent", "affiliana/1.0")
	if w.secret != "" {
		header.Set("X-Signature-256", "sha256="+Sign(w.secret, body))
	}
	return w.postBody(ctx, body, header)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
