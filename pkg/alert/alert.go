// Package alert announces newly qualified candidate niches.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Candidate is a niche summary carried by a notification.
type Candidate struct {
	Niche          string   `json:"niche"`
	CommissionRate *float64 `json:"amazon_commission_rate,omitempty"`
	Keywords       int      `json:"keywords"`
	TopVolume      int      `json:"top_volume"`
}

// Label renders the candidate for chat messages.
func (c Candidate) Label() string {
	s := fmt.Sprintf("%s (volume %d, %d keywords", c.Niche, c.TopVolume, c.Keywords)
	if c.CommissionRate != nil {
		s += ", commission " + strconv.FormatFloat(*c.CommissionRate, 'f', -1, 64) + "%"
	}
	return s + ")"
}

// Notification is the data sent to alert destinations.
type Notification struct {
	RunID      string      `json:"run_id"`
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	Candidates []Candidate `json:"candidates"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// maxListed caps the candidates rendered in chat messages.
const maxListed = 10

func listed(n *Notification) []Candidate {
	if len(n.Candidates) > maxListed {
		return n.Candidates[:maxListed]
	}
	return n.Candidates
}

// poster delivers JSON payloads to one endpoint.
type poster struct {
	client *http.Client
	dest   string
	url    string
}

func newPoster(dest, url string) poster {
	return poster{client: &http.Client{Timeout: 10 * time.Second}, dest: dest, url: url}
}

func (p poster) post(ctx context.Context, payload any, header http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", p.dest, err)
	}
	return p.postBody(ctx, body, header)
}

func (p poster) postBody(ctx context.Context, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.dest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", p.dest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", p.dest, resp.StatusCode)
	}
	return nil
}
