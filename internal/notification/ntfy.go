package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NtfySender posts plain-text notifications to an ntfy-style topic. The title,
// priority and tags travel as headers.
type NtfySender struct {
	url    string
	token  string
	client *http.Client
}

// NewNtfySender creates a sender for baseURL/topic.
func NewNtfySender(baseURL, topic, token string, timeout time.Duration) *NtfySender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NtfySender{
		url:    strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(topic, "/"),
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// Name labels the ntfy channel in metrics.
func (s *NtfySender) Name() string { return "ntfy" }

// Send posts msg.Body to the topic.
func (s *NtfySender) Send(ctx context.Context, msg Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(msg.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", msg.Title)
	if msg.Priority != "" {
		req.Header.Set("Priority", msg.Priority)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy: unexpected status %d", resp.StatusCode)
	}
	return nil
}
