package notification

import (
	"context"
	"errors"

	"home-sensor-backend/internal/metrics"
)

// MultiSender fans a message out to several channels. A failing channel does not stop
// the others.
type MultiSender struct {
	senders []Sender
}

// NewMultiSender constructs a MultiSender, skipping nil senders.
func NewMultiSender(senders ...Sender) *MultiSender {
	m := &MultiSender{}
	for _, s := range senders {
		if s != nil {
			m.senders = append(m.senders, s)
		}
	}
	return m
}

// Name labels the combined channel in metrics.
func (m *MultiSender) Name() string { return "multi" }

// Len returns the number of configured channels.
func (m *MultiSender) Len() int { return len(m.senders) }

// Send forwards msg to every channel and joins their errors.
func (m *MultiSender) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m.senders {
		if err := s.Send(ctx, msg); err != nil {
			metrics.IncNotification(s.Name(), metrics.NotificationFailed)
			errs = append(errs, err)
			continue
		}
		metrics.IncNotification(s.Name(), metrics.NotificationSent)
	}
	return errors.Join(errs...)
}
