package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"home-sensor-backend/internal/model"
)

// PushClient defines the interface for sending a web push notification.
type PushClient interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// webPushClient is the real PushClient backed by the webpush library.
type webPushClient struct{}

func (webPushClient) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the subset of the store the web push sender needs.
type SubscriptionStore interface {
	SubscriptionsForRoom(ctx context.Context, roomID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WebPushSender delivers messages to every browser subscribed to the alerting room.
// Subscriptions the push service reports as gone are deleted.
type WebPushSender struct {
	store   SubscriptionStore
	options *webpush.Options
	client  PushClient
}

// NewWebPushSender creates a sender using the VAPID options.
func NewWebPushSender(s SubscriptionStore, options *webpush.Options) *WebPushSender {
	return &WebPushSender{store: s, options: options, client: webPushClient{}}
}

// Name labels the browser push channel in metrics.
func (s *WebPushSender) Name() string { return "webpush" }

// Send pushes msg to the room's subscribers. It fails only when the subscriptions cannot
// be loaded or every delivery failed.
func (s *WebPushSender) Send(ctx context.Context, msg Message) error {
	subs, err := s.store.SubscriptionsForRoom(ctx, msg.RoomID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	slog.Debug("sending web push", "room", msg.RoomID, "subscriptions", len(subs))
	var failed int
	for _, sub := range subs {
		if err := s.sendOne(ctx, sub, payload); err != nil {
			slog.Warn("web push delivery failed", "endpoint", sub.Endpoint, "err", err)
			failed++
		}
	}
	if failed == len(subs) {
		return fmt.Errorf("webpush: all %d deliveries failed", failed)
	}
	return nil
}

func (s *WebPushSender) sendOne(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := s.client.Send(payload, wpSub, s.options)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		slog.Info("push subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := s.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			slog.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "err", err)
		}
		return nil
	case resp.StatusCode >= 300:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
