package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"home-sensor-backend/internal/ingest"
	"home-sensor-backend/internal/mailbox"
	"home-sensor-backend/internal/mw"
	"home-sensor-backend/internal/roomstate"
	"home-sensor-backend/internal/sensor"
	"home-sensor-backend/internal/store"
)

// Ingester accepts device readings.
type Ingester interface {
	Ingest(ctx context.Context, source string, r sensor.Reading) (ingest.Result, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	rooms    *roomstate.Store
	mailbox  *mailbox.Mailbox
	ingester Ingester
	webpush  *webpush.Options
	cache    *mw.ResponseCache
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, rooms *roomstate.Store, mb *mailbox.Mailbox, ing Ingester, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		rooms:    rooms,
		mailbox:  mb,
		ingester: ing,
		webpush:  webpushOptions,
		now:      time.Now,
	}
}
