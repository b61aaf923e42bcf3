package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"mute-schedule-backend/internal/calendar"
	"mute-schedule-backend/internal/heartbeat"
	"mute-schedule-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	driver   *heartbeat.Driver
	calendar *calendar.Resolver
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, driver *heartbeat.Driver, cal *calendar.Resolver, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		driver:   driver,
		calendar: cal,
		webpush:  webpushOptions,
	}
}
