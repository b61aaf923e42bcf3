package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"mute-schedule-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// job is one applied transition to announce to subscribed operators.
type job struct {
	EntityID string
	Muted    bool
}

// WorkerPool fans applied transitions out to operator push subscriptions.
type WorkerPool struct {
	size    int
	jobs    chan job
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan job, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case j := <-wp.jobs:
			wp.notifySubscribers(ctx, j)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues one applied transition. It satisfies the reconciler's
// Dispatcher interface.
func (wp *WorkerPool) Dispatch(entityID string, muted bool) {
	wp.jobs <- job{EntityID: entityID, Muted: muted}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan job {
	return wp.jobs
}

// notifySubscribers fetches the subscriptions watching an entity and
// sends each one a push message.
func (wp *WorkerPool) notifySubscribers(ctx context.Context, j job) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_entities se ON se.subscription_endpoint = push_subscriptions.endpoint").
		Where("se.entity_id = ?", j.EntityID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for entity %s: %v", j.EntityID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	var message string
	if j.Muted {
		message = fmt.Sprintf("群 %s 已开启禁言", j.EntityID)
	} else {
		message = fmt.Sprintf("群 %s 已解除禁言", j.EntityID)
	}

	log.Printf("Sending %d notifications for entity %s", len(subscriptions), j.EntityID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
