// Package action applies real-world state changes through one or more
// bot-gateway sessions.
package action

import (
	"context"
	"fmt"
	"log"
)

// Backend is a single session capable of muting a chat group and posting
// messages into it.
type Backend interface {
	Name() string
	SetMuted(ctx context.Context, entityID string, muted bool) error
	SendMessage(ctx context.Context, entityID string, text string) error
}

// Multi fans an action over an ordered list of backends: the first
// success wins, and when every backend fails the last error is surfaced.
type Multi struct {
	backends []Backend
}

// NewMulti creates a Multi over the given backends, in attempt order.
func NewMulti(backends ...Backend) *Multi {
	return &Multi{backends: backends}
}

// Name implements Backend.
func (m *Multi) Name() string {
	return "multi"
}

// SetMuted implements Backend.
func (m *Multi) SetMuted(ctx context.Context, entityID string, muted bool) error {
	return m.attempt(ctx, "set_muted", entityID, func(ctx context.Context, b Backend) error {
		return b.SetMuted(ctx, entityID, muted)
	})
}

// SendMessage implements Backend.
func (m *Multi) SendMessage(ctx context.Context, entityID string, text string) error {
	return m.attempt(ctx, "send_message", entityID, func(ctx context.Context, b Backend) error {
		return b.SendMessage(ctx, entityID, text)
	})
}

func (m *Multi) attempt(ctx context.Context, op, entityID string, call func(context.Context, Backend) error) error {
	if len(m.backends) == 0 {
		return fmt.Errorf("%s for entity %s: no action backends configured", op, entityID)
	}

	var lastErr error
	for _, b := range m.backends {
		err := call(ctx, b)
		if err == nil {
			return nil
		}
		log.Printf("backend %s: %s for entity %s failed: %v", b.Name(), op, entityID, err)
		lastErr = err
	}
	return fmt.Errorf("%s for entity %s failed on all %d backends: %w", op, entityID, len(m.backends), lastErr)
}
