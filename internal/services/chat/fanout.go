package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// envelope is the cross-instance wire form of an event.
type envelope struct {
	Origin string `json:"origin"`
	UserID int64  `json:"user_id"`
	Event  Event  `json:"event"`
}

func (m *Manager) publish(ctx context.Context, userID int64, ev Event) error {
	payload, err := json.Marshal(envelope{Origin: m.instanceID, UserID: userID, Event: ev})
	if err != nil {
		return fmt.Errorf("marshal chat envelope: %w", err)
	}
	return m.bus.Publish(ctx, payload)
}

// Start subscribes to events published by other instances. It returns once
// the subscription is live; delivery stops when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	if m.bus == nil {
		return nil
	}
	return m.bus.Subscribe(ctx, m.handleRemote)
}

func (m *Manager) handleRemote(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		m.log.Warn("drop malformed chat envelope", zap.Error(err))
		return
	}
	if env.Origin == m.instanceID || env.UserID <= 0 {
		return
	}

	s, ok := m.hub.get(env.UserID)
	if !ok {
		return
	}
	if s.push(env.Event) {
		m.observeDelivery(deliveryRemote)
	}
}
