package ws

import (
	"context"
)

// Notifier доставляет события споров через WebSocket-хаб.
type Notifier struct {
	hub *Hub
}

// NewNotifier создаёт WebSocket-доставку событий.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Notify(_ context.Context, userID int64, event string, payload interface{}) error {
	return n.hub.BroadcastToUser(userID, event, payload)
}
