package service

import (
	"context"

	"github.com/rias-glitch/casino-backend/internal/logger"
)

// События, доставляемые участникам спора.
const (
	EventDisputeCreated   = "dispute_created"
	EventDisputeAccepted  = "dispute_accepted"
	EventDisputeRejected  = "dispute_rejected"
	EventDisputeCancelled = "dispute_cancelled"
	EventOpponentJoined   = "opponent_joined"
	EventOpponentReady    = "opponent_ready"
	EventDisputeResolved  = "dispute_resolved"
	EventVotingStarted    = "voting_started"
	EventVoteAdded        = "vote_added"
)

// Notifier доставляет событие конкретному пользователю. Движок споров не
// знает о транспорте: реализации — Telegram-бот и WebSocket-хаб.
type Notifier interface {
	Notify(ctx context.Context, userID int64, event string, payload interface{}) error
}

// MultiNotifier рассылает событие во все каналы. Доставка best-effort:
// ошибка одного канала не мешает остальным и не прерывает вызывающего.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier создаёт объединённый notifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) Notify(ctx context.Context, userID int64, event string, payload interface{}) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, userID, event, payload); err != nil && logger.Log != nil {
			logger.Log.WithError(err).WithField("user_id", userID).
				Warnf("notifier: не удалось доставить событие %s", event)
		}
	}
	return nil
}
