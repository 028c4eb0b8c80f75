package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли участников комнаты
const (
	RoomRoleCreator  = "creator"
	RoomRoleOpponent = "opponent"
)

// Room — эфемерная сессия синхронизации двух клиентов перед броском монеты.
// Хранится в Redis с TTL и ключуется по ID спора; клиенты не связаны друг
// с другом напрямую и координируются только через сервер.
type Room struct {
	DisputeID      uuid.UUID `json:"dispute_id"`
	CreatorJoined  bool      `json:"creator_joined"`
	OpponentJoined bool      `json:"opponent_joined"`
	CreatorReady   bool      `json:"creator_ready"`
	OpponentReady  bool      `json:"opponent_ready"`
	Resolving      bool      `json:"resolving"`
	CreatedAt      time.Time `json:"created_at"`
}

// BothJoined — оба клиента открыли комнату.
func (r *Room) BothJoined() bool {
	return r.CreatorJoined && r.OpponentJoined
}

// BothReady — оба клиента подтвердили готовность.
func (r *Room) BothReady() bool {
	return r.CreatorReady && r.OpponentReady
}
