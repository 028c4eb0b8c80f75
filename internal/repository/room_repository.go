package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rias-glitch/casino-backend/internal/models"
)

// ErrRoomNotFound возвращается, когда комната не найдена или истекла.
var ErrRoomNotFound = errors.New("room not found")

// RoomRepository хранит эфемерные комнаты в Redis. Комната — это JSON под
// ключом room:<disputeID> с TTL; после расчёта спора или по истечении TTL
// она исчезает сама, персистентность не нужна.
type RoomRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoomRepository создаёт репозиторий комнат.
func NewRoomRepository(client *redis.Client, ttl time.Duration) *RoomRepository {
	return &RoomRepository{client: client, ttl: ttl}
}

func roomKey(disputeID uuid.UUID) string {
	return fmt.Sprintf("room:%s", disputeID)
}

// Get возвращает комнату по ID спора.
func (r *RoomRepository) Get(ctx context.Context, disputeID uuid.UUID) (*models.Room, error) {
	raw, err := r.client.Get(ctx, roomKey(disputeID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("room repository: get %w", err)
	}

	var room models.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return nil, fmt.Errorf("room repository: unmarshal %w", err)
	}
	return &room, nil
}

// Save сохраняет комнату, продлевая TTL.
func (r *RoomRepository) Save(ctx context.Context, room *models.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("room repository: marshal %w", err)
	}
	if err := r.client.Set(ctx, roomKey(room.DisputeID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("room repository: save %w", err)
	}
	return nil
}

// Delete удаляет комнату.
func (r *RoomRepository) Delete(ctx context.Context, disputeID uuid.UUID) error {
	if err := r.client.Del(ctx, roomKey(disputeID)).Err(); err != nil {
		return fmt.Errorf("room repository: delete %w", err)
	}
	return nil
}
