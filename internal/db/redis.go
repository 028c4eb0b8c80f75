package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedis создаёт клиент Redis и проверяет соединение.
// Redis хранит только эфемерное состояние комнат, персистентность не нужна.
func NewRedis(ctx context.Context, addr, password string, dbNum int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbNum,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: не удалось подключиться: %w", err)
	}

	return client, nil
}
