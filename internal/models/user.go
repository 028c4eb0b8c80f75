package models

import (
	"time"
)

// User описывает игрока казино. Первичный ключ — Telegram ID.
type User struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	FirstName   string    `db:"first_name" json:"first_name"`
	ChatID      int64     `db:"chat_id" json:"chat_id"`
	Balance     int64     `db:"balance" json:"balance"`
	WinRate     float64   `db:"win_rate" json:"win_rate"`
	IsBanned    bool      `db:"is_banned" json:"is_banned"`
	GamesPlayed int       `db:"games_played" json:"games_played"`
	GamesWon    int       `db:"games_won" json:"games_won"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName возвращает имя для показа в сообщениях и списках.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}
