package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// insertLedgerEntry добавляет запись в журнал транзакций внутри уже открытой
// транзакции БД. Баланс никогда не меняется без записи в журнале, поэтому
// вставка всегда выполняется тем же tx, что и изменение баланса.
func insertLedgerEntry(ctx context.Context, tx *sqlx.Tx, userID int64, disputeID *uuid.UUID, game *string, txType string, amount int64, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, dispute_id, game, type, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, disputeID, game, txType, amount, description)
	return err
}

// strPtr возвращает указатель на строку, удобно для nullable колонок.
func strPtr(s string) *string {
	return &s
}
