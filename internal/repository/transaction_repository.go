package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rias-glitch/casino-backend/internal/models"
)

// TransactionRepository — читающая сторона журнала транзакций. Вставки
// выполняются только внутри транзакций БД соседних репозиториев, чтобы
// запись журнала и изменение баланса были неразделимы.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository создаёт экземпляр репозитория.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByUser возвращает историю транзакций игрока.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, dispute_id, game, type, amount, description, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: list by user %w", err)
	}
	return transactions, nil
}

// ListByDispute возвращает все записи журнала, привязанные к спору.
func (r *TransactionRepository) ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, dispute_id, game, type, amount, description, created_at
		FROM transactions WHERE dispute_id = $1 ORDER BY created_at
	`, disputeID)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: list by dispute %w", err)
	}
	return transactions, nil
}

// SumByDispute возвращает сумму всех движений по спору: после корректного
// расчёта она равна комиссии со знаком минус (банк минус выплата).
func (r *TransactionRepository) SumByDispute(ctx context.Context, disputeID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE dispute_id = $1
	`, disputeID)
	if err != nil {
		return 0, fmt.Errorf("transaction repository: sum by dispute %w", err)
	}
	return sum, nil
}
