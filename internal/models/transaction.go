package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы транзакций
const (
	TransactionTypeDeposit     = "deposit"
	TransactionTypeWithdrawal  = "withdrawal"
	TransactionTypeBet         = "bet"
	TransactionTypeWin         = "win"
	TransactionTypeRefund      = "refund"
	TransactionTypeAdminAdjust = "admin_adjust"
)

// Игры-источники транзакций
const (
	GameSlots    = "slots"
	GameRoulette = "roulette"
	GameCoinflip = "coinflip"
	GameMiner    = "miner"
	GameCrush    = "crush"
	GameGuess    = "guess"
	GameDispute  = "dispute"
)

// Transaction — запись журнала изменений баланса. Журнал только пополняется:
// записи никогда не обновляются и не удаляются. Каждая запись создаётся
// в той же транзакции БД, что и само изменение баланса.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	DisputeID   *uuid.UUID `db:"dispute_id" json:"dispute_id,omitempty"`
	Game        *string    `db:"game" json:"game,omitempty"`
	Type        string     `db:"type" json:"type"`
	Amount      int64      `db:"amount" json:"amount"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
