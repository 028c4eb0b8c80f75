package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/repository/common"
)

// UserRepository отвечает за работу с таблицей users и связанными балансами.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate возвращает игрока, создавая запись при первом обращении.
// Username и имя обновляются при каждом входе — в Telegram их можно менять.
func (r *UserRepository) GetOrCreate(ctx context.Context, id int64, username, firstName string, chatID int64) (*models.User, error) {
	var user models.User
	query := `
		INSERT INTO users (id, username, first_name, chat_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username, first_name = EXCLUDED.first_name,
		    chat_id = EXCLUDED.chat_id, updated_at = NOW()
		RETURNING id, username, first_name, chat_id, balance, win_rate, is_banned,
		          games_played, games_won, created_at, updated_at
	`
	if err := r.db.GetContext(ctx, &user, query, id, username, firstName, chatID); err != nil {
		return nil, fmt.Errorf("user repository: get or create %w", err)
	}
	return &user, nil
}

// GetByID возвращает игрока по Telegram ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
}

// GetByUsername возвращает игрока по username (для админских команд).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return common.GetByField[models.User](ctx, r.db, "users", "username", username, ErrUserNotFound)
}

// Deposit пополняет баланс игрока и пишет запись в журнал.
func (r *UserRepository) Deposit(ctx context.Context, userID int64, amount int64, description string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1
		`, userID, amount)
		if err != nil {
			return fmt.Errorf("user repository: deposit update balance %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrUserNotFound
		}

		err = tx.GetContext(ctx, &transaction, `
			INSERT INTO transactions (user_id, type, amount, description)
			VALUES ($1, $2, $3, $4)
			RETURNING id, user_id, dispute_id, game, type, amount, description, created_at
		`, userID, models.TransactionTypeDeposit, amount, description)
		if err != nil {
			return fmt.Errorf("user repository: deposit create transaction %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// AdjustBalance изменяет баланс по команде администратора. Отрицательная
// дельта не может увести баланс ниже нуля.
func (r *UserRepository) AdjustBalance(ctx context.Context, userID int64, delta int64, description string) (*models.User, error) {
	var user models.User
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("user repository: adjust lock user %w", err)
		}

		if user.Balance+delta < 0 {
			return &InsufficientFundsError{UserID: userID}
		}

		err = tx.GetContext(ctx, &user, `
			UPDATE users SET balance = balance + $2, updated_at = NOW()
			WHERE id = $1
			RETURNING id, username, first_name, chat_id, balance, win_rate, is_banned,
			          games_played, games_won, created_at, updated_at
		`, userID, delta)
		if err != nil {
			return fmt.Errorf("user repository: adjust update balance %w", err)
		}

		if err := insertLedgerEntry(ctx, tx, userID, nil, nil, models.TransactionTypeAdminAdjust, delta, description); err != nil {
			return fmt.Errorf("user repository: adjust create transaction %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetWinRate устанавливает множитель винрейта игрока (ручное управление).
func (r *UserRepository) SetWinRate(ctx context.Context, userID int64, winRate float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET win_rate = $2, updated_at = NOW() WHERE id = $1
	`, userID, winRate)
	if err != nil {
		return fmt.Errorf("user repository: set win rate %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetBanned включает или снимает блокировку игрока.
func (r *UserRepository) SetBanned(ctx context.Context, userID int64, banned bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_banned = $2, updated_at = NOW() WHERE id = $1
	`, userID, banned)
	if err != nil {
		return fmt.Errorf("user repository: set banned %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// PlaceBet списывает ставку по игре и пишет 'bet' в журнал.
// Проверка баланса и списание идут под FOR UPDATE в одной транзакции.
func (r *UserRepository) PlaceBet(ctx context.Context, userID int64, game string, amount int64) (*models.User, error) {
	var user models.User
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("user repository: bet lock user %w", err)
		}

		if user.Balance < amount {
			return &InsufficientFundsError{UserID: userID}
		}

		err = tx.GetContext(ctx, &user, `
			UPDATE users SET balance = balance - $2, games_played = games_played + 1, updated_at = NOW()
			WHERE id = $1
			RETURNING id, username, first_name, chat_id, balance, win_rate, is_banned,
			          games_played, games_won, created_at, updated_at
		`, userID, amount)
		if err != nil {
			return fmt.Errorf("user repository: bet update balance %w", err)
		}

		if err := insertLedgerEntry(ctx, tx, userID, nil, &game, models.TransactionTypeBet, -amount, "Ставка в игре "+game); err != nil {
			return fmt.Errorf("user repository: bet create transaction %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreditWin зачисляет выигрыш по игре и пишет 'win' в журнал.
func (r *UserRepository) CreditWin(ctx context.Context, userID int64, game string, amount int64) (*models.User, error) {
	var user models.User
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &user, `
			UPDATE users SET balance = balance + $2, games_won = games_won + 1, updated_at = NOW()
			WHERE id = $1
			RETURNING id, username, first_name, chat_id, balance, win_rate, is_banned,
			          games_played, games_won, created_at, updated_at
		`, userID, amount)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("user repository: win update balance %w", err)
		}

		if err := insertLedgerEntry(ctx, tx, userID, nil, &game, models.TransactionTypeWin, amount, "Выигрыш в игре "+game); err != nil {
			return fmt.Errorf("user repository: win create transaction %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Leaderboard возвращает игроков с наибольшим балансом.
func (r *UserRepository) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users WHERE is_banned = FALSE ORDER BY balance DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("user repository: leaderboard %w", err)
	}
	return users, nil
}

// CountUsers возвращает общее количество игроков (для админских отчётов).
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("user repository: count %w", err)
	}
	return count, nil
}

// TotalBalance возвращает суммарный баланс всех игроков (для админских отчётов).
func (r *UserRepository) TotalBalance(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(balance), 0) FROM users`); err != nil {
		return 0, fmt.Errorf("user repository: total balance %w", err)
	}
	return total, nil
}
