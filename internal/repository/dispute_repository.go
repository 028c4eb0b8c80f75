package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/repository/common"
)

// ErrNotParticipant возвращается, когда пользователь не является стороной спора.
var ErrNotParticipant = errors.New("user is not a participant of this dispute")

// DisputeRepository отвечает за споры, их голоса и все денежные переходы
// жизненного цикла. Эскроу и расчёт выполняются одной транзакцией БД:
// условное обновление статуса (CAS) + изменения балансов + записи журнала
// либо фиксируются вместе, либо не происходят вовсе.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт экземпляр репозитория.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create сохраняет новый спор в статусе pending. Деньги не двигаются.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (creator_id, creator_name, opponent_id, opponent_name,
		                      question, amount, creator_side, opponent_side, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		d.CreatorID, d.CreatorName, d.OpponentID, d.OpponentName,
		d.Question, d.Amount, d.CreatorSide, d.OpponentSide, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: create %w", err)
	}
	return nil
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

// ListByUser возвращает все споры, в которых пользователь участвует.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE creator_id = $1 OR opponent_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListActiveVotings возвращает споры в статусе voting с неистёкшим дедлайном.
func (r *DisputeRepository) ListActiveVotings(ctx context.Context) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE status = $1 AND voting_deadline > NOW()
		ORDER BY voting_deadline
	`, models.DisputeStatusVoting)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list active votings %w", err)
	}
	return disputes, nil
}

// ListExpiredVotings возвращает споры в статусе voting с истёкшим дедлайном.
// Используется периодической зачисткой: таких споров не должно накапливаться.
func (r *DisputeRepository) ListExpiredVotings(ctx context.Context) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE status = $1 AND voting_deadline <= NOW()
		ORDER BY voting_deadline
	`, models.DisputeStatusVoting)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list expired votings %w", err)
	}
	return disputes, nil
}

// UpdateMessageRef сохраняет привязку к сообщению в чате для правок на месте.
func (r *DisputeRepository) UpdateMessageRef(ctx context.Context, id uuid.UUID, chatID int64, messageID int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET chat_id = $2, message_id = $3 WHERE id = $1
	`, id, chatID, messageID)
	if err != nil {
		return fmt.Errorf("dispute repository: update message ref %w", err)
	}
	return nil
}

// Accept принимает спор: статус pending -> active и эскроу ставок обоих
// участников в одной транзакции. Оба списания и обе записи журнала либо
// фиксируются вместе со сменой статуса, либо транзакция откатывается целиком.
func (r *DisputeRepository) Accept(ctx context.Context, id uuid.UUID, opponent *models.User) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var d models.Dispute
	err = tx.GetContext(ctx, &d, `SELECT * FROM disputes WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: accept lock dispute %w", err)
	}

	if d.Status != models.DisputeStatusPending {
		return nil, ErrInvalidStatus
	}
	if d.CreatorID == opponent.ID {
		return nil, ErrNotParticipant
	}
	if d.OpponentID != nil && *d.OpponentID != opponent.ID {
		return nil, ErrNotParticipant
	}

	// Блокируем обоих игроков в порядке возрастания ID, чтобы два встречных
	// принятия не взаимоблокировались.
	firstID, secondID := d.CreatorID, opponent.ID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}
	balances := make(map[int64]int64, 2)
	for _, userID := range []int64{firstID, secondID} {
		var balance int64
		err = tx.GetContext(ctx, &balance, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("dispute repository: accept lock user %w", err)
		}
		balances[userID] = balance
	}

	// Проверяем обоих: вызывающему сообщается, какой стороне не хватило средств.
	if balances[d.CreatorID] < d.Amount {
		return nil, &InsufficientFundsError{UserID: d.CreatorID}
	}
	if balances[opponent.ID] < d.Amount {
		return nil, &InsufficientFundsError{UserID: opponent.ID}
	}

	err = tx.GetContext(ctx, &d, `
		UPDATE disputes
		SET status = $2, opponent_id = $3, opponent_name = $4
		WHERE id = $1 AND status = $5
		RETURNING *
	`, id, models.DisputeStatusActive, opponent.ID, opponent.DisplayName(), models.DisputeStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidStatus
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: accept update status %w", err)
	}

	for _, userID := range []int64{d.CreatorID, opponent.ID} {
		if _, err = tx.ExecContext(ctx, `
			UPDATE users SET balance = balance - $2, updated_at = NOW() WHERE id = $1
		`, userID, d.Amount); err != nil {
			return nil, fmt.Errorf("dispute repository: accept debit %w", err)
		}
		if err = insertLedgerEntry(ctx, tx, userID, &d.ID, strPtr(models.GameDispute),
			models.TransactionTypeBet, -d.Amount, "Ставка в споре"); err != nil {
			return nil, fmt.Errorf("dispute repository: accept ledger %w", err)
		}
	}

	return &d, tx.Commit()
}

// Settle закрывает спор в пользу победителя: условный переход
// fromStatus -> completed и зачисление выплаты в одной транзакции.
// Если CAS не сработал, спор уже рассчитан другим запросом — возвращается
// ErrAlreadySettled, и вызывающий перечитывает готовый результат.
func (r *DisputeRepository) Settle(ctx context.Context, id uuid.UUID, fromStatus string, result *string, winnerID int64, commission, payout int64) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var d models.Dispute
	err = tx.GetContext(ctx, &d, `
		UPDATE disputes
		SET status = $3, result = $4, winner_id = $5, commission = $6, completed_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING *
	`, id, fromStatus, models.DisputeStatusCompleted, result, winnerID, commission)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadySettled
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: settle update status %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1
	`, winnerID, payout); err != nil {
		return nil, fmt.Errorf("dispute repository: settle credit winner %w", err)
	}
	if err = insertLedgerEntry(ctx, tx, winnerID, &d.ID, strPtr(models.GameDispute),
		models.TransactionTypeWin, payout, "Выигрыш в споре"); err != nil {
		return nil, fmt.Errorf("dispute repository: settle ledger %w", err)
	}

	return &d, tx.Commit()
}

// SettleDraw закрывает спор ничьёй: обе ставки возвращаются полностью,
// комиссия не удерживается. Тот же CAS по статусу, что и в Settle.
func (r *DisputeRepository) SettleDraw(ctx context.Context, id uuid.UUID, fromStatus string) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var d models.Dispute
	err = tx.GetContext(ctx, &d, `
		UPDATE disputes
		SET status = $3, is_draw = TRUE, completed_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING *
	`, id, fromStatus, models.DisputeStatusCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadySettled
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: draw update status %w", err)
	}

	participants := []int64{d.CreatorID}
	if d.OpponentID != nil {
		participants = append(participants, *d.OpponentID)
	}
	for _, userID := range participants {
		if _, err = tx.ExecContext(ctx, `
			UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1
		`, userID, d.Amount); err != nil {
			return nil, fmt.Errorf("dispute repository: draw refund %w", err)
		}
		if err = insertLedgerEntry(ctx, tx, userID, &d.ID, strPtr(models.GameDispute),
			models.TransactionTypeRefund, d.Amount, "Возврат ставки: ничья"); err != nil {
			return nil, fmt.Errorf("dispute repository: draw ledger %w", err)
		}
	}

	return &d, tx.Commit()
}

// UpdateStatusFrom выполняет условный переход статуса без движения денег
// (cancel, reject). Несработавший CAS означает, что спор уже ушёл из
// исходного статуса.
func (r *DisputeRepository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, fromStatus, toStatus string) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		UPDATE disputes SET status = $3 WHERE id = $1 AND status = $2
		RETURNING *
	`, id, fromStatus, toStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidStatus
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: update status %w", err)
	}
	return &d, nil
}

// SetReadiness устанавливает флаг готовности стороны. Работает только в
// статусе active: после расчёта или отмены флаги не имеют силы.
func (r *DisputeRepository) SetReadiness(ctx context.Context, id uuid.UUID, role string, ready bool) (*models.Dispute, error) {
	column := "creator_ready"
	if role == models.RoomRoleOpponent {
		column = "opponent_ready"
	}

	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		UPDATE disputes SET `+column+` = $2 WHERE id = $1 AND status = $3
		RETURNING *
	`, id, ready, models.DisputeStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.statusConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: set readiness %w", err)
	}
	return &d, nil
}

// SetChoice записывает выбор стороны по исходу (путь голосования).
func (r *DisputeRepository) SetChoice(ctx context.Context, id uuid.UUID, role string, choice bool) (*models.Dispute, error) {
	column := "creator_choice"
	if role == models.RoomRoleOpponent {
		column = "opponent_choice"
	}

	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		UPDATE disputes SET `+column+` = $2 WHERE id = $1 AND status = $3
		RETURNING *
	`, id, choice, models.DisputeStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.statusConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: set choice %w", err)
	}
	return &d, nil
}

// StartVoting переводит спор active -> voting и назначает дедлайн.
func (r *DisputeRepository) StartVoting(ctx context.Context, id uuid.UUID, deadline time.Time) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		UPDATE disputes SET status = $3, voting_deadline = $4
		WHERE id = $1 AND status = $2
		RETURNING *
	`, id, models.DisputeStatusActive, models.DisputeStatusVoting, deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidStatus
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: start voting %w", err)
	}
	return &d, nil
}

// AddVote сохраняет голос стороннего пользователя. Повторный голос того же
// пользователя заменяет предыдущий.
func (r *DisputeRepository) AddVote(ctx context.Context, vote *models.DisputeVote) error {
	query := `
		INSERT INTO dispute_votes (dispute_id, voter_id, vote_for_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (dispute_id, voter_id) DO UPDATE SET vote_for_id = EXCLUDED.vote_for_id
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, vote.DisputeID, vote.VoterID, vote.VoteForID).
		Scan(&vote.ID, &vote.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: add vote %w", err)
	}
	return nil
}

// CountVotes подсчитывает голоса по спору.
func (r *DisputeRepository) CountVotes(ctx context.Context, id uuid.UUID, creatorID, opponentID int64) (*models.VoteCount, error) {
	rows := []struct {
		VoteForID int64 `db:"vote_for_id"`
		Count     int   `db:"count"`
	}{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT vote_for_id, COUNT(*) AS count
		FROM dispute_votes WHERE dispute_id = $1 GROUP BY vote_for_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: count votes %w", err)
	}

	vc := &models.VoteCount{}
	for _, row := range rows {
		switch row.VoteForID {
		case creatorID:
			vc.CreatorVotes = row.Count
		case opponentID:
			vc.OpponentVotes = row.Count
		}
		vc.TotalVotes += row.Count
	}
	return vc, nil
}

// CountByStatus возвращает количество споров в каждом статусе (для отчётов).
func (r *DisputeRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count FROM disputes GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: count by status %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// TotalCommission возвращает сумму удержанных комиссий (для отчётов).
func (r *DisputeRepository) TotalCommission(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(commission), 0) FROM disputes WHERE status = $1
	`, models.DisputeStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("dispute repository: total commission %w", err)
	}
	return total, nil
}

// statusConflict уточняет причину несработавшего условного обновления:
// спора нет вовсе либо он в несовместимом статусе.
func (r *DisputeRepository) statusConflict(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidStatus
}
