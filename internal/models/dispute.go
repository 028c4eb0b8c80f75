package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы спора
const (
	DisputeStatusPending   = "pending"
	DisputeStatusActive    = "active"
	DisputeStatusVoting    = "voting"
	DisputeStatusCompleted = "completed"
	DisputeStatusCancelled = "cancelled"
	DisputeStatusRejected  = "rejected"
)

// Стороны монеты
const (
	SideHeads = "heads"
	SideTails = "tails"
)

// OppositeSide возвращает противоположную сторону монеты.
// Сторона оппонента всегда вычисляется отсюда и никогда не задаётся отдельно.
func OppositeSide(side string) string {
	if side == SideHeads {
		return SideTails
	}
	return SideHeads
}

// Dispute описывает спор двух игроков: ставка, вопрос, стороны монеты
// и итог. Ставки списываются с обоих при принятии (accept), а не при создании.
type Dispute struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	CreatorID      int64      `db:"creator_id" json:"creator_id"`
	CreatorName    string     `db:"creator_name" json:"creator_name"`
	OpponentID     *int64     `db:"opponent_id" json:"opponent_id,omitempty"`
	OpponentName   *string    `db:"opponent_name" json:"opponent_name,omitempty"`
	Question       string     `db:"question" json:"question"`
	Amount         int64      `db:"amount" json:"amount"`
	CreatorSide    string     `db:"creator_side" json:"creator_side"`
	OpponentSide   string     `db:"opponent_side" json:"opponent_side"`
	CreatorReady   bool       `db:"creator_ready" json:"creator_ready"`
	OpponentReady  bool       `db:"opponent_ready" json:"opponent_ready"`
	Status         string     `db:"status" json:"status"`
	Result         *string    `db:"result" json:"result,omitempty"`
	WinnerID       *int64     `db:"winner_id" json:"winner_id,omitempty"`
	Commission     int64      `db:"commission" json:"commission"`
	IsDraw         bool       `db:"is_draw" json:"is_draw"`
	CreatorChoice  *bool      `db:"creator_choice" json:"creator_choice,omitempty"`
	OpponentChoice *bool      `db:"opponent_choice" json:"opponent_choice,omitempty"`
	VotingDeadline *time.Time `db:"voting_deadline" json:"voting_deadline,omitempty"`
	ChatID         *int64     `db:"chat_id" json:"chat_id,omitempty"`
	MessageID      *int       `db:"message_id" json:"message_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IsParticipant проверяет, участвует ли пользователь в споре.
func (d *Dispute) IsParticipant(userID int64) bool {
	if d.CreatorID == userID {
		return true
	}
	return d.OpponentID != nil && *d.OpponentID == userID
}

// SideOf возвращает сторону монеты участника. Пустая строка — не участник.
func (d *Dispute) SideOf(userID int64) string {
	if d.CreatorID == userID {
		return d.CreatorSide
	}
	if d.OpponentID != nil && *d.OpponentID == userID {
		return d.OpponentSide
	}
	return ""
}

// Opponent возвращает ID второго участника для данного участника.
func (d *Dispute) Opponent(userID int64) int64 {
	if d.CreatorID == userID && d.OpponentID != nil {
		return *d.OpponentID
	}
	if d.OpponentID != nil && *d.OpponentID == userID {
		return d.CreatorID
	}
	return 0
}

// BothReady — оба участника подтвердили готовность к броску.
func (d *Dispute) BothReady() bool {
	return d.CreatorReady && d.OpponentReady
}

// BothChosen — оба участника сделали выбор по исходу (путь голосования).
func (d *Dispute) BothChosen() bool {
	return d.CreatorChoice != nil && d.OpponentChoice != nil
}

// CanBeAccepted — спор ожидает принятия и адресован этому пользователю
// (либо открыт для любого, если оппонент не указан).
func (d *Dispute) CanBeAccepted(userID int64) bool {
	if d.Status != DisputeStatusPending || d.CreatorID == userID {
		return false
	}
	return d.OpponentID == nil || *d.OpponentID == userID
}

// CanBeCancelled — отменить может только создатель и только до принятия.
func (d *Dispute) CanBeCancelled(userID int64) bool {
	return d.Status == DisputeStatusPending && d.CreatorID == userID
}

// DisputeVote — голос стороннего пользователя в пользу одного из участников.
type DisputeVote struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DisputeID uuid.UUID `db:"dispute_id" json:"dispute_id"`
	VoterID   int64     `db:"voter_id" json:"voter_id"`
	VoteForID int64     `db:"vote_for_id" json:"vote_for_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VoteCount — подсчёт голосов по спору.
type VoteCount struct {
	CreatorVotes  int `json:"creator_votes"`
	OpponentVotes int `json:"opponent_votes"`
	TotalVotes    int `json:"total_votes"`
}

// WinnerID возвращает ID победителя по большинству голосов, 0 при ничьей.
// Ноль голосов тоже считается ничьей.
func (vc *VoteCount) WinnerID(creatorID, opponentID int64) int64 {
	if vc.CreatorVotes > vc.OpponentVotes {
		return creatorID
	}
	if vc.OpponentVotes > vc.CreatorVotes {
		return opponentID
	}
	return 0
}
