package dto

// LoginRequest — вход через Telegram WebApp.
type LoginRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// CreateDisputeRequest — создание спора.
type CreateDisputeRequest struct {
	Question   string `json:"question" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	OpponentID *int64 `json:"opponent_id,omitempty"`
}

// SetReadyRequest — подтверждение готовности в комнате.
type SetReadyRequest struct {
	Ready bool `json:"ready"`
}

// MakeChoiceRequest — выбор участника по исходу спора.
type MakeChoiceRequest struct {
	Choice bool `json:"choice"`
}

// VoteRequest — голос стороннего пользователя.
type VoteRequest struct {
	VoteForID int64 `json:"vote_for_id" binding:"required"`
}

// DepositRequest — пополнение баланса.
type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// GameBetRequest — ставка в одиночной игре.
type GameBetRequest struct {
	Game   string `json:"game" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// GameWinRequest — начисление выигрыша в одиночной игре.
type GameWinRequest struct {
	Game   string `json:"game" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}
