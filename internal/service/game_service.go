package service

import (
	"context"
	"errors"

	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
	"github.com/rias-glitch/casino-backend/internal/repository"
)

// GameBalanceRepository — операции баланса для одиночных игр.
type GameBalanceRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	PlaceBet(ctx context.Context, userID int64, game string, amount int64) (*models.User, error)
	CreditWin(ctx context.Context, userID int64, game string, amount int64) (*models.User, error)
}

// Одиночные игры, принимающие ставки через этот сервис. Споры сюда не
// входят: их расчётом управляет движок споров.
var knownGames = map[string]bool{
	models.GameSlots:    true,
	models.GameRoulette: true,
	models.GameCoinflip: true,
	models.GameMiner:    true,
	models.GameCrush:    true,
	models.GameGuess:    true,
}

// GameService обслуживает одиночные игры: списывает ставку и начисляет
// выигрыш. Игровая математика (коэффициенты, исходы) остаётся на клиенте,
// сервер отвечает только за целостность баланса и журнал.
type GameService struct {
	users GameBalanceRepository
}

// NewGameService создаёт сервис одиночных игр.
func NewGameService(users GameBalanceRepository) *GameService {
	return &GameService{users: users}
}

// PlaceBet списывает ставку с баланса игрока.
func (s *GameService) PlaceBet(ctx context.Context, userID int64, game string, amount int64) (*models.User, error) {
	if err := validateGame(game); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма ставки должна быть положительной")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if user.IsBanned {
		return nil, apperror.ErrUserBanned
	}

	updated, err := s.users.PlaceBet(ctx, userID, game, amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, apperror.ErrInsufficientFunds
		}
		return nil, mapRepoError(err)
	}
	return updated, nil
}

// CreditWin начисляет выигрыш игроку. Сумма масштабируется винрейтом игрока
// (ручка администратора /setwinrate): при множителе 1.0 начисляется ровно
// заявленный выигрыш, при 0 — ничего.
func (s *GameService) CreditWin(ctx context.Context, userID int64, game string, amount int64) (*models.User, error) {
	if err := validateGame(game); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма выигрыша должна быть положительной")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if user.IsBanned {
		return nil, apperror.ErrUserBanned
	}

	credited := int64(float64(amount) * user.WinRate)
	if credited <= 0 {
		return user, nil
	}

	updated, err := s.users.CreditWin(ctx, userID, game, credited)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return updated, nil
}

func validateGame(game string) error {
	if !knownGames[game] {
		return apperror.New(apperror.ErrCodeValidation, "неизвестная игра")
	}
	return nil
}
