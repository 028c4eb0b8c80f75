package service

import (
	"context"
	"errors"

	"github.com/rias-glitch/casino-backend/internal/models"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
	"github.com/rias-glitch/casino-backend/internal/repository"
)

// UserRepository описывает взаимодействие сервиса с хранилищем игроков.
type UserRepository interface {
	GetOrCreate(ctx context.Context, id int64, username, firstName string, chatID int64) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Deposit(ctx context.Context, userID int64, amount int64, description string) (*models.Transaction, error)
	AdjustBalance(ctx context.Context, userID int64, delta int64, description string) (*models.User, error)
	SetWinRate(ctx context.Context, userID int64, winRate float64) error
	SetBanned(ctx context.Context, userID int64, banned bool) error
	Leaderboard(ctx context.Context, limit int) ([]models.User, error)
	CountUsers(ctx context.Context) (int, error)
	TotalBalance(ctx context.Context) (int64, error)
}

// TransactionReader отдаёт историю транзакций.
type TransactionReader interface {
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error)
}

// UserService содержит бизнес-логику работы с игроками: профиль, баланс,
// история и ручное админское управление.
type UserService struct {
	users        UserRepository
	transactions TransactionReader
}

// NewUserService создаёт сервис игроков.
func NewUserService(users UserRepository, transactions TransactionReader) *UserService {
	return &UserService{users: users, transactions: transactions}
}

// GetOrCreate возвращает игрока, создавая запись при первом входе.
func (s *UserService) GetOrCreate(ctx context.Context, id int64, username, firstName string, chatID int64) (*models.User, error) {
	user, err := s.users.GetOrCreate(ctx, id, username, firstName, chatID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return user, nil
}

// GetProfile возвращает профиль игрока.
func (s *UserService) GetProfile(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return user, nil
}

// Deposit пополняет баланс игрока.
func (s *UserService) Deposit(ctx context.Context, userID int64, amount int64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	tx, err := s.users.Deposit(ctx, userID, amount, "Пополнение баланса")
	if err != nil {
		return nil, mapRepoError(err)
	}
	return tx, nil
}

// ListTransactions возвращает историю транзакций игрока.
func (s *UserService) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	transactions, err := s.transactions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return transactions, nil
}

// Leaderboard возвращает игроков с наибольшим балансом.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	users, err := s.users.Leaderboard(ctx, limit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return users, nil
}

// AdjustBalance изменяет баланс игрока по команде администратора.
func (s *UserService) AdjustBalance(ctx context.Context, userID int64, delta int64) (*models.User, error) {
	user, err := s.users.AdjustBalance(ctx, userID, delta, "Корректировка администратором")
	if err != nil {
		var fundsErr *repository.InsufficientFundsError
		if errors.As(err, &fundsErr) {
			return nil, apperror.New(apperror.ErrCodeValidation, "баланс не может стать отрицательным")
		}
		return nil, mapRepoError(err)
	}
	return user, nil
}

// SetWinRate устанавливает множитель винрейта игрока.
func (s *UserService) SetWinRate(ctx context.Context, userID int64, winRate float64) error {
	if winRate < 0 {
		return apperror.New(apperror.ErrCodeValidation, "винрейт не может быть отрицательным")
	}
	return mapRepoError(s.users.SetWinRate(ctx, userID, winRate))
}

// SetBanned блокирует или разблокирует игрока.
func (s *UserService) SetBanned(ctx context.Context, userID int64, banned bool) error {
	return mapRepoError(s.users.SetBanned(ctx, userID, banned))
}

// FindByUsername ищет игрока по username (для админских команд).
func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return user, nil
}

// OverviewReport — сводка для админского отчёта.
type OverviewReport struct {
	TotalUsers      int            `json:"total_users"`
	TotalBalance    int64          `json:"total_balance"`
	DisputesByState map[string]int `json:"disputes_by_state"`
	TotalCommission int64          `json:"total_commission"`
}

// DisputeStatsReader отдаёт агрегаты по спорам для отчётов.
type DisputeStatsReader interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
	TotalCommission(ctx context.Context) (int64, error)
}

// BuildOverview собирает сводный отчёт для администраторов.
func (s *UserService) BuildOverview(ctx context.Context, stats DisputeStatsReader) (*OverviewReport, error) {
	totalUsers, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	totalBalance, err := s.users.TotalBalance(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	byStatus, err := stats.CountByStatus(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	commission, err := stats.TotalCommission(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	return &OverviewReport{
		TotalUsers:      totalUsers,
		TotalBalance:    totalBalance,
		DisputesByState: byStatus,
		TotalCommission: commission,
	}, nil
}
