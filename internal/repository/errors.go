package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound возвращается, когда запись игрока не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrDisputeNotFound возвращается, когда спор не найден.
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrInsufficientFunds возвращается при нехватке средств на балансе.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAlreadySettled возвращается проигравшим CAS по статусу: спор уже
	// обработан другим запросом. Это не ошибка для пользователя — вызывающий
	// перечитывает спор и отдаёт готовый результат.
	ErrAlreadySettled = errors.New("dispute already settled")
	// ErrInvalidStatus возвращается, когда условный переход статуса не
	// сработал из-за несовместимого текущего статуса.
	ErrInvalidStatus = errors.New("invalid dispute status")
)

// InsufficientFundsError уточняет, какому из участников не хватило средств.
type InsufficientFundsError struct {
	UserID int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for user %d", e.UserID)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrInsufficientFunds).
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
