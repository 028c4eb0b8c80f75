package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rias-glitch/casino-backend/internal/dto"
	"github.com/rias-glitch/casino-backend/internal/http/middleware"
	"github.com/rias-glitch/casino-backend/internal/pkg/apperror"
)

var (
	// ErrUserNotFound возвращается, когда userID отсутствует в контексте.
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID возвращается при ошибке разбора UUID.
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentUserID извлекает ID игрока из контекста Gin.
func CurrentUserID(c *gin.Context) (int64, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, ErrUserNotFound
	}

	userID, ok := raw.(int64)
	if !ok {
		return 0, ErrUserNotFound
	}

	return userID, nil
}

// ParseUUIDParam разбирает UUID из параметра URL.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// RespondError отправляет стандартизированный ответ с ошибкой.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondAppError отправляет типизированную ошибку со своим статусом;
// нетипизированные ошибки уходят в централизованный обработчик.
func RespondAppError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
		return
	}
	_ = c.Error(err)
}

// RespondSuccess отправляет стандартизированный успешный ответ.
func RespondSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, dto.SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// RespondUnauthorized отправляет 401.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondBadRequest отправляет 400.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// ParseIntQuery читает целочисленный query-параметр с запасным значением.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination извлекает limit и offset из query-параметров.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
