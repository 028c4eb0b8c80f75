package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rias-glitch/casino-backend/internal/dto"
	"github.com/rias-glitch/casino-backend/internal/http/handlers/common"
	"github.com/rias-glitch/casino-backend/internal/service"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(s *service.UserService) *UserHandler {
	return &UserHandler{svc: s}
}

// GetMe GET /users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	user, err := h.svc.GetProfile(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Deposit POST /users/deposit
func (h *UserHandler) Deposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	tx, err := h.svc.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

// ListTransactions GET /users/me/transactions
func (h *UserHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.svc.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

// Leaderboard GET /users/leaderboard
func (h *UserHandler) Leaderboard(c *gin.Context) {
	limit := common.ParseIntQuery(c, "limit", 10)
	users, err := h.svc.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
