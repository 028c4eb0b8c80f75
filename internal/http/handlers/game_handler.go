package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rias-glitch/casino-backend/internal/dto"
	"github.com/rias-glitch/casino-backend/internal/http/handlers/common"
	"github.com/rias-glitch/casino-backend/internal/service"
)

type GameHandler struct {
	svc *service.GameService
}

func NewGameHandler(s *service.GameService) *GameHandler {
	return &GameHandler{svc: s}
}

// PlaceBet POST /games/bet
func (h *GameHandler) PlaceBet(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.GameBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	user, err := h.svc.PlaceBet(c.Request.Context(), userID, req.Game, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreditWin POST /games/win
func (h *GameHandler) CreditWin(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.GameWinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	user, err := h.svc.CreditWin(c.Request.Context(), userID, req.Game, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
