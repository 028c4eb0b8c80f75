package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rias-glitch/casino-backend/internal/dto"
	"github.com/rias-glitch/casino-backend/internal/http/handlers/common"
	"github.com/rias-glitch/casino-backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(s *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: s}
}

// Login POST /auth/login — вход по Telegram WebApp initData.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.InitData)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
