package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rias-glitch/casino-backend/internal/dto"
	"github.com/rias-glitch/casino-backend/internal/http/handlers/common"
	"github.com/rias-glitch/casino-backend/internal/service"
)

type RoomHandler struct {
	svc *service.RoomService
}

func NewRoomHandler(s *service.RoomService) *RoomHandler {
	return &RoomHandler{svc: s}
}

// Join POST /rooms/:id/join
func (h *RoomHandler) Join(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	status, err := h.svc.Join(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SetReady POST /rooms/:id/ready
func (h *RoomHandler) SetReady(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SetReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	status, err := h.svc.SetReady(c.Request.Context(), id, userID, req.Ready)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Status GET /rooms/:id
func (h *RoomHandler) Status(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	status, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Close DELETE /rooms/:id
func (h *RoomHandler) Close(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.Close(c.Request.Context(), id, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "комната закрыта", nil)
}
