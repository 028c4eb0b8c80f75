package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rias-glitch/casino-backend/internal/dto"
	"github.com/rias-glitch/casino-backend/internal/http/handlers/common"
	"github.com/rias-glitch/casino-backend/internal/service"
)

type DisputeHandler struct {
	svc *service.DisputeService
}

func NewDisputeHandler(s *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// CreateDispute POST /disputes
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	d, err := h.svc.Create(c.Request.Context(), userID, req.OpponentID, req.Question, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// GetDispute GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	d, err := h.svc.GetDispute(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// AcceptDispute POST /disputes/:id/accept
func (h *DisputeHandler) AcceptDispute(c *gin.Context) {
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

	d, err := h.svc.Accept(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DeclineDispute POST /disputes/:id/decline
func (h *DisputeHandler) DeclineDispute(c *gin.Context) {
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

	d, err := h.svc.Decline(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// CancelDispute POST /disputes/:id/cancel
func (h *DisputeHandler) CancelDispute(c *gin.Context) {
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

	d, err := h.svc.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// MakeChoice POST /disputes/:id/choose
func (h *DisputeHandler) MakeChoice(c *gin.Context) {
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

	var req dto.MakeChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	d, err := h.svc.MakeChoice(c.Request.Context(), id, userID, req.Choice)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Vote POST /disputes/:id/vote
func (h *DisputeHandler) Vote(c *gin.Context) {
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

	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	d, err := h.svc.AddVote(c.Request.Context(), id, userID, req.VoteForID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetVotes GET /disputes/:id/votes
func (h *DisputeHandler) GetVotes(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	vc, err := h.svc.CountVotes(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, vc)
}

// ResolveByVoting POST /disputes/:id/resolve
func (h *DisputeHandler) ResolveByVoting(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	d, err := h.svc.ResolveByVoting(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListUserDisputes GET /disputes/user/:userId
func (h *DisputeHandler) ListUserDisputes(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор пользователя")
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.svc.ListUserDisputes(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputes)
}

// ListActiveVotings GET /disputes/active-votings
func (h *DisputeHandler) ListActiveVotings(c *gin.Context) {
	disputes, err := h.svc.ListActiveVotings(c.Request.Context())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputes)
}

// CheckExpired POST /disputes/check-expired
func (h *DisputeHandler) CheckExpired(c *gin.Context) {
	resolved, err := h.svc.CheckExpiredVotings(c.Request.Context())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckExpiredResponse{Resolved: resolved})
}
