package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/fitprogram-backend/internal/domain/program"
	"github.com/yungbote/fitprogram-backend/internal/http/response"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/materialize"
	"github.com/yungbote/fitprogram-backend/internal/modules/program/reassess"
	"github.com/yungbote/fitprogram-backend/internal/services"
)

type ProgramHandler struct {
	programs services.ProgramService
}

func NewProgramHandler(programs services.ProgramService) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

type reassessRequest struct {
	Trigger program.TriggerReason `json:"trigger"`
	Force   bool                  `json:"force"`
}

type ingestRequest struct {
	Events []program.SignalEvent `json:"events"`
}

// POST /api/feasibility
func (h *ProgramHandler) CheckFeasibility(c *gin.Context) {
	var goal program.GoalConstraintSet
	if err := c.ShouldBindJSON(&goal); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.programs.CheckFeasibility(c.Request.Context(), goal)
	if err != nil {
		respondProgramError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"feasibility": res})
}

// POST /api/users/:user_id/plans
func (h *ProgramHandler) GeneratePlan(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var goal program.GoalConstraintSet
	if err := c.ShouldBindJSON(&goal); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	v, res, err := h.programs.GenerateInitialPlan(c.Request.Context(), userID, goal)
	respondGenerated(c, v, res, err)
}

// POST /api/users/:user_id/feasibility/:check_id/tradeoffs/:trade_off_id/accept
func (h *ProgramHandler) AcceptTradeOff(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	checkID, ok := uuidParam(c, "check_id")
	if !ok {
		return
	}
	v, res, err := h.programs.AcceptTradeOff(c.Request.Context(), userID, checkID, c.Param("trade_off_id"))
	respondGenerated(c, v, res, err)
}

// POST /api/users/:user_id/plans/:version_id/activate
func (h *ProgramHandler) ActivatePlan(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	versionID, ok := uuidParam(c, "version_id")
	if !ok {
		return
	}
	v, err := h.programs.ActivatePlan(c.Request.Context(), userID, versionID)
	if err != nil {
		respondProgramError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"plan": v})
}

// GET /api/users/:user_id/plans/active
func (h *ProgramHandler) GetActivePlan(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	v, err := h.programs.GetActivePlan(c.Request.Context(), userID)
	if err != nil {
		respondProgramError(c, err)
		return
	}
	if v == nil {
		response.RespondError(c, http.StatusNotFound, "no_active_plan", errors.New("user has no active plan"))
		return
	}
	response.RespondOK(c, gin.H{"plan": v})
}

// GET /api/users/:user_id/plans/history
func (h *ProgramHandler) GetPlanHistory(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	plans, err := h.programs.GetPlanHistory(c.Request.Context(), userID)
	if err != nil {
		respondProgramError(c, err)
		return
	}
	if plans == nil {
		plans = []program.PlanSummary{}
	}
	response.RespondOK(c, gin.H{"plans": plans})
}

// POST /api/users/:user_id/reassessments
func (h *ProgramHandler) RunReassessment(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var req reassessRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.programs.RunReassessmentCycle(c.Request.Context(), userID, req.Trigger, req.Force)
	if err != nil {
		respondProgramError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"adjustment": rec, "no_change": rec.IsNoOp()})
}

// POST /api/users/:user_id/signals
func (h *ProgramHandler) IngestSignals(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	n, err := h.programs.IngestSignals(c.Request.Context(), userID, req.Events)
	if err != nil {
		respondProgramError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": n})
}

func respondGenerated(c *gin.Context, v *program.PlanVersion, res *program.FeasibilityResult, err error) {
	if err != nil {
		respondProgramError(c, err)
		return
	}
	if v == nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":       response.APIError{Message: "goal is infeasible as stated", Code: "infeasible"},
			"feasibility": res,
		})
		return
	}
	response.RespondCreated(c, gin.H{"plan": v, "feasibility": res})
}

func respondProgramError(c *gin.Context, err error) {
	var ce *reassess.CycleError
	switch {
	case errors.As(err, &ce):
		response.RespondErrorDetails(c, http.StatusServiceUnavailable, "reassessment_postponed", err, gin.H{
			"state":     ce.State,
			"reason":    ce.Reason,
			"retryable": ce.Retryable,
		})
	case errors.Is(err, materialize.ErrContentUnavailable):
		response.RespondError(c, http.StatusUnprocessableEntity, "content_unavailable", err)
	default:
		response.RespondAPIError(c, err)
	}
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, fmt.Errorf("invalid %s %q", name, c.Param(name)))
		return uuid.Nil, false
	}
	return id, true
}
