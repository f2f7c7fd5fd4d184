package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepnest/exam-engine/internal/config"
	"github.com/prepnest/exam-engine/internal/middleware"
	"github.com/prepnest/exam-engine/internal/model"
	"github.com/prepnest/exam-engine/internal/response"
	"github.com/prepnest/exam-engine/internal/session"
	"github.com/prepnest/exam-engine/internal/validator"
)

// SessionHandler exposes the exam session engine to the SPA.
type SessionHandler struct {
	registry *session.Registry
	cfg      *config.Config
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(registry *session.Registry, cfg *config.Config) *SessionHandler {
	return &SessionHandler{registry: registry, cfg: cfg}
}

// EnsureSession godoc
// POST /api/v1/student/exams/:exam_id/session
// Idempotently starts the exam session: safe to call on every mount
// or re-render; only the first call triggers exam creation.
func (h *SessionHandler) EnsureSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ctrl := h.registry.Ensure(claims.UserID, c.Param("exam_id"), h.cfg.ExamCollection)
	snap, err := ctrl.EnsureStarted(c.Request.Context())
	if err != nil {
		response.FailWithDetail(c, http.StatusBadGateway, response.ErrExamCreateFailed, err.Error())
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// GetSession godoc
// GET /api/v1/student/exams/:exam_id/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, ctrl.Snapshot())
}

// AbandonSession godoc
// DELETE /api/v1/student/exams/:exam_id/session
// Tears the session down without submitting.
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.Abandon()
	response.Success(c, http.StatusOK, gin.H{"status": "abandoned"})
}

// SelectOptionRequest is the payload for answering an MCQ.
type SelectOptionRequest struct {
	QuestionID  string `json:"question_id" binding:"required"`
	OptionIndex *int   `json:"option_index" binding:"required,min=0"`
}

// SelectOption godoc
// POST /api/v1/student/exams/:exam_id/answer
func (h *SessionHandler) SelectOption(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req SelectOptionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := ctrl.SelectOption(req.QuestionID, *req.OptionIndex); err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"status": ctrl.Snapshot().Statuses[model.StatusKey(model.QuestionTypeMCQ, req.QuestionID)],
	})
}

// ToggleMarkRequest is the payload for mark-for-review.
type ToggleMarkRequest struct {
	QuestionID   string `json:"question_id" binding:"required"`
	QuestionType string `json:"question_type" binding:"required,oneof=mcq coding"`
}

// ToggleMark godoc
// POST /api/v1/student/exams/:exam_id/mark
func (h *SessionHandler) ToggleMark(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req ToggleMarkRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	marked, err := ctrl.ToggleMark(req.QuestionID, model.QuestionType(req.QuestionType))
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"is_marked": marked})
}

// SaveCodeRequest is the payload for saving coding-question source.
type SaveCodeRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	SourceCode string `json:"source_code" binding:"required"`
}

// SaveCode godoc
// POST /api/v1/student/exams/:exam_id/code
func (h *SessionHandler) SaveCode(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req SaveCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := ctrl.SaveCode(req.QuestionID, req.SourceCode); err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// RunRequest is the payload for standard and custom runs. SourceCode
// is optional: when present it is saved before running, so the run
// always executes the latest editor contents.
type RunRequest struct {
	QuestionID  string `json:"question_id" binding:"required"`
	SourceCode  string `json:"source_code"`
	CustomInput string `json:"custom_input"`
}

// RunStandard godoc
// POST /api/v1/student/exams/:exam_id/run
// Runs saved code against the sample case plus all hidden cases.
func (h *SessionHandler) RunStandard(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req RunRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if req.SourceCode != "" {
		if err := ctrl.SaveCode(req.QuestionID, req.SourceCode); err != nil {
			h.failSession(c, err)
			return
		}
	}

	res, err := ctrl.RunStandard(c.Request.Context(), req.QuestionID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// RunCustom godoc
// POST /api/v1/student/exams/:exam_id/run-custom
// Runs saved code against user-provided input. Does not touch the
// standard-run verdicts.
func (h *SessionHandler) RunCustom(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req RunRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if req.SourceCode != "" {
		if err := ctrl.SaveCode(req.QuestionID, req.SourceCode); err != nil {
			h.failSession(c, err)
			return
		}
	}

	res, err := ctrl.RunCustom(c.Request.Context(), req.QuestionID, req.CustomInput)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// GetResults godoc
// GET /api/v1/student/exams/:exam_id/results/:question_id
// Returns both result buckets for a coding question.
func (h *SessionHandler) GetResults(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	standard, custom := ctrl.Results(c.Param("question_id"))
	response.Success(c, http.StatusOK, gin.H{
		"standard": standard,
		"custom":   custom,
	})
}

// NavigateRequest selects next/previous traversal.
type NavigateRequest struct {
	Direction string `json:"direction" binding:"required,oneof=next previous"`
}

// Navigate godoc
// POST /api/v1/student/exams/:exam_id/navigate
func (h *SessionHandler) Navigate(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, moved, err := ctrl.Navigate(req.Direction == "next")
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"moved": moved, "session": snap})
}

// JumpRequest moves directly to a question.
type JumpRequest struct {
	Subject      string `json:"subject" binding:"required"`
	QuestionType string `json:"question_type" binding:"required,oneof=mcq coding"`
	QuestionID   string `json:"question_id" binding:"required"`
}

// Jump godoc
// POST /api/v1/student/exams/:exam_id/position
func (h *SessionHandler) Jump(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req JumpRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := ctrl.Jump(model.Position{
		Subject:    req.Subject,
		Type:       model.QuestionType(req.QuestionType),
		QuestionID: req.QuestionID,
	})
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// Pause godoc
// POST /api/v1/student/exams/:exam_id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Pause(); err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paused": true})
}

// Resume godoc
// POST /api/v1/student/exams/:exam_id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Resume(); err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paused": false})
}

// Submit godoc
// POST /api/v1/student/exams/:exam_id/submit
// Manual submission; shares the single-flight guard with the
// countdown's auto-submit.
func (h *SessionHandler) Submit(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	out, err := ctrl.Submit(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrAlreadySubmitting):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitting)
		case errors.Is(err, session.ErrNotInProgress):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
		default:
			response.FailWithDetail(c, http.StatusBadGateway, response.ErrSubmitFailed, err.Error())
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"scoring":  out.Scoring,
		"navigate": session.NavigateResults,
	})
}

// Logout godoc
// POST /api/v1/student/logout
// Abandons every live session the student holds.
func (h *SessionHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	h.registry.DropStudent(claims.UserID)
	response.Success(c, http.StatusOK, gin.H{"status": "logged_out"})
}

// controller resolves the live session controller for the request,
// writing the error response itself when there is none.
func (h *SessionHandler) controller(c *gin.Context) (*session.Controller, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	ctrl, ok := h.registry.Get(claims.UserID, c.Param("exam_id"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return nil, false
	}
	return ctrl, true
}

// failSession maps controller errors onto API error codes.
func (h *SessionHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotInProgress):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, session.ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
	case errors.Is(err, session.ErrNoCodeSaved):
		response.Fail(c, http.StatusBadRequest, response.ErrNoCodeSaved)
	case errors.Is(err, session.ErrAlreadySubmitting):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitting)
	default:
		response.FailWithDetail(c, http.StatusInternalServerError, response.ErrInternal, err.Error())
	}
}
