package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/miss-electronics/proctor-agent/internal/response"
	"github.com/miss-electronics/proctor-agent/internal/session"
	"github.com/miss-electronics/proctor-agent/internal/validator"
)

// SessionHandler exposes the session state machine over the local REST API.
// The rendering front end drives the session exclusively through these
// endpoints and the WebSocket event stream.
type SessionHandler struct {
	ctrl *session.Controller
	log  zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(ctrl *session.Controller, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		ctrl: ctrl,
		log:  log.With().Str("component", "session_handler").Logger(),
	}
}

// StartRequest acknowledges the exam instructions.
type StartRequest struct {
	Agreed bool `json:"agreed"`
}

// AnswerRequest records an option label for the current question.
type AnswerRequest struct {
	Label string `json:"label" binding:"required,max=10"`
}

// GotoRequest navigates to a 1-based question position. A pointer so zero,
// which lies outside the valid range and completes the session naturally,
// survives the required check.
type GotoRequest struct {
	Question *int `json:"question" binding:"required"`
}

// SubmitRequest drives manual submission; unconfirmed requests only open
// the confirmation step (subject to the final-submission window).
type SubmitRequest struct {
	Confirmed bool `json:"confirmed"`
}

// Initialize godoc
// POST /api/v1/session/initialize
// Runs the one-shot session initialization: credential check, exam fetch,
// merge of persisted progress. Duplicate calls are no-ops.
func (h *SessionHandler) Initialize(c *gin.Context) {
	err := h.ctrl.Initialize(c.Request.Context())
	switch {
	case err == nil, errors.Is(err, session.ErrNoExamScheduled):
		// "No exam scheduled" is a user-visible notice, not an API failure.
		response.Success(c, http.StatusOK, h.ctrl.Snapshot())
	case errors.Is(err, session.ErrUnauthenticated):
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthenticated)
	case errors.Is(err, session.ErrFetchFailed):
		response.FailWithDetail(c, http.StatusBadGateway, response.ErrFetchFailed, err.Error())
	default:
		h.log.Error().Err(err).Msg("Initialization failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// Start godoc
// POST /api/v1/session/start
// Activates a Ready session once the instructions are agreed to.
func (h *SessionHandler) Start(c *gin.Context) {
	var req StartRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	switch err := h.ctrl.Start(req.Agreed); {
	case err == nil:
		response.Success(c, http.StatusOK, h.ctrl.Snapshot())
	case errors.Is(err, session.ErrAgreementRequired):
		response.Fail(c, http.StatusBadRequest, response.ErrAgreementRequired)
	case errors.Is(err, session.ErrNotReady):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotReady)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// State godoc
// GET /api/v1/session/state
func (h *SessionHandler) State(c *gin.Context) {
	response.Success(c, http.StatusOK, h.ctrl.Snapshot())
}

// Answer godoc
// POST /api/v1/session/answer
func (h *SessionHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	switch err := h.ctrl.Answer(req.Label); {
	case err == nil:
		response.Success(c, http.StatusOK, h.ctrl.Snapshot())
	case errors.Is(err, session.ErrUnknownOption):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	default:
		h.failGate(c, err)
	}
}

// Goto godoc
// POST /api/v1/session/goto
// An out-of-range position completes the session naturally.
func (h *SessionHandler) Goto(c *gin.Context) {
	var req GotoRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.ctrl.GoToQuestion(*req.Question); err != nil {
		h.failGate(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.ctrl.Snapshot())
}

// Advance godoc
// POST /api/v1/session/advance
func (h *SessionHandler) Advance(c *gin.Context) {
	if err := h.ctrl.Advance(); err != nil {
		h.failGate(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.ctrl.Snapshot())
}

// Previous godoc
// POST /api/v1/session/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	if err := h.ctrl.Previous(); err != nil {
		h.failGate(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.ctrl.Snapshot())
}

// Submit godoc
// POST /api/v1/session/submit
// Unconfirmed: opens the confirmation step if the final-submission window
// is open. Confirmed: posts the final submission to the gateway.
func (h *SessionHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !req.Confirmed {
		switch err := h.ctrl.RequestManualSubmit(); {
		case err == nil:
			response.Success(c, http.StatusOK, h.ctrl.Snapshot())
		case errors.Is(err, session.ErrSubmitWindowClosed):
			response.Fail(c, http.StatusConflict, response.ErrSubmitWindowClosed)
		default:
			h.failGate(c, err)
		}
		return
	}

	switch err := h.ctrl.ConfirmSubmit(c.Request.Context()); {
	case err == nil:
		response.Success(c, http.StatusOK, h.ctrl.Snapshot())
	case errors.Is(err, session.ErrSubmitFailed):
		response.FailWithDetail(c, http.StatusBadGateway, response.ErrSubmitFailed, err.Error())
	default:
		h.failGate(c, err)
	}
}

// CancelSubmit godoc
// POST /api/v1/session/submit/cancel
func (h *SessionHandler) CancelSubmit(c *gin.Context) {
	h.ctrl.CancelSubmit()
	response.Success(c, http.StatusOK, h.ctrl.Snapshot())
}

// Abandon godoc
// POST /api/v1/session/abandon
// Explicit abandonment: terminates an active session and clears progress.
func (h *SessionHandler) Abandon(c *gin.Context) {
	h.ctrl.Abandon()
	response.Success(c, http.StatusOK, h.ctrl.Snapshot())
}

// failGate maps the shared session gate errors onto API codes.
func (h *SessionHandler) failGate(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, session.ErrNotFullscreen):
		response.Fail(c, http.StatusConflict, response.ErrNotFullscreen)
	default:
		h.log.Error().Err(err).Msg("Unexpected session error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
