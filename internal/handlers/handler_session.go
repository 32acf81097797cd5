package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/transitcore/finance_backend/internal/apperrors"
	portssvc "github.com/transitcore/finance_backend/internal/core/ports/services"
	"github.com/transitcore/finance_backend/internal/dto"
	"github.com/transitcore/finance_backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// sessionHandler handles HTTP requests for edit sessions over draft entries.
type sessionHandler struct {
	sessionService portssvc.EditSessionSvc
}

// newSessionHandler creates a new sessionHandler.
func newSessionHandler(sessionService portssvc.EditSessionSvc) *sessionHandler {
	return &sessionHandler{
		sessionService: sessionService,
	}
}

// registerSessionRoutes sets up the edit session routes nested under entries.
func registerSessionRoutes(rg *gin.RouterGroup, sessionService portssvc.EditSessionSvc) {
	h := newSessionHandler(sessionService)

	session := rg.Group("/entries/:entryID/session")
	{
		session.POST("", h.openSession)
		session.GET("", h.getSession)
		session.DELETE("", h.discardSession)
		session.POST("/changes", h.applyChange)
		session.POST("/undo", h.undoChange)
		session.POST("/reset", h.resetSession)
		session.POST("/save", h.saveSession)
	}
}

// openSession godoc
// @Summary Open an edit session
// @Description Opens a bounded-undo edit session over a snapshot of a draft entry. One session per entry.
// @Tags sessions
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 201 {object} dto.SessionStateResponse
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 409 {object} ErrorResponse "Session already open or entry is not a draft"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID}/session [post]
func (h *sessionHandler) openSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	state, err := h.sessionService.OpenSession(c.Request.Context(), entryID, requestingUserID)
	if err != nil {
		h.writeSessionError(c, logger, err, entryID, "Failed to open session")
		return
	}

	logger.Info("Edit session opened", slog.String("entry_id", entryID), slog.String("opened_by", requestingUserID))
	c.JSON(http.StatusCreated, state)
}

// getSession godoc
// @Summary Get edit session state
// @Description Returns the working copy, change count, and undo history of an open session.
// @Tags sessions
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 404 {object} ErrorResponse "No open session for this entry"
// @Router /entries/{entryID}/session [get]
func (h *sessionHandler) getSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	state, err := h.sessionService.GetSession(c.Request.Context(), entryID, requestingUserID)
	if err != nil {
		h.writeSessionError(c, logger, err, entryID, "Failed to get session")
		return
	}

	c.JSON(http.StatusOK, state)
}

// applyChange godoc
// @Summary Apply a change in an edit session
// @Description Writes one field change into the session's working copy and records it for undo.
// @Tags sessions
// @Accept json
// @Produce json
// @Param entryID path string true "Entry ID"
// @Param change body dto.ApplyChangeRequest true "Field change"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 400 {object} ErrorResponse "Invalid field or value"
// @Failure 404 {object} ErrorResponse "No open session for this entry"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID}/session/changes [post]
func (h *sessionHandler) applyChange(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	var req dto.ApplyChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format: " + err.Error()})
		return
	}

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	state, err := h.sessionService.ApplyChange(c.Request.Context(), entryID, req, requestingUserID)
	if err != nil {
		h.writeSessionError(c, logger, err, entryID, "Failed to apply change")
		return
	}

	c.JSON(http.StatusOK, state)
}

// undoChange godoc
// @Summary Undo the most recent change
// @Description Reverts the latest change in the session's working copy.
// @Tags sessions
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 404 {object} ErrorResponse "No open session for this entry"
// @Failure 409 {object} ErrorResponse "Nothing to undo"
// @Router /entries/{entryID}/session/undo [post]
func (h *sessionHandler) undoChange(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	state, err := h.sessionService.UndoChange(c.Request.Context(), entryID, requestingUserID)
	if err != nil {
		h.writeSessionError(c, logger, err, entryID, "Failed to undo change")
		return
	}

	c.JSON(http.StatusOK, state)
}

// resetSession godoc
// @Summary Reset an edit session
// @Description Discards all changes in the session, restoring the opening snapshot.
// @Tags sessions
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 404 {object} ErrorResponse "No open session for this entry"
// @Router /entries/{entryID}/session/reset [post]
func (h *sessionHandler) resetSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	state, err := h.sessionService.ResetSession(c.Request.Context(), entryID, requestingUserID)
	if err != nil {
		h.writeSessionError(c, logger, err, entryID, "Failed to reset session")
		return
	}

	logger.Info("Edit session reset", slog.String("entry_id", entryID))
	c.JSON(http.StatusOK, state)
}

// saveSession godoc
// @Summary Save and close an edit session
// @Description Persists the working copy back to the draft entry, then closes the session.
// @Tags sessions
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 400 {object} ErrorResponse "Working copy fails structural validation"
// @Failure 404 {object} ErrorResponse "No open session for this entry"
// @Failure 409 {object} ErrorResponse "Entry was modified outside the session"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID}/session/save [post]
func (h *sessionHandler) saveSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	state, err := h.sessionService.SaveSession(c.Request.Context(), entryID, requestingUserID)
	if err != nil {
		h.writeSessionError(c, logger, err, entryID, "Failed to save session")
		return
	}

	logger.Info("Edit session saved", slog.String("entry_id", entryID), slog.String("saved_by", requestingUserID))
	c.JSON(http.StatusOK, state)
}

// discardSession godoc
// @Summary Discard an edit session
// @Description Closes the session without saving. The draft entry is untouched.
// @Tags sessions
// @Param entryID path string true "Entry ID"
// @Success 204 "Session discarded"
// @Failure 404 {object} ErrorResponse "No open session for this entry"
// @Router /entries/{entryID}/session [delete]
func (h *sessionHandler) discardSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	if err := h.sessionService.DiscardSession(c.Request.Context(), entryID, requestingUserID); err != nil {
		h.writeSessionError(c, logger, err, entryID, "Failed to discard session")
		return
	}

	logger.Info("Edit session discarded", slog.String("entry_id", entryID))
	c.Status(http.StatusNoContent)
}

// writeSessionError maps session service errors to HTTP responses.
func (h *sessionHandler) writeSessionError(c *gin.Context, logger *slog.Logger, err error, entryID string, fallbackMsg string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		logger.Warn("Session or entry not found", slog.String("entry_id", entryID))
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error in session", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperrors.ErrDuplicate), errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrConcurrency):
		logger.Warn("Conflicting session state", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		logger.Warn("Session ownership violation", slog.String("entry_id", entryID))
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "Session belongs to another user"})
	default:
		logger.Error(fallbackMsg, slog.String("error", err.Error()), slog.String("entry_id", entryID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallbackMsg})
	}
}
