package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/transitcore/finance_backend/internal/apperrors"
	portssvc "github.com/transitcore/finance_backend/internal/core/ports/services"
	"github.com/transitcore/finance_backend/internal/core/validation"
	"github.com/transitcore/finance_backend/internal/dto"
	"github.com/transitcore/finance_backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// entryHandler handles HTTP requests related to journal entries.
type entryHandler struct {
	entryService portssvc.EntrySvcFacade
}

// newEntryHandler creates a new entryHandler.
func newEntryHandler(entryService portssvc.EntrySvcFacade) *entryHandler {
	return &entryHandler{
		entryService: entryService,
	}
}

// registerEntryRoutes sets up the routes for journal entry operations.
func registerEntryRoutes(rg *gin.RouterGroup, entryService portssvc.EntrySvcFacade) {
	h := newEntryHandler(entryService)

	entries := rg.Group("/entries")
	{
		entries.POST("", h.createDraft)
		entries.GET("", h.listEntries)
		entries.GET("/:entryID", h.getEntry)
		entries.PUT("/:entryID", h.updateDraft)
		entries.DELETE("/:entryID", h.deleteDraft)
		entries.POST("/:entryID/post", h.postEntry)
		entries.POST("/:entryID/reverse", h.reverseEntry)
		entries.GET("/:entryID/validate", h.validateEntry)
	}
}

// createDraft godoc
// @Summary Create a draft journal entry
// @Description Creates a new draft entry with its lines. Incomplete or unbalanced drafts are saved; rule failures come back as warnings on the response.
// @Tags entries
// @Accept json
// @Produce json
// @Param entry body dto.CreateEntryRequest true "Entry details"
// @Success 201 {object} dto.EntryResponse
// @Failure 400 {object} ErrorResponse "Malformed request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse
// @Router /entries [post]
func (h *entryHandler) createDraft(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Failed to bind JSON for createDraft", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format: " + err.Error()})
		return
	}

	creatorUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Creator user ID not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	entry, warnings, err := h.entryService.CreateDraft(c.Request.Context(), req, creatorUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			logger.Warn("Validation error creating draft", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, newValidationErrorResponse(err))
			return
		}
		logger.Error("Failed to create draft entry", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create entry"})
		return
	}

	logger.Info("Draft entry created",
		slog.String("entry_id", entry.EntryID),
		slog.String("entry_code", entry.Code),
		slog.Int("warnings", len(warnings)))
	c.JSON(http.StatusCreated, dto.ToEntryResponseWithWarnings(entry, warnings))
}

// getEntry godoc
// @Summary Get a journal entry
// @Description Retrieves an entry and its lines by ID.
// @Tags entries
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 200 {object} dto.EntryResponse
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID} [get]
func (h *entryHandler) getEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	entry, err := h.entryService.GetEntryByID(c.Request.Context(), entryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Entry not found", slog.String("entry_id", entryID))
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Entry not found"})
			return
		}
		logger.Error("Failed to get entry", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve entry"})
		return
	}

	c.JSON(http.StatusOK, dto.ToEntryResponse(entry))
}

// listEntries godoc
// @Summary List journal entries
// @Description Retrieves a paginated list of entries, newest transaction date first.
// @Tags entries
// @Produce json
// @Param status query string false "Filter by status (DRAFT, POSTED, REVERSED)"
// @Param entryType query string false "Filter by entry type (e.g. MANUAL, ADJUSTMENT)"
// @Param includeReversals query bool false "Include reversal entries"
// @Param limit query int false "Page size (default 20)"
// @Param nextToken query string false "Opaque pagination token from a previous page"
// @Success 200 {object} dto.ListEntriesResponse
// @Failure 400 {object} ErrorResponse "Invalid query parameters"
// @Failure 500 {object} ErrorResponse
// @Router /entries [get]
func (h *entryHandler) listEntries(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ListEntriesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Invalid query parameters for listEntries", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query parameters: " + err.Error()})
		return
	}

	resp, err := h.entryService.ListEntries(c.Request.Context(), params)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		logger.Error("Failed to list entries", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list entries"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// updateDraft godoc
// @Summary Update a draft journal entry
// @Description Replaces the editable header fields and lines of a draft. Posted entries cannot be edited; rule failures come back as warnings on the response.
// @Tags entries
// @Accept json
// @Produce json
// @Param entryID path string true "Entry ID"
// @Param entry body dto.UpdateEntryRequest true "Fields to update"
// @Success 200 {object} dto.EntryResponse
// @Failure 400 {object} ErrorResponse "Malformed request"
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 409 {object} ErrorResponse "Entry is not editable or was modified concurrently"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID} [put]
func (h *entryHandler) updateDraft(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Failed to bind JSON for updateDraft", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format: " + err.Error()})
		return
	}

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	entry, warnings, err := h.entryService.UpdateDraft(c.Request.Context(), entryID, req, requestingUserID)
	if err != nil {
		h.writeEntryError(c, logger, err, entryID, "Failed to update entry")
		return
	}

	logger.Info("Draft entry updated", slog.String("entry_id", entryID), slog.Int("warnings", len(warnings)))
	c.JSON(http.StatusOK, dto.ToEntryResponseWithWarnings(entry, warnings))
}

// postEntry godoc
// @Summary Post a draft journal entry
// @Description Validates the draft against the full rule set and transitions it to Posted.
// @Tags entries
// @Accept json
// @Produce json
// @Param entryID path string true "Entry ID"
// @Param posting body dto.PostEntryRequest false "Optional posting date"
// @Success 200 {object} dto.EntryResponse
// @Failure 400 {object} ErrorResponse "Entry fails validation"
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 409 {object} ErrorResponse "Entry is not a draft or was modified concurrently"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID}/post [post]
func (h *entryHandler) postEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	var req dto.PostEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Failed to bind JSON for postEntry", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format: " + err.Error()})
		return
	}

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	entry, err := h.entryService.PostEntry(c.Request.Context(), entryID, req, requestingUserID)
	if err != nil {
		h.writeEntryError(c, logger, err, entryID, "Failed to post entry")
		return
	}

	logger.Info("Entry posted", slog.String("entry_id", entryID), slog.String("posted_by", requestingUserID))
	c.JSON(http.StatusOK, dto.ToEntryResponse(entry))
}

// deleteDraft godoc
// @Summary Delete a draft journal entry
// @Description Soft deletes a draft with a mandatory reason. Posted entries must be reversed instead.
// @Tags entries
// @Accept json
// @Produce json
// @Param entryID path string true "Entry ID"
// @Param deletion body dto.DeleteEntryRequest true "Deletion reason"
// @Success 204 "Entry deleted"
// @Failure 400 {object} ErrorResponse "Missing reason"
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 409 {object} ErrorResponse "Entry is not a draft"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID} [delete]
func (h *entryHandler) deleteDraft(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	var req dto.DeleteEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format: " + err.Error()})
		return
	}

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	if err := h.entryService.DeleteDraft(c.Request.Context(), entryID, req, requestingUserID); err != nil {
		h.writeEntryError(c, logger, err, entryID, "Failed to delete entry")
		return
	}

	logger.Info("Draft entry deleted", slog.String("entry_id", entryID), slog.String("deleted_by", requestingUserID))
	c.Status(http.StatusNoContent)
}

// reverseEntry godoc
// @Summary Reverse a posted journal entry
// @Description Creates a posted reversal entry with swapped amounts and marks the original Reversed.
// @Tags entries
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 201 {object} dto.EntryResponse "The reversal entry"
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 409 {object} ErrorResponse "Entry is not posted or was already reversed"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID}/reverse [post]
func (h *entryHandler) reverseEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	requestingUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	reversal, err := h.entryService.ReverseEntry(c.Request.Context(), entryID, requestingUserID)
	if err != nil {
		h.writeEntryError(c, logger, err, entryID, "Failed to reverse entry")
		return
	}

	logger.Info("Entry reversed",
		slog.String("original_entry_id", entryID),
		slog.String("reversal_entry_id", reversal.EntryID))
	c.JSON(http.StatusCreated, dto.ToEntryResponse(reversal))
}

// validateEntry godoc
// @Summary Validate a journal entry
// @Description Runs the full validation rule set against an entry without changing it.
// @Tags entries
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 200 {object} dto.ValidationResultResponse
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 500 {object} ErrorResponse
// @Router /entries/{entryID}/validate [get]
func (h *entryHandler) validateEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	entryID := c.Param("entryID")

	result, err := h.entryService.ValidateEntry(c.Request.Context(), entryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Entry not found"})
			return
		}
		logger.Error("Failed to validate entry", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to validate entry"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeEntryError maps service errors for entry write operations to HTTP responses.
func (h *entryHandler) writeEntryError(c *gin.Context, logger *slog.Logger, err error, entryID string, fallbackMsg string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		logger.Warn("Entry not found", slog.String("entry_id", entryID))
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Entry not found"})
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		c.JSON(http.StatusBadRequest, newValidationErrorResponse(err))
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrConcurrency):
		logger.Warn("Conflicting entry state", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		logger.Error(fallbackMsg, slog.String("error", err.Error()), slog.String("entry_id", entryID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallbackMsg})
	}
}

// newValidationErrorResponse extracts the structured violation list from a
// validation error when one is attached, so clients get the same shape the
// validate endpoint returns instead of a flattened message.
func newValidationErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}
	var violations validation.Violations
	if errors.As(err, &violations) {
		resp.Violations = violations
	}
	return resp
}
