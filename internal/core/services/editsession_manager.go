package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/transitcore/finance_backend/internal/apperrors"
	"github.com/transitcore/finance_backend/internal/core/editsession"
	portssvc "github.com/transitcore/finance_backend/internal/core/ports/services"
	"github.com/transitcore/finance_backend/internal/dto"
	"github.com/transitcore/finance_backend/internal/middleware"
)

// sessionTTL is how long an edit session may sit idle before it is evicted.
const sessionTTL = 30 * time.Minute

type sessionHolder struct {
	mu         sync.Mutex
	session    *editsession.Session
	ownerID    string
	lastAccess time.Time
}

// editSessionManager keeps the open edit sessions in process memory, at most
// one per entry. Sessions are owned by the user that opened them and are
// evicted after sitting idle for sessionTTL.
type editSessionManager struct {
	entrySvc portssvc.EntrySvcFacade

	mu       sync.Mutex
	sessions map[string]*sessionHolder
}

// NewEditSessionManager creates the in-memory edit session service.
func NewEditSessionManager(entrySvc portssvc.EntrySvcFacade) portssvc.EditSessionSvc {
	return &editSessionManager{
		entrySvc: entrySvc,
		sessions: make(map[string]*sessionHolder),
	}
}

// Ensure editSessionManager implements the portssvc.EditSessionSvc interface
var _ portssvc.EditSessionSvc = (*editSessionManager)(nil)

func (m *editSessionManager) OpenSession(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	m.sweepExpired()

	entry, err := m.entrySvc.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	session, err := editsession.New(*entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrConflict, err.Error())
	}

	m.mu.Lock()
	if _, exists := m.sessions[entryID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: an edit session is already open for entry %s", apperrors.ErrDuplicate, entryID)
	}
	holder := &sessionHolder{
		session:    session,
		ownerID:    requestingUserID,
		lastAccess: time.Now(),
	}
	m.sessions[entryID] = holder
	m.mu.Unlock()

	logger.Info("Edit session opened", slog.String("entry_id", entryID), slog.String("user_id", requestingUserID))
	return dto.ToSessionStateResponse(session), nil
}

func (m *editSessionManager) GetSession(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error) {
	holder, err := m.holderFor(entryID, requestingUserID)
	if err != nil {
		return nil, err
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	return dto.ToSessionStateResponse(holder.session), nil
}

func (m *editSessionManager) ApplyChange(ctx context.Context, entryID string, req dto.ApplyChangeRequest, requestingUserID string) (*dto.SessionStateResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	holder, err := m.holderFor(entryID, requestingUserID)
	if err != nil {
		return nil, err
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()

	lineIndex := editsession.HeaderLine
	if req.LineIndex != nil {
		lineIndex = *req.LineIndex
	}

	value, err := coerceChangeValue(req.Field, req.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	changed, err := holder.session.ApplyChange(req.Field, lineIndex, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	if changed {
		logger.Debug("Session change applied", slog.String("entry_id", entryID), slog.String("field", string(req.Field)), slog.Int("line_index", lineIndex))
	}
	return dto.ToSessionStateResponse(holder.session), nil
}

func (m *editSessionManager) UndoChange(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	holder, err := m.holderFor(entryID, requestingUserID)
	if err != nil {
		return nil, err
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()

	field, lineIndex, ok := holder.session.Undo()
	if !ok {
		return nil, fmt.Errorf("%w: nothing to undo", apperrors.ErrConflict)
	}
	logger.Debug("Session change undone", slog.String("entry_id", entryID), slog.String("field", string(field)), slog.Int("line_index", lineIndex))
	return dto.ToSessionStateResponse(holder.session), nil
}

func (m *editSessionManager) ResetSession(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	holder, err := m.holderFor(entryID, requestingUserID)
	if err != nil {
		return nil, err
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()

	holder.session.Reset()
	logger.Info("Edit session reset", slog.String("entry_id", entryID))
	return dto.ToSessionStateResponse(holder.session), nil
}

func (m *editSessionManager) SaveSession(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	holder, err := m.holderFor(entryID, requestingUserID)
	if err != nil {
		return nil, err
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()

	current := holder.session.Current()
	req := dto.UpdateEntryRequest{
		TransactionDate: &current.TransactionDate,
		Reference:       &current.Reference,
		Description:     &current.Description,
		EntryType:       &current.EntryType,
		Lines:           make([]dto.CreateEntryLineRequest, len(current.Lines)),
	}
	for i, line := range current.Lines {
		req.Lines[i] = dto.CreateEntryLineRequest{
			AccountID:    line.AccountID,
			Description:  line.Description,
			DebitAmount:  line.DebitAmount,
			CreditAmount: line.CreditAmount,
		}
	}

	saved, warnings, err := m.entrySvc.UpdateDraft(ctx, entryID, req, requestingUserID)
	if err != nil {
		return nil, err
	}
	m.remove(entryID)

	logger.Info("Edit session saved",
		slog.String("entry_id", entryID),
		slog.Int("changes", holder.session.DiffCount()),
		slog.Int("warnings", len(warnings)))

	response := dto.ToSessionStateResponse(holder.session)
	response.Entry = dto.ToEntryResponseWithWarnings(saved, warnings)
	return response, nil
}

func (m *editSessionManager) DiscardSession(ctx context.Context, entryID string, requestingUserID string) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	if _, err := m.holderFor(entryID, requestingUserID); err != nil {
		return err
	}
	m.remove(entryID)
	logger.Info("Edit session discarded", slog.String("entry_id", entryID))
	return nil
}

func (m *editSessionManager) holderFor(entryID string, requestingUserID string) (*sessionHolder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	holder, ok := m.sessions[entryID]
	if !ok {
		return nil, fmt.Errorf("%w: no open edit session for entry %s", apperrors.ErrNotFound, entryID)
	}
	if time.Since(holder.lastAccess) > sessionTTL {
		delete(m.sessions, entryID)
		return nil, fmt.Errorf("%w: edit session for entry %s has expired", apperrors.ErrNotFound, entryID)
	}
	if holder.ownerID != requestingUserID {
		return nil, fmt.Errorf("%w: edit session for entry %s belongs to another user", apperrors.ErrForbidden, entryID)
	}
	holder.lastAccess = time.Now()
	return holder, nil
}

func (m *editSessionManager) remove(entryID string) {
	m.mu.Lock()
	delete(m.sessions, entryID)
	m.mu.Unlock()
}

func (m *editSessionManager) sweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for entryID, holder := range m.sessions {
		if time.Since(holder.lastAccess) > sessionTTL {
			delete(m.sessions, entryID)
		}
	}
}

// coerceChangeValue parses the JSON string form of a change into what the
// session stores. Dates accept RFC 3339 or plain YYYY-MM-DD; everything else
// passes through as a string for the session to normalize.
func coerceChangeValue(field editsession.Field, raw string) (any, error) {
	if field == editsession.FieldTransactionDate {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", raw)
		}
		return t, nil
	}
	return raw, nil
}
