package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/transitcore/finance_backend/internal/apperrors"
	"github.com/transitcore/finance_backend/internal/core/domain"
	portssvc "github.com/transitcore/finance_backend/internal/core/ports/services"
	"github.com/transitcore/finance_backend/internal/core/validation"
	"github.com/transitcore/finance_backend/internal/dto"
	"github.com/transitcore/finance_backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock EntryService ---
type MockEntryService struct {
	mock.Mock
}

func (m *MockEntryService) GetEntryByID(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JournalEntry), args.Error(1)
}

func (m *MockEntryService) ListEntries(ctx context.Context, params dto.ListEntriesParams) (*dto.ListEntriesResponse, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListEntriesResponse), args.Error(1)
}

func (m *MockEntryService) CreateDraft(ctx context.Context, req dto.CreateEntryRequest, creatorUserID string) (*domain.JournalEntry, validation.Violations, error) {
	args := m.Called(ctx, req, creatorUserID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	var warnings validation.Violations
	if args.Get(1) != nil {
		warnings = args.Get(1).(validation.Violations)
	}
	return args.Get(0).(*domain.JournalEntry), warnings, args.Error(2)
}

func (m *MockEntryService) UpdateDraft(ctx context.Context, entryID string, req dto.UpdateEntryRequest, requestingUserID string) (*domain.JournalEntry, validation.Violations, error) {
	args := m.Called(ctx, entryID, req, requestingUserID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	var warnings validation.Violations
	if args.Get(1) != nil {
		warnings = args.Get(1).(validation.Violations)
	}
	return args.Get(0).(*domain.JournalEntry), warnings, args.Error(2)
}

func (m *MockEntryService) PostEntry(ctx context.Context, entryID string, req dto.PostEntryRequest, requestingUserID string) (*domain.JournalEntry, error) {
	args := m.Called(ctx, entryID, req, requestingUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JournalEntry), args.Error(1)
}

func (m *MockEntryService) DeleteDraft(ctx context.Context, entryID string, req dto.DeleteEntryRequest, requestingUserID string) error {
	args := m.Called(ctx, entryID, req, requestingUserID)
	return args.Error(0)
}

func (m *MockEntryService) ReverseEntry(ctx context.Context, entryID string, requestingUserID string) (*domain.JournalEntry, error) {
	args := m.Called(ctx, entryID, requestingUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JournalEntry), args.Error(1)
}

func (m *MockEntryService) ValidateEntry(ctx context.Context, entryID string) (*dto.ValidationResultResponse, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ValidationResultResponse), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.EntrySvcFacade = (*MockEntryService)(nil)

// --- Test Suite ---
type EntryHandlerTestSuite struct {
	suite.Suite
	router           *gin.Engine
	mockEntryService *MockEntryService
	jwtSecret        string
}

// generateTestToken creates a signed JWT for testing.
func (suite *EntryHandlerTestSuite) generateTestToken(userID string) string {
	claims := jwt.RegisteredClaims{
		Issuer:    "finance-backend-test",
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(suite.jwtSecret))
	if err != nil {
		suite.FailNow("Failed to sign test token", err.Error())
	}
	return signed
}

func (suite *EntryHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(RegisterBindingValidators())
	suite.router = gin.New()
	suite.jwtSecret = "test-secret-key-that-is-long-enough"

	suite.router.Use(middleware.AuthMiddleware(suite.jwtSecret))

	suite.mockEntryService = new(MockEntryService)

	v1 := suite.router.Group("/api/v1")
	registerEntryRoutes(v1, suite.mockEntryService)
}

func (suite *EntryHandlerTestSuite) doRequest(method, url string, body any, userID string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		suite.Require().NoError(err)
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, url, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+suite.generateTestToken(userID))

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

// --- Test Cases ---

func (suite *EntryHandlerTestSuite) TestCreateDraft_Success() {
	userID := uuid.NewString()
	txnDate := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)

	reqBody := dto.CreateEntryRequest{
		TransactionDate: txnDate,
		Description:     "Fuel purchase for route 12",
		Lines: []dto.CreateEntryLineRequest{
			{AccountID: "acc-fuel", DebitAmount: decimal.NewFromInt(150)},
			{AccountID: "acc-cash", CreditAmount: decimal.NewFromInt(150)},
		},
	}

	created := &domain.JournalEntry{
		EntryID:         uuid.NewString(),
		Code:            "JV-2025-007",
		TransactionDate: txnDate,
		Description:     reqBody.Description,
		EntryType:       domain.Manual,
		Status:          domain.Draft,
		Lines: []domain.JournalLine{
			{LineID: uuid.NewString(), AccountID: "acc-fuel", LineNumber: 1, DebitAmount: decimal.NewFromInt(150), CreditAmount: decimal.Zero},
			{LineID: uuid.NewString(), AccountID: "acc-cash", LineNumber: 2, DebitAmount: decimal.Zero, CreditAmount: decimal.NewFromInt(150)},
		},
	}

	suite.mockEntryService.On("CreateDraft",
		mock.Anything,
		mock.MatchedBy(func(r dto.CreateEntryRequest) bool {
			return r.Description == reqBody.Description && len(r.Lines) == 2
		}),
		userID,
	).Return(created, validation.Violations(nil), nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/entries", reqBody, userID)

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.EntryResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(created.EntryID, resp.EntryID)
	suite.Equal("JV-2025-007", resp.Code)
	suite.Equal(domain.Draft, resp.Status)
	suite.Len(resp.Lines, 2)
	suite.Empty(resp.Warnings)
	suite.mockEntryService.AssertExpectations(suite.T())
}

// An entry with a single debit line is far from postable but is a legal
// draft; the handler accepts it and relays the warnings the service reports.
func (suite *EntryHandlerTestSuite) TestCreateDraft_IncompleteDraftAcceptedWithWarnings() {
	userID := uuid.NewString()
	txnDate := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)

	reqBody := map[string]any{
		"transactionDate": "2025-08-20T00:00:00Z",
		"lines": []map[string]any{
			{"accountID": "acc-fuel", "debitAmount": "5000"},
		},
	}

	created := &domain.JournalEntry{
		EntryID:         uuid.NewString(),
		Code:            "JV-2025-008",
		TransactionDate: txnDate,
		EntryType:       domain.Manual,
		Status:          domain.Draft,
		Lines: []domain.JournalLine{
			{LineID: uuid.NewString(), AccountID: "acc-fuel", LineNumber: 1, DebitAmount: decimal.NewFromInt(5000), CreditAmount: decimal.Zero},
		},
	}
	warnings := validation.Violations{
		{Kind: validation.TooFewLines, Message: "entry must have at least 2 lines, got 1"},
		{Kind: validation.Unbalanced, Message: "entry is unbalanced"},
	}

	suite.mockEntryService.On("CreateDraft",
		mock.Anything,
		mock.MatchedBy(func(r dto.CreateEntryRequest) bool { return len(r.Lines) == 1 }),
		userID,
	).Return(created, warnings, nil).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/entries", reqBody, userID)

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.EntryResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(domain.Draft, resp.Status)
	suite.Require().Len(resp.Warnings, 2)
	suite.Equal(validation.TooFewLines, resp.Warnings[0].Kind)
	suite.mockEntryService.AssertExpectations(suite.T())
}

func (suite *EntryHandlerTestSuite) TestGetEntry_NotFound() {
	userID := uuid.NewString()
	entryID := uuid.NewString()

	suite.mockEntryService.On("GetEntryByID", mock.Anything, entryID).
		Return(nil, apperrors.ErrNotFound).Once()

	w := suite.doRequest(http.MethodGet, "/api/v1/entries/"+entryID, nil, userID)

	suite.Equal(http.StatusNotFound, w.Code)
	suite.mockEntryService.AssertExpectations(suite.T())
}

func (suite *EntryHandlerTestSuite) TestPostEntry_ValidationFailure() {
	userID := uuid.NewString()
	entryID := uuid.NewString()

	suite.mockEntryService.On("PostEntry", mock.Anything, entryID, mock.Anything, userID).
		Return(nil, fmt.Errorf("%w: entry is unbalanced", apperrors.ErrValidation)).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/entries/"+entryID+"/post", dto.PostEntryRequest{}, userID)

	suite.Equal(http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Contains(resp.Error, "unbalanced")
	suite.mockEntryService.AssertExpectations(suite.T())
}

// When the service attaches the violation list to the error, the response
// carries it as a structured array, mirroring the validate endpoint.
func (suite *EntryHandlerTestSuite) TestPostEntry_ValidationFailureReturnsViolationList() {
	userID := uuid.NewString()
	entryID := uuid.NewString()

	diff := decimal.NewFromInt(200)
	violations := validation.Violations{
		{Kind: validation.Unbalanced, Message: "debits and credits differ by 200", Difference: &diff},
		{Kind: validation.DescriptionRequired, Message: "entry description is required"},
	}
	suite.mockEntryService.On("PostEntry", mock.Anything, entryID, mock.Anything, userID).
		Return(nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, violations)).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/entries/"+entryID+"/post", dto.PostEntryRequest{}, userID)

	suite.Equal(http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp.Violations, 2)
	suite.Equal(validation.Unbalanced, resp.Violations[0].Kind)
	suite.Require().NotNil(resp.Violations[0].Difference)
	suite.True(resp.Violations[0].Difference.Equal(diff))
	suite.Equal(validation.DescriptionRequired, resp.Violations[1].Kind)
	suite.mockEntryService.AssertExpectations(suite.T())
}

func (suite *EntryHandlerTestSuite) TestPostEntry_ConcurrentModificationConflict() {
	userID := uuid.NewString()
	entryID := uuid.NewString()

	suite.mockEntryService.On("PostEntry", mock.Anything, entryID, mock.Anything, userID).
		Return(nil, apperrors.ErrConcurrency).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/entries/"+entryID+"/post", dto.PostEntryRequest{}, userID)

	suite.Equal(http.StatusConflict, w.Code)
	suite.mockEntryService.AssertExpectations(suite.T())
}

func (suite *EntryHandlerTestSuite) TestDeleteDraft_Success() {
	userID := uuid.NewString()
	entryID := uuid.NewString()

	suite.mockEntryService.On("DeleteDraft", mock.Anything, entryID,
		mock.MatchedBy(func(r dto.DeleteEntryRequest) bool { return r.Reason == "duplicate entry" }),
		userID,
	).Return(nil).Once()

	w := suite.doRequest(http.MethodDelete, "/api/v1/entries/"+entryID, dto.DeleteEntryRequest{Reason: "duplicate entry"}, userID)

	suite.Equal(http.StatusNoContent, w.Code)
	suite.mockEntryService.AssertExpectations(suite.T())
}

func (suite *EntryHandlerTestSuite) TestReverseEntry_NonPostedConflict() {
	userID := uuid.NewString()
	entryID := uuid.NewString()

	suite.mockEntryService.On("ReverseEntry", mock.Anything, entryID, userID).
		Return(nil, fmt.Errorf("%w: only posted entries can be reversed", apperrors.ErrConflict)).Once()

	w := suite.doRequest(http.MethodPost, "/api/v1/entries/"+entryID+"/reverse", nil, userID)

	suite.Equal(http.StatusConflict, w.Code)
	suite.mockEntryService.AssertExpectations(suite.T())
}

func (suite *EntryHandlerTestSuite) TestRequestWithoutToken_Unauthorized() {
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/entries", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusUnauthorized, w.Code)
}

func TestEntryHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(EntryHandlerTestSuite))
}
