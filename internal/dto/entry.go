package dto

import (
	"time"

	"github.com/transitcore/finance_backend/internal/core/domain"
	"github.com/transitcore/finance_backend/internal/core/validation"
	"github.com/shopspring/decimal"
)

// CreateEntryLineRequest defines one line of a new entry. Exactly one of
// debitAmount / creditAmount should be positive; the validator reports which
// rule was broken when that is not the case.
type CreateEntryLineRequest struct {
	AccountID    string          `json:"accountID"`
	Description  string          `json:"description"`
	DebitAmount  decimal.Decimal `json:"debitAmount" binding:"nonnegative_decimal"`
	CreditAmount decimal.Decimal `json:"creditAmount" binding:"nonnegative_decimal"`
}

// CreateEntryRequest defines the data needed to create a new draft entry.
// Description and lines may arrive incomplete; drafts are saved regardless
// and the missing pieces surface as warnings until the entry is posted.
type CreateEntryRequest struct {
	TransactionDate time.Time                `json:"transactionDate" binding:"required"`
	Reference       string                   `json:"reference"`
	Description     string                   `json:"description"`
	EntryType       domain.EntryType         `json:"entryType" binding:"omitempty,entrytype"` // Defaults to MANUAL when empty
	Lines           []CreateEntryLineRequest `json:"lines" binding:"omitempty,dive"`
}

// UpdateEntryRequest defines the data allowed for updating a draft entry.
// Header fields use pointers to distinguish omitted from zero-value; when
// Lines is non-nil it replaces the entry's lines wholesale.
type UpdateEntryRequest struct {
	TransactionDate *time.Time               `json:"transactionDate"`
	Reference       *string                  `json:"reference"`
	Description     *string                  `json:"description"`
	EntryType       *domain.EntryType        `json:"entryType" binding:"omitempty,entrytype"`
	Lines           []CreateEntryLineRequest `json:"lines" binding:"omitempty,dive"`
}

// PostEntryRequest defines the data for posting a draft entry.
type PostEntryRequest struct {
	PostingDate *time.Time `json:"postingDate"` // Defaults to today when omitted
}

// DeleteEntryRequest defines the data for soft deleting a draft entry.
type DeleteEntryRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// LineResponse defines the data returned for one journal line.
type LineResponse struct {
	LineID       string          `json:"lineID"`
	AccountID    string          `json:"accountID"`
	LineNumber   int             `json:"lineNumber"`
	Description  string          `json:"description,omitempty"`
	DebitAmount  decimal.Decimal `json:"debitAmount"`
	CreditAmount decimal.Decimal `json:"creditAmount"`
}

// EntryResponse defines the data returned for a journal entry with its lines.
type EntryResponse struct {
	EntryID         string             `json:"entryID"`
	Code            string             `json:"code"`
	TransactionDate time.Time          `json:"transactionDate"`
	PostingDate     *time.Time         `json:"postingDate,omitempty"`
	Reference       string             `json:"reference,omitempty"`
	Description     string             `json:"description"`
	EntryType       domain.EntryType   `json:"entryType"`
	Status          domain.EntryStatus `json:"status"`
	ReversedByID    *string            `json:"reversedByID,omitempty"`
	OriginalEntryID *string            `json:"originalEntryID,omitempty"`
	TotalDebit      decimal.Decimal    `json:"totalDebit"`
	TotalCredit     decimal.Decimal    `json:"totalCredit"`
	Lines           []LineResponse     `json:"lines"`
	CreatedAt       time.Time          `json:"createdAt"`
	CreatedBy       string             `json:"createdBy"`
	LastUpdatedAt   time.Time          `json:"lastUpdatedAt"`
	LastUpdatedBy   string             `json:"lastUpdatedBy"`
	PostedAt        *time.Time         `json:"postedAt,omitempty"`
	PostedBy        *string            `json:"postedBy,omitempty"`

	// Warnings carries the rule failures of a draft that was saved anyway.
	// Only populated on create/update responses.
	Warnings []validation.Violation `json:"warnings,omitempty"`
}

// ListEntriesParams defines query parameters for listing entries.
type ListEntriesParams struct {
	Status           *domain.EntryStatus `form:"status"`
	EntryType        *domain.EntryType   `form:"entryType"`
	IncludeReversals bool                `form:"includeReversals"`
	Limit            int                 `form:"limit,default=20"`
	NextToken        *string             `form:"nextToken"`
}

// ListEntriesResponse wraps a page of entries with the token for the next page.
type ListEntriesResponse struct {
	Entries   []EntryResponse `json:"entries"`
	NextToken *string         `json:"nextToken,omitempty"`
}

// ValidationResultResponse reports the outcome of validating an entry
// without changing it.
type ValidationResultResponse struct {
	EntryID    string                 `json:"entryID"`
	Valid      bool                   `json:"valid"`
	Violations []validation.Violation `json:"violations,omitempty"`
}

// ToLineResponse converts a domain.JournalLine to LineResponse DTO.
func ToLineResponse(line *domain.JournalLine) LineResponse {
	return LineResponse{
		LineID:       line.LineID,
		AccountID:    line.AccountID,
		LineNumber:   line.LineNumber,
		Description:  line.Description,
		DebitAmount:  line.DebitAmount,
		CreditAmount: line.CreditAmount,
	}
}

// ToEntryResponse converts a domain.JournalEntry to EntryResponse DTO.
func ToEntryResponse(entry *domain.JournalEntry) EntryResponse {
	lines := make([]LineResponse, len(entry.Lines))
	for i, line := range entry.Lines {
		lines[i] = ToLineResponse(&line)
	}
	return EntryResponse{
		EntryID:         entry.EntryID,
		Code:            entry.Code,
		TransactionDate: entry.TransactionDate,
		PostingDate:     entry.PostingDate,
		Reference:       entry.Reference,
		Description:     entry.Description,
		EntryType:       entry.EntryType,
		Status:          entry.Status,
		ReversedByID:    entry.ReversedByID,
		OriginalEntryID: entry.OriginalEntryID,
		TotalDebit:      entry.TotalDebit(),
		TotalCredit:     entry.TotalCredit(),
		Lines:           lines,
		CreatedAt:       entry.CreatedAt,
		CreatedBy:       entry.CreatedBy,
		LastUpdatedAt:   entry.LastUpdatedAt,
		LastUpdatedBy:   entry.LastUpdatedBy,
		PostedAt:        entry.PostedAt,
		PostedBy:        entry.PostedBy,
	}
}

// ToEntryResponseWithWarnings converts a saved draft together with the rule
// warnings accumulated while saving it.
func ToEntryResponseWithWarnings(entry *domain.JournalEntry, warnings validation.Violations) EntryResponse {
	resp := ToEntryResponse(entry)
	resp.Warnings = warnings
	return resp
}

// ToListEntriesResponse converts a page of domain entries to the list DTO.
func ToListEntriesResponse(entries []domain.JournalEntry, nextToken *string) *ListEntriesResponse {
	responses := make([]EntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = ToEntryResponse(&entry)
	}
	return &ListEntriesResponse{
		Entries:   responses,
		NextToken: nextToken,
	}
}
