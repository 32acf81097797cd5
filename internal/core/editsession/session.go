package editsession

import (
	"fmt"
	"reflect"
	"time"

	"github.com/transitcore/finance_backend/internal/core/domain"

	"github.com/shopspring/decimal"
)

// HistoryCap bounds the change log. When the cap is reached the oldest record
// is evicted, so the deepest possible undo is always the most recent
// HistoryCap changes.
const HistoryCap = 50

// HeaderLine is the LineIndex used for entry-level (non-line) fields.
const HeaderLine = -1

// Field addresses a single editable value of a draft entry.
type Field string

const (
	FieldDescription     Field = "description"
	FieldReference       Field = "reference"
	FieldTransactionDate Field = "transaction_date"
	FieldEntryType       Field = "entry_type"
	FieldLineAccountID   Field = "line_account_id"
	FieldLineDescription Field = "line_description"
	FieldLineDebit       Field = "debit_amount"
	FieldLineCredit      Field = "credit_amount"
)

// IsLineField reports whether the field addresses a line rather than the header.
func (f Field) IsLineField() bool {
	switch f {
	case FieldLineAccountID, FieldLineDescription, FieldLineDebit, FieldLineCredit:
		return true
	}
	return false
}

// ChangeRecord captures one applied change so it can be undone exactly.
type ChangeRecord struct {
	Field     Field     `json:"field"`
	LineIndex int       `json:"lineIndex"` // HeaderLine for entry-level fields
	OldValue  any       `json:"oldValue"`
	NewValue  any       `json:"newValue"`
	At        time.Time `json:"at"`
}

// Session tracks edits to a single draft entry in memory: a snapshot of the
// entry as it was when editing began, a working copy, and a bounded log of
// changes supporting undo and full reset. Nothing is persisted until the
// caller explicitly saves the working copy.
//
// A session assumes exactly one concurrent editor; callers that share a
// session across goroutines must serialize access themselves.
type Session struct {
	entryID  string
	original domain.JournalEntry
	current  domain.JournalEntry
	history  []ChangeRecord
	openedAt time.Time
}

// New opens a session over a snapshot of the given draft entry.
func New(entry domain.JournalEntry) (*Session, error) {
	if entry.Status != domain.Draft {
		return nil, fmt.Errorf("edit session requires a draft entry, got status %s", entry.Status)
	}
	return &Session{
		entryID:  entry.EntryID,
		original: entry.Clone(),
		current:  entry.Clone(),
		history:  make([]ChangeRecord, 0, HistoryCap),
		openedAt: time.Now(),
	}, nil
}

// EntryID returns the id of the entry this session edits.
func (s *Session) EntryID() string {
	return s.entryID
}

// OpenedAt returns when the session was created, used for TTL eviction.
func (s *Session) OpenedAt() time.Time {
	return s.openedAt
}

// ApplyChange writes newValue into the working copy at the addressed field.
// If the value differs from the current one, a change record is appended
// (evicting the oldest record at capacity) and true is returned. Equal values
// are a no-op returning false.
func (s *Session) ApplyChange(field Field, lineIndex int, newValue any) (bool, error) {
	oldValue, err := s.read(field, lineIndex)
	if err != nil {
		return false, err
	}
	normalized, err := normalizeValue(field, newValue)
	if err != nil {
		return false, err
	}
	if equalValues(oldValue, normalized) {
		return false, nil
	}
	if err := s.write(field, lineIndex, normalized); err != nil {
		return false, err
	}

	if len(s.history) == HistoryCap {
		s.history = s.history[1:]
	}
	s.history = append(s.history, ChangeRecord{
		Field:     field,
		LineIndex: lineIndex,
		OldValue:  oldValue,
		NewValue:  normalized,
		At:        time.Now(),
	})
	return true, nil
}

// Undo reverts the most recent change by writing its old value back at the
// recorded location, and returns the field and line index that were restored
// so callers can highlight them. ok is false when there is nothing to undo.
func (s *Session) Undo() (field Field, lineIndex int, ok bool) {
	if len(s.history) == 0 {
		return "", HeaderLine, false
	}
	record := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]

	// The recorded location is always valid: line structure does not change
	// within a session, only field values do.
	_ = s.write(record.Field, record.LineIndex, record.OldValue)
	return record.Field, record.LineIndex, true
}

// Reset discards all history and restores the working copy to the snapshot
// taken when the session was opened.
func (s *Session) Reset() {
	s.current = s.original.Clone()
	s.history = s.history[:0]
}

// IsFieldChanged compares current against original at the addressed field.
// It is a structural comparison, independent of the (bounded) history.
func (s *Session) IsFieldChanged(field Field, lineIndex int) bool {
	currentValue, err := s.read(field, lineIndex)
	if err != nil {
		return false
	}
	originalValue, err := readField(&s.original, field, lineIndex)
	if err != nil {
		return false
	}
	return !equalValues(currentValue, originalValue)
}

// DiffCount returns the number of retained change records, surfaced to the
// caller for prompts like "Update with N changes?".
func (s *Session) DiffCount() int {
	return len(s.history)
}

// History returns a copy of the retained change records, oldest first.
func (s *Session) History() []ChangeRecord {
	out := make([]ChangeRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Current returns a deep copy of the working entry.
func (s *Session) Current() domain.JournalEntry {
	return s.current.Clone()
}

// Original returns a deep copy of the snapshot taken at session start.
func (s *Session) Original() domain.JournalEntry {
	return s.original.Clone()
}

// ChangedFields lists every field location where current differs from
// original, formatted as "field" or "field[lineIndex]".
func (s *Session) ChangedFields() []string {
	var changed []string
	for _, field := range []Field{FieldDescription, FieldReference, FieldTransactionDate, FieldEntryType} {
		if s.IsFieldChanged(field, HeaderLine) {
			changed = append(changed, string(field))
		}
	}
	for i := range s.current.Lines {
		for _, field := range []Field{FieldLineAccountID, FieldLineDescription, FieldLineDebit, FieldLineCredit} {
			if s.IsFieldChanged(field, i) {
				changed = append(changed, fmt.Sprintf("%s[%d]", field, i))
			}
		}
	}
	return changed
}

func (s *Session) read(field Field, lineIndex int) (any, error) {
	return readField(&s.current, field, lineIndex)
}

func readField(entry *domain.JournalEntry, field Field, lineIndex int) (any, error) {
	if field.IsLineField() {
		if lineIndex < 0 || lineIndex >= len(entry.Lines) {
			return nil, fmt.Errorf("line index %d out of range (entry has %d lines)", lineIndex, len(entry.Lines))
		}
		line := &entry.Lines[lineIndex]
		switch field {
		case FieldLineAccountID:
			return line.AccountID, nil
		case FieldLineDescription:
			return line.Description, nil
		case FieldLineDebit:
			return line.DebitAmount, nil
		case FieldLineCredit:
			return line.CreditAmount, nil
		}
	}
	if lineIndex != HeaderLine {
		return nil, fmt.Errorf("field %s does not take a line index", field)
	}
	switch field {
	case FieldDescription:
		return entry.Description, nil
	case FieldReference:
		return entry.Reference, nil
	case FieldTransactionDate:
		return entry.TransactionDate, nil
	case FieldEntryType:
		return entry.EntryType, nil
	}
	return nil, fmt.Errorf("unknown field %q", field)
}

func (s *Session) write(field Field, lineIndex int, value any) error {
	entry := &s.current
	if field.IsLineField() {
		if lineIndex < 0 || lineIndex >= len(entry.Lines) {
			return fmt.Errorf("line index %d out of range (entry has %d lines)", lineIndex, len(entry.Lines))
		}
		line := &entry.Lines[lineIndex]
		switch field {
		case FieldLineAccountID:
			line.AccountID = value.(string)
		case FieldLineDescription:
			line.Description = value.(string)
		case FieldLineDebit:
			line.DebitAmount = value.(decimal.Decimal)
		case FieldLineCredit:
			line.CreditAmount = value.(decimal.Decimal)
		}
		return nil
	}
	switch field {
	case FieldDescription:
		entry.Description = value.(string)
	case FieldReference:
		entry.Reference = value.(string)
	case FieldTransactionDate:
		entry.TransactionDate = value.(time.Time)
	case FieldEntryType:
		entry.EntryType = value.(domain.EntryType)
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// normalizeValue coerces the incoming value to the type the field stores,
// rejecting mismatches up front so write never panics.
func normalizeValue(field Field, value any) (any, error) {
	switch field {
	case FieldLineDebit, FieldLineCredit:
		switch v := value.(type) {
		case decimal.Decimal:
			if v.IsNegative() {
				return nil, fmt.Errorf("%s cannot be negative", field)
			}
			return v, nil
		case string:
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("invalid amount for %s: %w", field, err)
			}
			if d.IsNegative() {
				return nil, fmt.Errorf("%s cannot be negative", field)
			}
			return d, nil
		}
		return nil, fmt.Errorf("field %s requires a decimal amount", field)
	case FieldTransactionDate:
		if v, ok := value.(time.Time); ok {
			return v, nil
		}
		return nil, fmt.Errorf("field %s requires a time value", field)
	case FieldEntryType:
		switch v := value.(type) {
		case domain.EntryType:
			if !domain.ValidEntryType(v) {
				return nil, fmt.Errorf("unknown entry type %q", v)
			}
			return v, nil
		case string:
			t := domain.EntryType(v)
			if !domain.ValidEntryType(t) {
				return nil, fmt.Errorf("unknown entry type %q", v)
			}
			return t, nil
		}
		return nil, fmt.Errorf("field %s requires an entry type", field)
	case FieldDescription, FieldReference, FieldLineAccountID, FieldLineDescription:
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("field %s requires a string value", field)
	}
	return nil, fmt.Errorf("unknown field %q", field)
}

func equalValues(a, b any) bool {
	if da, ok := a.(decimal.Decimal); ok {
		db, ok := b.(decimal.Decimal)
		return ok && da.Equal(db)
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
