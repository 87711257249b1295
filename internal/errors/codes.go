package errors

import "strings"

// Error codes for ragsync. The numeric band encodes the category:
// 1xx connector, 2xx parse, 3xx index, 4xx journal, 9xx generic.
const (
	// Connector errors (fatal to a run).
	ErrCodeConnectorNetwork  = "ERR_101_CONNECTOR_NETWORK"
	ErrCodeConnectorAuth     = "ERR_102_CONNECTOR_AUTH"
	ErrCodeConnectorNotFound = "ERR_103_CONNECTOR_NOT_FOUND"

	// Parse errors (recovered per file).
	ErrCodeParseFile = "ERR_201_PARSE_FILE"

	// Index errors.
	ErrCodeIndexWrite     = "ERR_301_INDEX_WRITE"
	ErrCodeIndexDimension = "ERR_302_INDEX_DIMENSION"
	ErrCodeIndexDelete    = "ERR_303_INDEX_DELETE"

	// Journal errors.
	ErrCodeJournalRead  = "ERR_401_JOURNAL_READ"
	ErrCodeJournalWrite = "ERR_402_JOURNAL_WRITE"

	// Generic errors.
	ErrCodeInvalidInput = "ERR_901_INVALID_INPUT"
	ErrCodeInternal     = "ERR_902_INTERNAL"
)

// Category groups errors by subsystem.
type Category string

const (
	CategoryConnector  Category = "connector"
	CategoryParse      Category = "parse"
	CategoryIndex      Category = "index"
	CategoryJournal    Category = "journal"
	CategoryValidation Category = "validation"
	CategoryInternal   Category = "internal"
)

// Severity classifies how an error affects the current run.
type Severity string

const (
	// SeverityFatal aborts the run.
	SeverityFatal Severity = "fatal"
	// SeverityRecoverable is isolated to one file or document.
	SeverityRecoverable Severity = "recoverable"
)

// categoryFromCode derives the category from the code's numeric band.
func categoryFromCode(code string) Category {
	switch {
	case strings.HasPrefix(code, "ERR_1"):
		return CategoryConnector
	case strings.HasPrefix(code, "ERR_2"):
		return CategoryParse
	case strings.HasPrefix(code, "ERR_3"):
		return CategoryIndex
	case strings.HasPrefix(code, "ERR_4"):
		return CategoryJournal
	case code == ErrCodeInvalidInput:
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code.
// Connector failures and dimension mismatch abort the run; everything
// else is isolated to the file or document that produced it.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConnectorNetwork, ErrCodeConnectorAuth, ErrCodeConnectorNotFound,
		ErrCodeIndexDimension, ErrCodeInvalidInput:
		return SeverityFatal
	default:
		return SeverityRecoverable
	}
}

// isRetryableCode reports whether operations failing with this code are
// worth retrying with the bounded retry helper.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeConnectorNetwork, ErrCodeIndexWrite, ErrCodeJournalWrite:
		return true
	default:
		return false
	}
}
