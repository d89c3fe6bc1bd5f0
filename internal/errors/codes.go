// Package errors provides structured error handling for the search core.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: File store IO errors
//   - 3XX: Index/storage errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file store I/O errors.
	CategoryIO Category = "IO"
	// CategoryStore indicates index/storage engine errors.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// File store IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeInvalidData    = "ERR_203_INVALID_DATA"

	// Index/storage errors (300-399)
	ErrCodeNotInitialized   = "ERR_301_NOT_INITIALIZED"
	ErrCodeConnectionFailed = "ERR_302_CONNECTION_FAILED"
	ErrCodeMigrationFailed  = "ERR_303_MIGRATION_FAILED"
	ErrCodeStatementPrepare = "ERR_304_STATEMENT_PREPARE_FAILED"
	ErrCodeExecutionFailed  = "ERR_305_EXECUTION_FAILED"
	ErrCodeCorruptIndex     = "ERR_306_CORRUPT_INDEX"
	ErrCodeDocumentNotFound = "ERR_307_DOCUMENT_NOT_FOUND"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeMalformedQuery  = "ERR_402_MALFORMED_QUERY"
	ErrCodeQueryEmpty      = "ERR_403_QUERY_EMPTY"
	ErrCodeChunkValidation = "ERR_404_CHUNK_VALIDATION"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeIndexingFailed = "ERR_502_INDEXING_FAILED"
	ErrCodeSearchFailed   = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract leading digit of the numeric portion
	// (e.g., '3' from "ERR_301_NOT_INITIALIZED").
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryStore
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeMigrationFailed:
		return SeverityFatal
	case ErrCodeDocumentNotFound, ErrCodeFileNotFound:
		// Expected outcomes for lookups, not failures worth alarming on.
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Only transient storage I/O qualifies; programmer errors never do.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeConnectionFailed, ErrCodeExecutionFailed:
		return true
	}
	return false
}
