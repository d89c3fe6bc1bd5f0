package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
		retry    bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeFileNotFound, CategoryIO, SeverityInfo, false},
		{ErrCodeNotInitialized, CategoryStore, SeverityError, false},
		{ErrCodeConnectionFailed, CategoryStore, SeverityWarning, true},
		{ErrCodeMigrationFailed, CategoryStore, SeverityFatal, false},
		{ErrCodeCorruptIndex, CategoryStore, SeverityFatal, false},
		{ErrCodeMalformedQuery, CategoryValidation, SeverityError, false},
		{ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retry, err.Retryable)
		})
	}
}

func TestErrorsIs_MatchesByCode(t *testing.T) {
	err := New(ErrCodeNotInitialized, "search called before Initialize", nil)
	assert.True(t, stderrors.Is(err, ErrNotInitialized))
	assert.False(t, stderrors.Is(err, ErrDocumentNotFound))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk went away")
	err := Wrap(ErrCodeExecutionFailed, "insert document", cause)
	require.NotNil(t, err)

	assert.ErrorContains(t, err, "insert document")
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, IsRetryable(err))
}

func TestWrap_NilCause(t *testing.T) {
	var err error = Wrap(ErrCodeExecutionFailed, "noop", nil)
	// Typed nil must not masquerade as a real error for callers that
	// compare against nil after an explicit check.
	assert.True(t, err.(*EngineError) == nil)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(New(ErrCodeDocumentNotFound, "missing", nil)))
	assert.True(t, IsNotFound(New(ErrCodeFileNotFound, "missing", nil)))
	assert.False(t, IsNotFound(New(ErrCodeExecutionFailed, "broken", nil)))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad limit", nil).
		WithDetail("limit", "-5").
		WithDetail("caller", "Search")
	assert.Equal(t, "-5", err.Details["limit"])
	assert.Equal(t, "Search", err.Details["caller"])
}

func TestErrorString(t *testing.T) {
	err := New(ErrCodeQueryEmpty, "query is empty", nil)
	assert.Equal(t, "[ERR_403_QUERY_EMPTY] query is empty", err.Error())
}
