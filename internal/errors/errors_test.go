package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHcmError(t *testing.T) {
	t.Run("message with location and module", func(t *testing.T) {
		err := NewDefinitionError(ErrCodeMissingParent, "parent node '/a' does not exist").
			WithModule("g/p/m").
			WithLocation("hcm-config/main.yaml", 4, 3)

		assert.Equal(t,
			"[ERR_MISSING_PARENT] module:g/p/m hcm-config/main.yaml:4:3 parent node '/a' does not exist",
			err.Error())
	})

	t.Run("cause is unwrapped", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewIOError(ErrCodeFileNotFound, "cannot read", cause)

		assert.Equal(t, cause, errors.Unwrap(err))
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("is compares type and code", func(t *testing.T) {
		a := NewOrderingError(ErrCodeCircularDependency, "a")
		b := NewOrderingError(ErrCodeCircularDependency, "b")
		c := NewOrderingError(ErrCodeMissingDependency, "a")

		assert.True(t, errors.Is(a, b))
		assert.False(t, errors.Is(a, c))
	})

	t.Run("code lookup through wrapping", func(t *testing.T) {
		err := fmt.Errorf("build: %w", NewModelError(ErrCodeConflictingModule, "dup"))

		assert.True(t, HasCode(err, ErrCodeConflictingModule))
		assert.Equal(t, ErrCodeConflictingModule, CodeOf(err))
		assert.Equal(t, "", CodeOf(errors.New("plain")))
	})

	t.Run("recoverable", func(t *testing.T) {
		assert.True(t, IsRecoverable(NewValidationError(ErrCodeInvalidName, "x")))
		assert.False(t, IsRecoverable(NewDefinitionError(ErrCodeDeleteRoot, "x")))
		assert.False(t, IsRecoverable(errors.New("plain")))
	})
}

func TestValidationErrorCollection(t *testing.T) {
	var vec ValidationErrorCollection
	assert.False(t, vec.HasErrors())
	assert.Nil(t, vec.ToHcmError())

	vec.AddField("group", "", "group name is required", "add 'group: <name>'")
	vec.AddField("module", "", "module name is required")

	require.True(t, vec.HasErrors())
	assert.Contains(t, vec.Error(), "validation failed with 2 errors")

	he := vec.ToHcmError()
	require.NotNil(t, he)
	assert.Equal(t, ErrCodeValidationFailed, he.Code)
	assert.Contains(t, he.Context, "group")
}

func TestErrorCollector(t *testing.T) {
	ec := NewErrorCollector()
	ec.AddError(nil)
	assert.False(t, ec.HasErrors())

	ec.AddError(NewDefinitionError(ErrCodeDeleteMissing, "late").WithLocation("b.yaml", 9, 1))
	ec.AddError(NewDefinitionError(ErrCodeDeleteMissing, "early").WithLocation("a.yaml", 2, 5).WithModule("g/p/m"))
	ec.AddWarning(errors.New("same value"))

	require.True(t, ec.HasErrors())
	assert.Equal(t, 2, ec.Count(ErrorSeverityError))
	assert.Equal(t, 1, ec.Count(ErrorSeverityWarning))

	diags := ec.Diagnostics()
	require.Len(t, diags, 3)
	assert.Equal(t, "", diags[0].File)
	assert.Equal(t, "a.yaml", diags[1].File)
	assert.Equal(t, "b.yaml", diags[2].File)

	assert.Len(t, ec.GetByModule("g/p/m"), 1)
	assert.Len(t, ec.GetByFile("b.yaml"), 1)
	assert.Len(t, ec.Errors(), 2)
	assert.Error(t, ec.Err())

	ec.Clear()
	assert.NoError(t, ec.Err())
}

type recordingLogger struct {
	level string
	msg   string
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.level, r.msg = "error", msg
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.level, r.msg = "warn", msg
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)

	h.Handle(context.Background(), NewValidationError(ErrCodeInvalidName, "bad"))
	assert.Equal(t, "warn", logger.level)

	h.Handle(context.Background(), NewDefinitionError(ErrCodeDeleteRoot, "root"))
	assert.Equal(t, "error", logger.level)
	assert.Equal(t, "Definition could not be merged", logger.msg)

	h.Handle(context.Background(), errors.New("plain"))
	assert.Equal(t, "Unhandled error occurred", logger.msg)
}

func TestSuggestions(t *testing.T) {
	err := fmt.Errorf("failed to build configuration model: %w",
		NewOrderingError(ErrCodeMissingDependency, "module 'a' depends on missing 'b'"))

	suggestions := Suggestions(err)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "Check the after list", suggestions[0].Title)

	text := FormatSuggestions(suggestions)
	assert.True(t, strings.HasPrefix(text, "Suggestions:\n  1. Check the after list\n"), text)
	assert.Contains(t, text, "     Run: hcm list\n")
	assert.Contains(t, text, "       hcm validate -m ./site -m ./platform\n")

	assert.Nil(t, Suggestions(errors.New("plain")))
	assert.Nil(t, Suggestions(NewInternalError(ErrCodeInternalError, "boom", nil)))
	assert.Empty(t, FormatSuggestions(nil))
}
