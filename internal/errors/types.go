package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDefinition ErrorType = "definition"
	ErrorTypeOrdering   ErrorType = "ordering"
	ErrorTypeModel      ErrorType = "model"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// HcmError is a structured error type with location and module context.
type HcmError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Module      string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *HcmError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Module != "" {
		parts = append(parts, "module:"+e.Module)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *HcmError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *HcmError) Is(target error) bool {
	var t *HcmError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *HcmError) WithContext(key string, value interface{}) *HcmError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *HcmError) WithLocation(filePath string, line, column int) *HcmError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithModule adds the full name of the module the error belongs to.
func (e *HcmError) WithModule(module string) *HcmError {
	e.Module = module

	return e
}

// WithCause sets the underlying cause.
func (e *HcmError) WithCause(cause error) *HcmError {
	e.Cause = cause

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *HcmError {
	return &HcmError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewDefinitionError creates an error for a definition that cannot be merged.
func NewDefinitionError(code, message string) *HcmError {
	return &HcmError{
		Type:        ErrorTypeDefinition,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewOrderingError creates an error raised while sorting groups, projects or modules.
func NewOrderingError(code, message string) *HcmError {
	return &HcmError{
		Type:        ErrorTypeOrdering,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewModelError creates an error raised while assembling the configuration model.
func NewModelError(code, message string) *HcmError {
	return &HcmError{
		Type:        ErrorTypeModel,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *HcmError {
	return &HcmError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *HcmError {
	return &HcmError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *HcmError {
	return &HcmError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var he *HcmError
	if errors.As(err, &he) {
		return he.Recoverable
	}

	return false
}

// HasCode reports whether err, or any error it wraps, is an HcmError with code.
func HasCode(err error, code string) bool {
	var he *HcmError
	if errors.As(err, &he) {
		return he.Code == code
	}

	return false
}

// CodeOf returns the code of the first HcmError in the chain, or "".
func CodeOf(err error) string {
	var he *HcmError
	if errors.As(err, &he) {
		return he.Code
	}

	return ""
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error with appropriate logging.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var he *HcmError
	if !errors.As(err, &he) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"type", he.Type, "code", he.Code}
	if he.Module != "" {
		fields = append(fields, "module", he.Module)
	}
	if he.FilePath != "" {
		fields = append(fields, "file", he.FilePath, "line", he.Line)
	}

	switch he.Type {
	case ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Validation error occurred", fields...)
	case ErrorTypeDefinition:
		h.logger.Error(ctx, err, "Definition could not be merged", fields...)
	case ErrorTypeOrdering:
		h.logger.Error(ctx, err, "Ordering failed", fields...)
	default:
		h.logger.Error(ctx, err, "Error occurred", fields...)
	}
}

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
	ErrCodeParseFailed      = "ERR_PARSE_FAILED"
	ErrCodeInvalidName      = "ERR_INVALID_NAME"

	// ordering
	ErrCodeDuplicateName      = "ERR_DUPLICATE_NAME"
	ErrCodeCircularDependency = "ERR_CIRCULAR_DEPENDENCY"
	ErrCodeMissingDependency  = "ERR_MISSING_DEPENDENCY"

	// model
	ErrCodeConflictingModule      = "ERR_CONFLICTING_MODULE"
	ErrCodeUnknownModule          = "ERR_UNKNOWN_MODULE"
	ErrCodeDuplicateNamespace     = "ERR_DUPLICATE_NAMESPACE"
	ErrCodeDuplicateWebFileBundle = "ERR_DUPLICATE_WEBFILEBUNDLE"
	ErrCodeDuplicateContentRoot   = "ERR_DUPLICATE_CONTENT_ROOT"

	// tree merge
	ErrCodeMissingParent       = "ERR_MISSING_PARENT"
	ErrCodeMissingPrimaryType  = "ERR_MISSING_PRIMARY_TYPE"
	ErrCodeDeleteWithContent   = "ERR_DELETE_WITH_CONTENT"
	ErrCodeDeleteMissing       = "ERR_DELETE_MISSING"
	ErrCodeDeleteRoot          = "ERR_DELETE_ROOT"
	ErrCodeCategoryWithContent = "ERR_CATEGORY_WITH_CONTENT"
	ErrCodeCategoryConflict    = "ERR_CATEGORY_CONFLICT"
	ErrCodeInvalidOrderBefore  = "ERR_INVALID_ORDER_BEFORE"
	ErrCodeInvalidSiblingIndex = "ERR_INVALID_SIBLING_INDEX"
	ErrCodePropertyConflict    = "ERR_PROPERTY_CONFLICT"
	ErrCodePrimaryTypeChange   = "ERR_PRIMARY_TYPE_CHANGE"
	ErrCodeMixinRemoval        = "ERR_MIXIN_REMOVAL"
	ErrCodeInvalidUUID         = "ERR_INVALID_UUID"
	ErrCodeDuplicateUUID       = "ERR_DUPLICATE_UUID"

	// hst
	ErrCodeDuplicateHost = "ERR_DUPLICATE_HOST"
	ErrCodeHostNotFound  = "ERR_HOST_NOT_FOUND"
	ErrCodeMountNotFound = "ERR_MOUNT_NOT_FOUND"

	// renderer
	ErrCodeInvalidQuery = "ERR_INVALID_QUERY"
)

// ValidationError interface for field-specific validation errors.
type ValidationError interface {
	error
	Field() string
	Value() interface{}
	Suggestions() []string
}

// FieldValidationError implements ValidationError for specific field errors.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
	HelpText     []string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// Field returns the field name that failed validation.
func (fve *FieldValidationError) Field() string {
	return fve.FieldName
}

// Value returns the invalid value.
func (fve *FieldValidationError) Value() interface{} {
	return fve.FieldValue
}

// Suggestions returns helpful suggestions for fixing the error.
func (fve *FieldValidationError) Suggestions() []string {
	return fve.HelpText
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
		HelpText:     suggestions,
	}
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	msgs := make([]string, 0, len(vec.Errors))
	for _, err := range vec.Errors {
		msgs = append(msgs, err.Error())
	}

	return fmt.Sprintf("validation failed with %d errors: %s", len(vec.Errors), strings.Join(msgs, "; "))
}

// Add adds a validation error to the collection.
func (vec *ValidationErrorCollection) Add(err ValidationError) {
	vec.Errors = append(vec.Errors, err)
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) {
	vec.Add(NewFieldValidationError(field, value, message, suggestions...))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToHcmError converts the validation collection to an HcmError.
func (vec *ValidationErrorCollection) ToHcmError() *HcmError {
	if !vec.HasErrors() {
		return nil
	}

	var messages []string
	context := make(map[string]interface{})

	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
		context[err.Field()] = map[string]interface{}{
			"value":       err.Value(),
			"suggestions": err.Suggestions(),
		}
	}

	return &HcmError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeValidationFailed,
		Message:     strings.Join(messages, "; "),
		Context:     context,
		Recoverable: true,
	}
}
