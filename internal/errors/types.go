package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeTemplateSyntax     ErrorType = "template_syntax"
	ErrorTypeHeaderParse        ErrorType = "header_parse"
	ErrorTypeUnknownEnvironment ErrorType = "unknown_environment"
	ErrorTypeRender             ErrorType = "render"
	ErrorTypeConfig             ErrorType = "config"
	ErrorTypeIO                 ErrorType = "io"
	ErrorTypeProtocol           ErrorType = "protocol"
	ErrorTypeInternal           ErrorType = "internal"
)

// EnvError is a structured error type with context.
type EnvError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Environment string
	Offset      int
	Recoverable bool
}

// Error implements the error interface.
func (e *EnvError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Environment != "" {
		parts = append(parts, "environment:"+e.Environment)
	}

	if e.Offset > 0 {
		parts = append(parts, fmt.Sprintf("offset:%d", e.Offset))
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *EnvError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *EnvError) Is(target error) bool {
	var t *EnvError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *EnvError) WithContext(key string, value interface{}) *EnvError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithOffset records the byte offset in the document.
func (e *EnvError) WithOffset(offset int) *EnvError {
	e.Offset = offset

	return e
}

// Common error codes.
const (
	ErrCodeTemplateSyntax     = "ERR_TEMPLATE_SYNTAX"
	ErrCodeEmptyInfo          = "ERR_EMPTY_INFO"
	ErrCodeUnknownEnvironment = "ERR_UNKNOWN_ENVIRONMENT"
	ErrCodeRenderFailed       = "ERR_RENDER_FAILED"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeInvalidSpan        = "ERR_INVALID_SPAN"
	ErrCodeProtocol           = "ERR_PROTOCOL"
	ErrCodeIO                 = "ERR_IO"
)

// Error creation functions

// NewTemplateSyntaxError reports a template that failed to compile.
func NewTemplateSyntaxError(name string, cause error) *EnvError {
	return &EnvError{
		Type:        ErrorTypeTemplateSyntax,
		Code:        ErrCodeTemplateSyntax,
		Message:     "malformed template",
		Cause:       cause,
		Environment: name,
		Recoverable: false,
	}
}

// NewHeaderParseError reports an info string that names no environment.
func NewHeaderParseError(info string) *EnvError {
	return &EnvError{
		Type:        ErrorTypeHeaderParse,
		Code:        ErrCodeEmptyInfo,
		Message:     "empty info string",
		Context:     map[string]interface{}{"info": info},
		Recoverable: true,
	}
}

// NewUnknownEnvironmentError reports a lookup miss.
func NewUnknownEnvironmentError(name string) *EnvError {
	return &EnvError{
		Type:        ErrorTypeUnknownEnvironment,
		Code:        ErrCodeUnknownEnvironment,
		Message:     "unknown environment",
		Environment: name,
		Recoverable: true,
	}
}

// NewRenderError reports a template that failed against one block.
func NewRenderError(name string, cause error) *EnvError {
	return &EnvError{
		Type:        ErrorTypeRender,
		Code:        ErrCodeRenderFailed,
		Message:     "render error occurred",
		Cause:       cause,
		Environment: name,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *EnvError {
	return &EnvError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(message string, cause error) *EnvError {
	return &EnvError{
		Type:        ErrorTypeIO,
		Code:        ErrCodeIO,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewProtocolError reports malformed input from the host.
func NewProtocolError(message string, cause error) *EnvError {
	return &EnvError{
		Type:        ErrorTypeProtocol,
		Code:        ErrCodeProtocol,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *EnvError {
	return &EnvError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable reports whether the failure is local to one block.
func IsRecoverable(err error) bool {
	var ee *EnvError
	if errors.As(err, &ee) {
		return ee.Recoverable
	}

	return false
}

// IsType reports whether err is an EnvError of the given type.
func IsType(err error, t ErrorType) bool {
	var ee *EnvError
	if errors.As(err, &ee) {
		return ee.Type == t
	}

	return false
}

// IsTemplateSyntaxError checks if an error is a template compile failure.
func IsTemplateSyntaxError(err error) bool {
	return IsType(err, ErrorTypeTemplateSyntax)
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level matching its recoverability.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ee *EnvError
	if !errors.As(err, &ee) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{
		"type", ee.Type,
		"code", ee.Code,
		"environment", ee.Environment,
	}
	for _, key := range sortedKeys(ee.Context) {
		fields = append(fields, key, ee.Context[key])
	}

	if IsRecoverable(err) {
		h.logger.Warn(ctx, err, "Environment block skipped", fields...)
		return
	}

	h.logger.Error(ctx, err, "Error occurred", fields...)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

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

	messages := make([]string, 0, len(vec.Errors))
	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("validation failed with %d errors: %s", len(vec.Errors), strings.Join(messages, "; "))
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

// ToEnvError converts the validation collection to an EnvError.
func (vec *ValidationErrorCollection) ToEnvError() *EnvError {
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

	return &EnvError{
		Type:        ErrorTypeConfig,
		Code:        ErrCodeConfigInvalid,
		Message:     strings.Join(messages, "; "),
		Context:     context,
		Recoverable: false,
	}
}
