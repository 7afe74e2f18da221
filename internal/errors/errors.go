package errors

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Diagnostic is a single finding reported while loading or building a model.
type Diagnostic struct {
	Module   string
	File     string
	Line     int
	Column   int
	Message  string
	Severity ErrorSeverity
	Err      error
}

// ErrorSeverity represents the severity of a diagnostic
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	if d.File == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

// Unwrap returns the error the diagnostic was created from, if any.
func (d *Diagnostic) Unwrap() error {
	return d.Err
}

// ErrorCollector collects diagnostics from concurrent loaders.
type ErrorCollector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		diagnostics: make([]Diagnostic, 0),
	}
}

// AddError records err as an error diagnostic. Location data is taken from
// the first HcmError in the chain.
func (ec *ErrorCollector) AddError(err error) {
	ec.add(err, ErrorSeverityError)
}

// AddWarning records a warning diagnostic.
func (ec *ErrorCollector) AddWarning(err error) {
	ec.add(err, ErrorSeverityWarning)
}

func (ec *ErrorCollector) add(err error, severity ErrorSeverity) {
	if err == nil {
		return
	}

	d := Diagnostic{Message: err.Error(), Severity: severity, Err: err}
	var he *HcmError
	if errors.As(err, &he) {
		d.Module = he.Module
		d.File = he.FilePath
		d.Line = he.Line
		d.Column = he.Column
	}

	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.diagnostics = append(ec.diagnostics, d)
}

// Diagnostics returns all diagnostics ordered by file, line and column.
func (ec *ErrorCollector) Diagnostics() []Diagnostic {
	ec.mutex.RLock()
	result := make([]Diagnostic, len(ec.diagnostics))
	copy(result, ec.diagnostics)
	ec.mutex.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].File != result[j].File {
			return result[i].File < result[j].File
		}
		if result[i].Line != result[j].Line {
			return result[i].Line < result[j].Line
		}
		return result[i].Column < result[j].Column
	})
	return result
}

// Errors returns only the error-severity diagnostics as errors.
func (ec *ErrorCollector) Errors() []error {
	var errs []error
	for _, d := range ec.Diagnostics() {
		if d.Severity == ErrorSeverityError {
			errs = append(errs, d.Err)
		}
	}
	return errs
}

// HasErrors returns true if any error-severity diagnostic was recorded
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	for _, d := range ec.diagnostics {
		if d.Severity == ErrorSeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics with the given severity.
func (ec *ErrorCollector) Count(severity ErrorSeverity) int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	n := 0
	for _, d := range ec.diagnostics {
		if d.Severity == severity {
			n++
		}
	}
	return n
}

// Err joins every recorded error into one, or returns nil.
func (ec *ErrorCollector) Err() error {
	return errors.Join(ec.Errors()...)
}

// Clear clears all diagnostics
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.diagnostics = ec.diagnostics[:0]
}

// GetByFile returns diagnostics for a specific file
func (ec *ErrorCollector) GetByFile(file string) []Diagnostic {
	var fileDiagnostics []Diagnostic
	for _, d := range ec.Diagnostics() {
		if d.File == file {
			fileDiagnostics = append(fileDiagnostics, d)
		}
	}
	return fileDiagnostics
}

// GetByModule returns diagnostics for a specific module
func (ec *ErrorCollector) GetByModule(module string) []Diagnostic {
	var moduleDiagnostics []Diagnostic
	for _, d := range ec.Diagnostics() {
		if d.Module == module {
			moduleDiagnostics = append(moduleDiagnostics, d)
		}
	}
	return moduleDiagnostics
}
