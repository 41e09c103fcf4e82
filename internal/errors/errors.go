// Package errors defines the failure taxonomy of the environment
// preprocessor and a collector for block-local failures.
//
// Only two paths are fatal: a registered template that fails to compile and
// invalid configuration. Everything that happens to a single code block
// (an empty info string, an unknown environment, a render failure) is
// recoverable and must never abort the rest of the document.
package errors

import (
	"fmt"
	"sync"
	"time"
)

// BlockError records a recoverable failure for one code block.
type BlockError struct {
	Environment string
	Chapter     string
	Offset      int
	Message     string
	Severity    ErrorSeverity
	Timestamp   time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
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
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (be *BlockError) Error() string {
	return fmt.Sprintf("%s@%d: %s: %s: %s", be.Chapter, be.Offset, be.Severity, be.Environment, be.Message)
}

// ErrorCollector gathers block errors across concurrent chapter passes.
type ErrorCollector struct {
	blockErrors []BlockError
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		blockErrors: make([]BlockError, 0),
	}
}

// Add adds a block error to the collector
func (ec *ErrorCollector) Add(err BlockError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	err.Timestamp = time.Now()
	ec.blockErrors = append(ec.blockErrors, err)
}

// GetErrors returns a copy of all collected block errors
func (ec *ErrorCollector) GetErrors() []BlockError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]BlockError, len(ec.blockErrors))
	copy(result, ec.blockErrors)
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.blockErrors) > 0
}

// Count returns the number of collected errors
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.blockErrors)
}

// GetErrorsByChapter returns errors for a specific chapter
func (ec *ErrorCollector) GetErrorsByChapter(chapter string) []BlockError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var chapterErrors []BlockError
	for _, err := range ec.blockErrors {
		if err.Chapter == chapter {
			chapterErrors = append(chapterErrors, err)
		}
	}
	return chapterErrors
}
