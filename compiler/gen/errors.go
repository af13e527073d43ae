package gen

import (
	"errors"
	"fmt"
)

// ErrGenerationFailed matches every GenerationError.
var ErrGenerationFailed = errors.New("strata/gen: code generation failed")

// GenerationError is a file that could not be generated.
type GenerationError struct {
	Entity  string // empty for files shared by all entities
	File    string
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	msg := "strata/gen"
	if e.File != "" {
		msg += ": " + e.File
	}
	if e.Entity != "" {
		msg += fmt.Sprintf(" (entity %s)", e.Entity)
	}
	for _, s := range []string{e.Message, errText(e.Cause)} {
		if s != "" {
			msg += ": " + s
		}
	}
	return msg
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *GenerationError) Unwrap() error        { return e.Cause }
func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

// NewGenerationError returns the error of file. Either message or cause
// may be empty.
func NewGenerationError(entity, file, message string, cause error) *GenerationError {
	return &GenerationError{Entity: entity, File: file, Message: message, Cause: cause}
}

// IsGenerationError reports whether err holds a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
