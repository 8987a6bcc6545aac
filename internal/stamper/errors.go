package stamper

import (
	"errors"
	"fmt"

	"go-pdfstamper/internal/barcode"
	"go-pdfstamper/internal/pdf"
)

var (
	// ErrTemplateOpen is returned when the template cannot be parsed.
	ErrTemplateOpen = errors.New("template cannot be opened")
	// ErrFieldNotFound is returned by field table operations on absent fields.
	// Placement operations never return it.
	ErrFieldNotFound = pdf.ErrFieldNotFound
	// ErrFieldTypeMismatch is returned when a text value targets a non-text field.
	ErrFieldTypeMismatch = errors.New("field type mismatch")
	// ErrConfiguration is returned for unknown symbologies, options and fonts.
	ErrConfiguration = barcode.ErrConfiguration
	// ErrFinalized is returned by every mutating call once the session was serialized.
	ErrFinalized = errors.New("session already finalized")
	// ErrFontAfterValue is returned by SetFont once a field value was bound.
	ErrFontAfterValue = errors.New("font must be set before any field value")
)

// Error records the failed operation and field.
type Error struct {
	Op    string `json:"operation"`
	Field string `json:"field,omitempty"`
	Err   error  `json:"error"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("stamper %s %q: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("stamper %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op, field string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Field: field, Err: err}
}
