package portable

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedEnd is returned when the input ends before a value is complete.
	ErrUnexpectedEnd = errors.New("portable: unexpected end of input")
	// ErrInvalidHeader is matched by every *InvalidHeaderError.
	ErrInvalidHeader = errors.New("portable: invalid storage header")
	// ErrUnknownTag is matched by every *UnknownTagError.
	ErrUnknownTag = errors.New("portable: unknown tag")
	// ErrRawSizeOverflow is returned when a value does not fit in a RawSize.
	ErrRawSizeOverflow = errors.New("portable: value too large for raw size")
	// ErrNameTooLong is returned when a field name exceeds 255 bytes.
	ErrNameTooLong = errors.New("portable: field name too long")
	// ErrInvalidName is returned for field names that are not valid UTF-8.
	ErrInvalidName = errors.New("portable: field name is not valid utf-8")
	// ErrMaxDepth is returned when sections are nested deeper than allowed.
	ErrMaxDepth = errors.New("portable: maximum nesting depth exceeded")
	// ErrCountTooLarge is returned when a declared length or count cannot fit
	// in the bytes that remain.
	ErrCountTooLarge = errors.New("portable: declared count exceeds remaining input")
	// ErrTrailingData is returned when bytes remain after the top-level section.
	ErrTrailingData = errors.New("portable: trailing data after section")
	// ErrArrayElementType is returned when an array element does not match
	// the array's element tag.
	ErrArrayElementType = errors.New("portable: array element has wrong type")
	// ErrNilSection is returned when a nil section is encoded.
	ErrNilSection = errors.New("portable: nil section")
	// ErrFieldMissing is matched by a *FieldError for an absent field.
	ErrFieldMissing = errors.New("field missing")
	// ErrFieldType is matched by a *FieldError for a field of the wrong type.
	ErrFieldType = errors.New("field has wrong type")
	// ErrReaderDone is returned when a finished Reader is resumed again.
	ErrReaderDone = errors.New("portable: reader already finished")
)

// InvalidHeaderError describes which part of the storage header was rejected.
type InvalidHeaderError struct {
	// Field is one of "signature_a", "signature_b" or "version".
	Field string
	Got   uint32
	Want  uint32
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("portable: invalid storage header: %s is %#x, expected %#x", e.Field, e.Got, e.Want)
}

// Is reports whether target is ErrInvalidHeader.
func (e *InvalidHeaderError) Is(target error) bool {
	return target == ErrInvalidHeader
}

// UnknownTagError is returned when a tag byte does not name a supported type.
type UnknownTagError struct {
	Tag byte
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("portable: unknown tag %#x", e.Tag)
}

// Is reports whether target is ErrUnknownTag.
func (e *UnknownTagError) Is(target error) bool {
	return target == ErrUnknownTag
}

// FieldError is returned by the typed Section getters.
type FieldError struct {
	Name string
	Want Tag
	Got  Tag
	Err  error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrFieldType) {
		return fmt.Sprintf("portable: field %q: %v: got %s, want %s", e.Name, e.Err, e.Got, e.Want)
	}

	return fmt.Sprintf("portable: field %q: %v", e.Name, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
