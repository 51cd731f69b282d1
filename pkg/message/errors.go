package message

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateType  = errors.New("message type already defined")
	ErrSchema         = errors.New("invalid message schema")
	ErrValidation     = errors.New("message failed validation")
	ErrMissingFields  = errors.New("missing mandatory fields")
	ErrImmutableField = errors.New("field cannot be changed")
	ErrDecode         = errors.New("payload is not a well-formed message map")
	ErrNotFound       = errors.New("message type not defined")
)

// Names every mandatory field absent from a payload or update.
// Matches both ErrMissingFields and ErrValidation.
type MissingFieldsError struct {
	Type   string
	Fields []string
}

func (err *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s for type '%s': %s", ErrMissingFields.Error(), err.Type, strings.Join(err.Fields, ", "))
}

func (err *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields || target == ErrValidation
}
