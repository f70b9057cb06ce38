package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
)

// ValidationError is bad caller input, reported before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// validationFromTags turns validator failures into one ValidationError.
func validationFromTags(err error) error {
	failed := utils.ProcessValidationErrors(err)
	if len(failed) == 0 {
		return NewValidationError("", err.Error())
	}
	fields := make([]string, 0, len(failed))
	for field := range failed {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = fmt.Sprintf("%s failed %s", f, failed[f])
	}
	return &ValidationError{Field: fields[0], Message: strings.Join(msgs, "; ")}
}

// NotFoundError is a referenced product, subscription or table that does not exist.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// StoreUnavailableError is a classified failure of the backing store.
type StoreUnavailableError = tabular.UnavailableError

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsStoreUnavailable(err error) bool {
	var ue *StoreUnavailableError
	return errors.As(err, &ue)
}
