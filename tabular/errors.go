package tabular

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Reason classifies a store failure for the caller.
type Reason string

const (
	ReasonRateLimited      Reason = "rate_limited"
	ReasonNotFound         Reason = "not_found"
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonUnknown          Reason = "unknown"
)

var ErrSheetNotFound = errors.New("sheet not found")

// UnavailableError is returned at every store boundary.
type UnavailableError struct {
	Op     string
	Sheet  string
	Reason Reason
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store %s %q: %s: %v", e.Op, e.Sheet, e.Reason, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Message is the text shown to an operator.
func (e *UnavailableError) Message() string {
	switch e.Reason {
	case ReasonRateLimited:
		return "The store is rate limiting requests. Wait a minute and try again."
	case ReasonNotFound:
		return fmt.Sprintf("Sheet %q was not found. Check the spreadsheet configuration.", e.Sheet)
	case ReasonPermissionDenied:
		return "The service account has no access to the spreadsheet. Share it with the account and retry."
	default:
		return fmt.Sprintf("Could not reach the store: %v", e.Err)
	}
}

// Wrap classifies err and ties it to the operation and sheet; nil stays nil.
func Wrap(op, sheet string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Sheet: sheet, Reason: Classify(err), Err: err}
}

func Classify(err error) Reason {
	if err == nil {
		return ""
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	if errors.Is(err, ErrSheetNotFound) {
		return ReasonNotFound
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			return ReasonRateLimited
		case http.StatusNotFound:
			return ReasonNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return ReasonPermissionDenied
		case http.StatusBadRequest:
			if strings.Contains(gerr.Message, "Unable to parse range") {
				return ReasonNotFound
			}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate_limit"), strings.Contains(msg, "quota"):
		return ReasonRateLimited
	case strings.Contains(msg, "not found"), strings.Contains(msg, "unable to parse range"):
		return ReasonNotFound
	case strings.Contains(msg, "permission"), strings.Contains(msg, "forbidden"):
		return ReasonPermissionDenied
	}
	return ReasonUnknown
}

func IsNotFound(err error) bool {
	return Classify(err) == ReasonNotFound
}

func IsRateLimited(err error) bool {
	return Classify(err) == ReasonRateLimited
}
