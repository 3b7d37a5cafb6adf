package cerrors

import (
	"encoding/json"
	"fmt"

	"github.com/palantir/stacktrace"
)

type ErrorType string

const (
	ErrorTypeNonUserFriendly      ErrorType = "NON_USER_FRIENDLY_ERROR"
	ErrorTypeGeneric              ErrorType = "GENERIC_ERROR"
	ErrorTypeConfiguration        ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeResourceNotFound     ErrorType = "RESOURCE_NOT_FOUND"
	ErrorTypeTransientAPI         ErrorType = "TRANSIENT_API_ERROR"
	ErrorTypeInsufficientHeadroom ErrorType = "INSUFFICIENT_HEADROOM"
	ErrorTypeCooldownActive       ErrorType = "COOLDOWN_ACTIVE"
	ErrorTypeRunAlreadyActive     ErrorType = "RUN_ALREADY_ACTIVE"
	ErrorTypeRollbackFailure      ErrorType = "ROLLBACK_FAILURE"
	ErrorTypeTimeout              ErrorType = "TIMEOUT"
)

// Error is the common error schema across the engine, it carries the
// machine-readable code along with the target and reason for the failure
type Error struct {
	ErrorCode ErrorType `json:"errorCode"`
	Phase     string    `json:"phase,omitempty"`
	Target    string    `json:"target,omitempty"`
	Reason    string    `json:"reason"`
}

func (e Error) Error() string {
	out, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("{\"errorCode\":%q,\"reason\":%q}", e.ErrorCode, e.Reason)
	}
	return string(out)
}

func (e Error) UserFriendly() bool {
	return true
}

func (e Error) ErrorType() ErrorType {
	return e.ErrorCode
}

type userFriendly interface {
	UserFriendly() bool
	ErrorType() ErrorType
}

// IsUserFriendly returns true if err is marked as safe to present to the user
func IsUserFriendly(err error) bool {
	ufe, ok := err.(userFriendly)
	return ok && ufe.UserFriendly()
}

// GetErrorType returns the type of error if the error is user-friendly
func GetErrorType(err error) ErrorType {
	if ufe, ok := err.(userFriendly); ok {
		return ufe.ErrorType()
	}
	return ErrorTypeNonUserFriendly
}

// GetRootCauseAndErrorCode unwraps the stacktrace chain and returns the
// innermost user-friendly cause along with its code
func GetRootCauseAndErrorCode(err error) (string, ErrorType) {
	rootCause := stacktrace.RootCause(err)
	errorType := GetErrorType(rootCause)
	if !IsUserFriendly(rootCause) {
		return err.Error(), errorType
	}
	return rootCause.Error(), errorType
}

// IsTransient reports whether the root cause of err is retryable
func IsTransient(err error) bool {
	return GetErrorType(stacktrace.RootCause(err)) == ErrorTypeTransientAPI
}

// IsRejection reports whether err is a governor-stage rejection, these are
// fatal to the run and guarantee that no side effects have occurred
func IsRejection(err error) bool {
	switch GetErrorType(stacktrace.RootCause(err)) {
	case ErrorTypeInsufficientHeadroom, ErrorTypeCooldownActive, ErrorTypeRunAlreadyActive, ErrorTypeResourceNotFound:
		return true
	}
	return false
}
