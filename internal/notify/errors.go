package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrPermanent marks a send the platform refused for good (blocked bot,
	// closed messages, missing permission). Retrying will not help.
	ErrPermanent = errors.New("notify: permanent delivery failure")

	// ErrRetriesExhausted is returned when every attempt failed with a
	// retryable error.
	ErrRetriesExhausted = errors.New("notify: retries exhausted")
)

// VK API error codes the dispatcher distinguishes.
const (
	CodeTooManyRequests  = 6
	CodePermissionDenied = 7
	CodeFloodControl     = 9
	CodeBlacklisted      = 900
	CodeNoPermission     = 901
	CodePrivacySettings  = 902
)

// APIError is an error object returned by the platform API.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

type errClass int

const (
	classTransient errClass = iota
	classRateLimited
	classPermanent
)

func classify(err error) errClass {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return classTransient
	}
	switch apiErr.Code {
	case CodeTooManyRequests:
		return classRateLimited
	case CodePermissionDenied, CodeFloodControl, CodeBlacklisted, CodeNoPermission, CodePrivacySettings:
		return classPermanent
	}
	return classTransient
}

// IsPermanent reports whether err is a permanent delivery failure.
func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }
