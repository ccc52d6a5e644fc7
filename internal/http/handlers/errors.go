package handlers

// Stable error codes carried in ErrorResponse.Code. Clients branch on these,
// not on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeInternal         = "internal_error"

	ErrCodeImportFailed = "import_failed"
	ErrCodeEmptyBatch   = "empty_batch"
	ErrCodeSweepFailed  = "sweep_failed"
	ErrCodeListFailed   = "list_failed"
)
