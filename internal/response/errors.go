package response

// ErrCode is a typed error code enum for consistent local API error identification.
type ErrCode string

const (
	// ─── Credential ────────────────────────────────────────────────────
	ErrUnauthenticated ErrCode = "UNAUTHENTICATED"
	ErrTokenExpired    ErrCode = "TOKEN_EXPIRED"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrNoExamScheduled  ErrCode = "NO_EXAM_SCHEDULED"
	ErrFetchFailed      ErrCode = "FETCH_FAILED"
	ErrSubmitFailed     ErrCode = "SUBMIT_FAILED"
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionNotReady  ErrCode = "SESSION_NOT_READY"

	// ─── Secure context gates ──────────────────────────────────────────
	ErrNotFullscreen      ErrCode = "NOT_FULLSCREEN"
	ErrSubmitWindowClosed ErrCode = "SUBMIT_WINDOW_NOT_OPEN"
	ErrAgreementRequired  ErrCode = "AGREEMENT_REQUIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrUnauthenticated:
		return "No credential found. Please sign in before starting the exam."
	case ErrTokenExpired:
		return "Your credential has expired. Please sign in again."
	case ErrNoExamScheduled:
		return "No exam scheduled at this time. Please try again later."
	case ErrFetchFailed:
		return "Failed to load exam data."
	case ErrSubmitFailed:
		return "Error submitting quiz."
	case ErrSessionNotActive:
		return "The exam session is not active."
	case ErrSessionNotReady:
		return "The exam session has not finished loading."
	case ErrNotFullscreen:
		return "Return to full screen mode to continue the exam."
	case ErrSubmitWindowClosed:
		return "Manual submission is only allowed near the end of the exam."
	case ErrAgreementRequired:
		return "You must agree to the exam instructions before starting."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrInternal:
		return "An internal agent error occurred."
	default:
		return "An unexpected error occurred."
	}
}
