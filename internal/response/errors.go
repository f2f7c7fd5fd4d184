package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrSessionNotFound   ErrCode = "SESSION_NOT_FOUND"
	ErrSessionNotActive  ErrCode = "SESSION_NOT_ACTIVE"
	ErrExamCreateFailed  ErrCode = "EXAM_CREATE_FAILED"
	ErrAlreadySubmitting ErrCode = "ALREADY_SUBMITTING"
	ErrSubmitFailed      ErrCode = "SUBMIT_FAILED"

	// ─── Questions ─────────────────────────────────────────────────────
	ErrQuestionNotFound ErrCode = "QUESTION_NOT_FOUND"
	ErrNoCodeSaved      ErrCode = "NO_CODE_SAVED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrSessionNotFound:
		return "No exam session exists for this exam."
	case ErrSessionNotActive:
		return "The exam session is not in progress."
	case ErrExamCreateFailed:
		return "The exam could not be started."
	case ErrAlreadySubmitting:
		return "A submission is already in progress."
	case ErrSubmitFailed:
		return "The exam could not be submitted."

	case ErrQuestionNotFound:
		return "The question does not exist in this exam."
	case ErrNoCodeSaved:
		return "No source code has been saved for this question."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
