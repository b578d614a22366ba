package errors

// Codes carried in the "error" field of error bodies and socket errors.
const (
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeConflict           = "conflict"
	ErrCodeUnknownMessageType = "unknown_message_type"

	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeUnknownWindow          = "unknown_leaderboard_window"

	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
