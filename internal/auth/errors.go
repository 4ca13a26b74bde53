package auth

// CredentialError は利用者にそのまま表示してよい認証エラー。
// これ以外のエラーは想定外の障害として扱われる。
type CredentialError struct {
	Code    string
	Message string
}

func (e *CredentialError) Error() string {
	return e.Message
}

var (
	ErrInvalidCredentials   = &CredentialError{Code: "invalid_credentials", Message: "Invalid login credentials"}
	ErrEmailTaken           = &CredentialError{Code: "user_already_exists", Message: "User already registered"}
	ErrInvalidEmail         = &CredentialError{Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	ErrWeakPassword         = &CredentialError{Code: "weak_password", Message: "Password should be at least 6 characters"}
	ErrSessionMissing       = &CredentialError{Code: "session_missing", Message: "Auth session missing!"}
	ErrInvalidRecoveryToken = &CredentialError{Code: "otp_expired", Message: "Email link is invalid or has expired"}
)
