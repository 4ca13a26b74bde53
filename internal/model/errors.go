// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（そのまま画面に表示できる文言）
	Category string // カテゴリ: auth, validation, job, application, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken           = "EMAIL_TAKEN"
	ErrCodeWeakPassword         = "WEAK_PASSWORD"
	ErrCodeInvalidRecoveryToken = "INVALID_RECOVERY_TOKEN"
	ErrCodeSessionRequired      = "SESSION_REQUIRED"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeInvalidRole          = "INVALID_ROLE"
	ErrCodeJobNotFound          = "JOB_NOT_FOUND"
	ErrCodeJobForbidden         = "JOB_FORBIDDEN"
	ErrCodeJobInactive          = "JOB_INACTIVE"
	ErrCodeApplicationNotFound  = "APPLICATION_NOT_FOUND"
	ErrCodeDuplicateApplication = "DUPLICATE_APPLICATION"
	ErrCodeInvalidStatus        = "INVALID_STATUS"
	ErrCodeImportFailed         = "IMPORT_FAILED"
	ErrCodeInvalidURL           = "INVALID_URL"
	ErrCodeProfileNotFound      = "PROFILE_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
)

// NewInvalidCredentialsError はメールアドレスまたはパスワード不一致のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid login credentials",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewEmailTakenError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "User already registered",
		Category: "auth",
		Action:   "Sign in instead, or reset your password.",
	}
}

// NewWeakPasswordError はパスワードポリシー違反のエラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("Password should be at least %d characters", minLength),
		Category: "auth",
		Action:   "Choose a longer password.",
	}
}

// NewInvalidRecoveryTokenError は無効または期限切れの再設定リンクのエラーを生成する。
func NewInvalidRecoveryTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRecoveryToken,
		Message:  "Password reset link is invalid or has expired",
		Category: "auth",
		Action:   "Request a new password reset email.",
	}
}

// NewSessionRequiredError はセッションが必要な操作を未ログインで実行した場合のエラーを生成する。
func NewSessionRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionRequired,
		Message:  "Auth session missing",
		Category: "auth",
		Action:   "Please log in and try again.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
	}
}

// NewInvalidRoleError は不明なロールのエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("Unknown role: %s", role),
		Category: "validation",
		Action:   "Role must be one of jobseeker, employer or admin.",
	}
}

// NewJobNotFoundError は求人が見つからない場合のエラーを生成する。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("Job not found: %s", jobID),
		Category: "job",
		Action:   "The listing may have been removed. Browse other jobs.",
	}
}

// NewJobForbiddenError は他の雇用者の求人を操作しようとした場合のエラーを生成する。
func NewJobForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeJobForbidden,
		Message:  "You don't have permission to modify this job",
		Category: "job",
		Action:   "Only the employer who posted the job can change it.",
	}
}

// NewJobInactiveError は掲載終了した求人への応募エラーを生成する。
func NewJobInactiveError() *APIError {
	return &APIError{
		Code:     ErrCodeJobInactive,
		Message:  "This job is no longer accepting applications",
		Category: "job",
		Action:   "Browse other open positions.",
	}
}

// NewApplicationNotFoundError は応募が見つからない場合のエラーを生成する。
func NewApplicationNotFoundError(applicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeApplicationNotFound,
		Message:  fmt.Sprintf("Application not found: %s", applicationID),
		Category: "application",
		Action:   "Reload the applications list.",
	}
}

// NewDuplicateApplicationError は同一求人への二重応募エラーを生成する。
func NewDuplicateApplicationError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateApplication,
		Message:  "You have already applied for this job",
		Category: "application",
		Action:   "Track the existing application on the applications page.",
	}
}

// NewApplicationForbiddenError は他社求人への応募を更新しようとした場合のエラーを生成する。
func NewApplicationForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeJobForbidden,
		Message:  "You don't have permission to update this application",
		Category: "application",
		Action:   "Only the employer who posted the job can review its applications.",
	}
}

// NewInvalidStatusError は不明な選考状態のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("Invalid application status: %s", status),
		Category: "validation",
		Action:   "Status must be one of pending, reviewed, rejected, interview or hired.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: "validation",
		Action:   "Enter a public http:// or https:// URL.",
	}
}

// NewImportFailedError はフィードからの求人取り込み失敗エラーを生成する。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("Could not import jobs: %s", reason),
		Category: "job",
		Action:   "Check that the URL points to an RSS or Atom feed and try again.",
	}
}

// NewProfileNotFoundError はプロフィールが存在しない場合のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "Profile not found",
		Category: "auth",
		Action:   "Log in again to recreate your profile.",
	}
}

// NewUserNotFoundError は管理操作の対象ユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User not found: %s", userID),
		Category: "auth",
		Action:   "Reload the user list.",
	}
}
