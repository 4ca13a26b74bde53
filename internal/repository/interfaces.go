// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/jobboard/internal/model"
)

var (
	// ErrNotFound は対象の行が存在しないことを示す。
	ErrNotFound = errors.New("repository: no matching row")
	// ErrConflict は一意制約違反により書き込みが拒否されたことを示す。
	ErrConflict = errors.New("repository: unique constraint violation")
)

// CredentialRepository は認証主体（メールアドレス・パスワードハッシュ・メタデータ）の永続化インターフェース。
type CredentialRepository interface {
	// Create は認証主体を作成する。メールアドレスが重複する場合はErrConflictを返す。
	Create(ctx context.Context, cred *model.Credential) error
	// FindByEmail はメールアドレスで認証主体を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Credential, error)
	// FindByID は指定IDの認証主体を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Credential, error)
	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	// Delete は認証主体を削除する。セッション・プロフィール・求人・応募はCASCADE削除される。
	// 見つからない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// RecoveryTokenRepository はパスワード再設定トークンの永続化インターフェース。
type RecoveryTokenRepository interface {
	// Create はトークンを保存する。
	Create(ctx context.Context, token *model.RecoveryToken) error
	// Consume は有効なトークンを削除して返す。期限切れ・未登録の場合はnilを返す。
	// 同じトークンは高々1回しか消費できない。
	Consume(ctx context.Context, tokenHash string) (*model.RecoveryToken, error)
}

// ProfileRepository はprofilesテーブルの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。行が存在しない場合はErrNotFoundを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	// Insert はプロフィールを作成する。同一IDの行が既に存在する場合はErrConflictを返す。
	Insert(ctx context.Context, profile *model.Profile) error
	// Update はプロフィールを部分更新する。行が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, id string, patch model.ProfilePatch) error
}

// ProfileDirectory は管理者向けのプロフィール一覧。
type ProfileDirectory interface {
	// List はプロフィールをcreated_at降順で返す。roleは保存値のまま。
	List(ctx context.Context, limit, offset int) ([]*model.Profile, error)
	// Count はプロフィールの総数を返す。
	Count(ctx context.Context) (int, error)
}

// JobRepository は求人データの永続化インターフェース。
type JobRepository interface {
	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Job, error)
	// FindBySourceGUID は雇用者とフィード記事GUIDで取り込み済み求人を検索する。見つからない場合はnilを返す。
	FindBySourceGUID(ctx context.Context, employerID, guid string) (*model.Job, error)
	// ListActive は掲載中の求人をposted_date降順で返す。
	ListActive(ctx context.Context, limit int) ([]*model.Job, error)
	// ListByEmployer は雇用者の全求人をposted_date降順で返す。
	ListByEmployer(ctx context.Context, employerID string) ([]*model.Job, error)
	// Create は求人を作成する。
	Create(ctx context.Context, job *model.Job) error
	// Update は求人を上書き更新する。
	Update(ctx context.Context, job *model.Job) error
	// Delete は指定IDの求人を削除する。関連する応募はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// ApplicationRepository は応募データの永続化インターフェース。
type ApplicationRepository interface {
	// Create は応募を作成する。同一ユーザーの同一求人への応募が既にある場合はErrConflictを返す。
	Create(ctx context.Context, app *model.Application) error
	// FindByID は指定IDの応募を求人情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ApplicationWithJob, error)
	// ExistsByUserAndJob はユーザーが求人に応募済みかどうかを返す。
	ExistsByUserAndJob(ctx context.Context, userID, jobID string) (bool, error)
	// ListByUser は求職者本人の応募一覧を返す。
	ListByUser(ctx context.Context, userID string) ([]model.ApplicationWithJob, error)
	// ListByEmployer は雇用者が掲載した求人への応募一覧を返す。
	ListByEmployer(ctx context.Context, employerID string) ([]model.ApplicationWithJob, error)
	// ListAll は全応募を返す。管理者用。
	ListAll(ctx context.Context) ([]model.ApplicationWithJob, error)
	// UpdateStatus は応募の選考状態を更新する。
	UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus, updatedAt time.Time) error
}
