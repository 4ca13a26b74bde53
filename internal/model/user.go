// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// 認証メタデータのキー。サインアップ時に設定され、以後クライアントからは読み取り専用。
const (
	MetadataFullName      = "full_name"
	MetadataPreferredRole = "preferred_role"
)

// Metadata はIdentityに付随する任意のキー・値。
type Metadata map[string]string

// FullName はメタデータのfull_nameを返す。未設定の場合は空文字列。
func (m Metadata) FullName() string {
	return strings.TrimSpace(m[MetadataFullName])
}

// PreferredRole はメタデータのpreferred_roleを検証済みのRoleとして返す。
func (m Metadata) PreferredRole() Role {
	return PreferredRole(m[MetadataPreferredRole])
}

// Identity は認証バックエンドが管理する認証主体を表す。
// アプリケーション固有のプロフィールとは独立している。
type Identity struct {
	ID       string
	Email    string
	Metadata Metadata
}

// LocalPart はメールアドレスの@より前の部分を返す。
// 空の場合は空文字列を返す。
func (i Identity) LocalPart() string {
	local, _, _ := strings.Cut(i.Email, "@")
	return strings.TrimSpace(local)
}

// Credential はパスワードハッシュ付きで永続化されるIdentity。
// 認証サービスの内部でのみ使用する。
type Credential struct {
	Identity
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthSession は認証バックエンドが発行したログインセッションを表す。
type AuthSession struct {
	ID          string
	AccessToken string
	Identity    Identity
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired はセッションが期限切れかどうかを返す。
func (s *AuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Session はsessionsテーブルの行を表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RecoveryToken はパスワード再設定用の一回限りのトークンを表す。
// トークン本体は保存せず、SHA-256ハッシュのみを保持する。
type RecoveryToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Profile はIdentityを表示名とロールで拡張するアプリケーション所有のレコード。
// Identity 1件につき高々1件で、初回解決時に遅延作成される。
type Profile struct {
	ID        string
	FullName  string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfilePatch はプロフィールの部分更新。nilのフィールドは変更しない。
type ProfilePatch struct {
	FullName *string
	Role     *Role
}

// UserRecord はUI層全体で使用する正規化済みのユーザー情報。永続化されない。
type UserRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
