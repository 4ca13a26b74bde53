package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/jobboard/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用した認証主体リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// Create は認証主体を作成する。メールアドレスが重複する場合はErrConflictを返す。
func (r *PostgresCredentialRepo) Create(ctx context.Context, cred *model.Credential) error {
	metadata, err := json.Marshal(cred.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO auth_users (id, email, password_hash, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		cred.ID, cred.Email, cred.PasswordHash, metadata, cred.CreatedAt, cred.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスで認証主体を検索する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByEmail(ctx context.Context, email string) (*model.Credential, error) {
	return r.findOne(ctx,
		`SELECT id, email, password_hash, metadata, created_at, updated_at
		 FROM auth_users WHERE lower(email) = lower($1)`,
		email,
	)
}

// FindByID は指定IDの認証主体を取得する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByID(ctx context.Context, id string) (*model.Credential, error) {
	return r.findOne(ctx,
		`SELECT id, email, password_hash, metadata, created_at, updated_at
		 FROM auth_users WHERE id = $1`,
		id,
	)
}

// UpdatePassword はパスワードハッシュを更新する。
func (r *PostgresCredentialRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auth_users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete は認証主体を削除する。見つからない場合はErrNotFoundを返す。
func (r *PostgresCredentialRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM auth_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresCredentialRepo) findOne(ctx context.Context, query string, arg string) (*model.Credential, error) {
	cred := &model.Credential{}
	var metadata []byte
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&cred.ID, &cred.Email, &cred.PasswordHash, &metadata, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &cred.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return cred, nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
