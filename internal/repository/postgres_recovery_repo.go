package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jobboard/internal/model"
)

// PostgresRecoveryTokenRepo はPostgreSQLを使用したパスワード再設定トークンリポジトリ。
type PostgresRecoveryTokenRepo struct {
	db *sql.DB
}

// NewPostgresRecoveryTokenRepo はPostgresRecoveryTokenRepoを生成する。
func NewPostgresRecoveryTokenRepo(db *sql.DB) *PostgresRecoveryTokenRepo {
	return &PostgresRecoveryTokenRepo{db: db}
}

// Create はトークンを保存する。
func (r *PostgresRecoveryTokenRepo) Create(ctx context.Context, token *model.RecoveryToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recovery_tokens (token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recovery token: %w", err)
	}
	return nil
}

// Consume は有効なトークンを削除して返す。期限切れ・未登録の場合はnilを返す。
// DELETE ... RETURNINGにより同じトークンの二重消費を防ぐ。
func (r *PostgresRecoveryTokenRepo) Consume(ctx context.Context, tokenHash string) (*model.RecoveryToken, error) {
	token := &model.RecoveryToken{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM recovery_tokens
		 WHERE token_hash = $1 AND expires_at > now()
		 RETURNING token_hash, user_id, expires_at, created_at`,
		tokenHash,
	).Scan(&token.TokenHash, &token.UserID, &token.ExpiresAt, &token.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume recovery token: %w", err)
	}
	return token, nil
}

// compile-time interface check
var _ RecoveryTokenRepository = (*PostgresRecoveryTokenRepo)(nil)
