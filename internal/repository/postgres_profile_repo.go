package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/jobboard/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。行が存在しない場合はErrNotFoundを返す。
// roleは保存値をそのまま返す。正規化は呼び出し側の責務。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	var fullName, email, role sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, email, role, created_at, updated_at FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &fullName, &email, &role, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	p.FullName = fullName.String
	p.Email = email.String
	p.Role = model.Role(role.String)
	return p, nil
}

// Insert はプロフィールを作成する。同一IDの行が既に存在する場合はErrConflictを返す。
func (r *PostgresProfileRepo) Insert(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, full_name, email, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		profile.ID, profile.FullName, profile.Email, string(profile.Role), profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Update はプロフィールを部分更新する。行が存在しない場合はErrNotFoundを返す。
func (r *PostgresProfileRepo) Update(ctx context.Context, id string, patch model.ProfilePatch) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	if patch.FullName != nil {
		args = append(args, *patch.FullName)
		sets = append(sets, fmt.Sprintf("full_name = $%d", len(args)))
	}
	if patch.Role != nil {
		args = append(args, string(*patch.Role))
		sets = append(sets, fmt.Sprintf("role = $%d", len(args)))
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
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

// List はプロフィールをcreated_at降順で返す。
func (r *PostgresProfileRepo) List(ctx context.Context, limit, offset int) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, full_name, email, role, created_at, updated_at
		 FROM profiles ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p := &model.Profile{}
		var role string
		if err := rows.Scan(&p.ID, &p.FullName, &p.Email, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.Role = model.Role(role)
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// Count はプロフィールの総数を返す。
func (r *PostgresProfileRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

// compile-time interface check
var (
	_ ProfileRepository = (*PostgresProfileRepo)(nil)
	_ ProfileDirectory  = (*PostgresProfileRepo)(nil)
)
