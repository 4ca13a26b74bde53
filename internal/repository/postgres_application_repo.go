package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/jobboard/internal/model"
)

const applicationWithJobSelect = `SELECT a.id, a.job_id, a.user_id, a.status, a.resume, a.cover_letter,
	a.applied_date, a.updated_at, j.title, j.company, j.employer_id
	FROM applications a
	JOIN jobs j ON j.id = a.job_id`

// PostgresApplicationRepo はPostgreSQLを使用した応募リポジトリ。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

func scanApplicationWithJob(row rowScanner) (*model.ApplicationWithJob, error) {
	a := &model.ApplicationWithJob{}
	var status string
	err := row.Scan(
		&a.ID, &a.JobID, &a.UserID, &status, &a.Resume, &a.CoverLetter,
		&a.AppliedDate, &a.UpdatedAt, &a.JobTitle, &a.Company, &a.EmployerID,
	)
	if err != nil {
		return nil, err
	}
	a.Status = model.ApplicationStatus(status)
	return a, nil
}

// Create は応募を作成する。同一ユーザーの同一求人への応募が既にある場合はErrConflictを返す。
func (r *PostgresApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO applications (id, job_id, user_id, status, resume, cover_letter, applied_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		app.ID, app.JobID, app.UserID, string(app.Status), app.Resume, app.CoverLetter,
		app.AppliedDate, app.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

// FindByID は指定IDの応募を求人情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByID(ctx context.Context, id string) (*model.ApplicationWithJob, error) {
	a, err := scanApplicationWithJob(r.db.QueryRowContext(ctx,
		applicationWithJobSelect+` WHERE a.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return a, nil
}

// ExistsByUserAndJob はユーザーが求人に応募済みかどうかを返す。
func (r *PostgresApplicationRepo) ExistsByUserAndJob(ctx context.Context, userID, jobID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE user_id = $1 AND job_id = $2)`,
		userID, jobID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check application: %w", err)
	}
	return exists, nil
}

// ListByUser は求職者本人の応募一覧を返す。
func (r *PostgresApplicationRepo) ListByUser(ctx context.Context, userID string) ([]model.ApplicationWithJob, error) {
	return r.list(ctx, applicationWithJobSelect+` WHERE a.user_id = $1 ORDER BY a.applied_date DESC`, userID)
}

// ListByEmployer は雇用者が掲載した求人への応募一覧を返す。
func (r *PostgresApplicationRepo) ListByEmployer(ctx context.Context, employerID string) ([]model.ApplicationWithJob, error) {
	return r.list(ctx, applicationWithJobSelect+` WHERE j.employer_id = $1 ORDER BY a.applied_date DESC`, employerID)
}

// ListAll は全応募を返す。管理者用。
func (r *PostgresApplicationRepo) ListAll(ctx context.Context) ([]model.ApplicationWithJob, error) {
	return r.list(ctx, applicationWithJobSelect+` ORDER BY a.applied_date DESC`)
}

func (r *PostgresApplicationRepo) list(ctx context.Context, query string, args ...any) ([]model.ApplicationWithJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []model.ApplicationWithJob
	for rows.Next() {
		a, err := scanApplicationWithJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

// UpdateStatus は応募の選考状態を更新する。
func (r *PostgresApplicationRepo) UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
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

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
