package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/jobboard/internal/model"
)

const jobColumns = `id, employer_id, title, company, location, salary, description, requirements,
	company_logo, job_type, experience_level, remote, category, deadline, is_active,
	source_guid, posted_date, updated_at`

// PostgresJobRepo はPostgreSQLを使用した求人リポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var (
		requirements pq.StringArray
		deadline     sql.NullTime
		sourceGUID   sql.NullString
	)
	err := row.Scan(
		&job.ID, &job.EmployerID, &job.Title, &job.Company, &job.Location, &job.Salary,
		&job.Description, &requirements, &job.CompanyLogo, &job.Type, &job.ExperienceLevel,
		&job.Remote, &job.Category, &deadline, &job.IsActive, &sourceGUID,
		&job.PostedDate, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Requirements = []string(requirements)
	if deadline.Valid {
		t := deadline.Time
		job.Deadline = &t
	}
	job.SourceGUID = sourceGUID.String
	return job, nil
}

func nullableGUID(guid string) sql.NullString {
	return sql.NullString{String: guid, Valid: guid != ""}
}

// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return job, nil
}

// FindBySourceGUID は雇用者とフィード記事GUIDで取り込み済み求人を検索する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindBySourceGUID(ctx context.Context, employerID, guid string) (*model.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE employer_id = $1 AND source_guid = $2`,
		employerID, guid))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job by source guid: %w", err)
	}
	return job, nil
}

// ListActive は掲載中の求人をposted_date降順で返す。
func (r *PostgresJobRepo) ListActive(ctx context.Context, limit int) ([]*model.Job, error) {
	return r.list(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE is_active = true
		 ORDER BY posted_date DESC, id DESC LIMIT $1`, limit)
}

// ListByEmployer は雇用者の全求人をposted_date降順で返す。
func (r *PostgresJobRepo) ListByEmployer(ctx context.Context, employerID string) ([]*model.Job, error) {
	return r.list(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE employer_id = $1
		 ORDER BY posted_date DESC, id DESC`, employerID)
}

func (r *PostgresJobRepo) list(ctx context.Context, query string, args ...any) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

// Create は求人を作成する。
func (r *PostgresJobRepo) Create(ctx context.Context, job *model.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		job.ID, job.EmployerID, job.Title, job.Company, job.Location, job.Salary,
		job.Description, pq.Array(job.Requirements), job.CompanyLogo, job.Type, job.ExperienceLevel,
		job.Remote, job.Category, job.Deadline, job.IsActive, nullableGUID(job.SourceGUID),
		job.PostedDate, job.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Update は求人を上書き更新する。
func (r *PostgresJobRepo) Update(ctx context.Context, job *model.Job) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET title = $2, company = $3, location = $4, salary = $5, description = $6,
		   requirements = $7, company_logo = $8, job_type = $9, experience_level = $10,
		   remote = $11, category = $12, deadline = $13, is_active = $14, updated_at = $15
		 WHERE id = $1`,
		job.ID, job.Title, job.Company, job.Location, job.Salary, job.Description,
		pq.Array(job.Requirements), job.CompanyLogo, job.Type, job.ExperienceLevel,
		job.Remote, job.Category, job.Deadline, job.IsActive, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
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

// Delete は指定IDの求人を削除する。関連する応募はCASCADE削除される。
func (r *PostgresJobRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
