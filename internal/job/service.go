// Package job は求人の掲載・管理とフィードからの取り込みを提供する。
package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/repository"
)

const (
	// DefaultListLimit は公開求人一覧の既定の件数。
	DefaultListLimit = 100

	defaultType            = "FULL_TIME"
	defaultExperienceLevel = "ENTRY"
	defaultCategory        = "Technology"
)

// JobTypes は雇用形態の選択肢。
var JobTypes = []string{"FULL_TIME", "PART_TIME", "CONTRACT", "FREELANCE", "INTERNSHIP"}

// ExperienceLevels は経験レベルの選択肢。
var ExperienceLevels = []string{"ENTRY", "JUNIOR", "MID", "SENIOR", "EXECUTIVE"}

// DefaultInput は求人投稿フォームの初期値を返す。
func DefaultInput() model.JobInput {
	return model.JobInput{
		Type:            defaultType,
		ExperienceLevel: defaultExperienceLevel,
		Category:        defaultCategory,
	}
}

// Sanitizer は求人テキストの無害化を行う。
type Sanitizer interface {
	Sanitize(rawHTML string) string
	StripTags(raw string) string
}

// Service は求人のビジネスロジックを提供する。
type Service struct {
	repo      repository.JobRepository
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.JobRepository, sanitizer Sanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// ListActive は掲載中の求人を新しい順に返す。
func (s *Service) ListActive(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	jobs, err := s.repo.ListActive(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Get は求人を取得する。掲載終了した求人も返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(id)
	}
	return job, nil
}

// GetOwned は雇用者本人が掲載した求人を取得する。
func (s *Service) GetOwned(ctx context.Context, employerID, id string) (*model.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.EmployerID != employerID {
		return nil, model.NewJobForbiddenError()
	}
	return job, nil
}

// ListByEmployer は雇用者が掲載した求人をすべて返す。
func (s *Service) ListByEmployer(ctx context.Context, employerID string) ([]*model.Job, error) {
	jobs, err := s.repo.ListByEmployer(ctx, employerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employer jobs: %w", err)
	}
	return jobs, nil
}

// Create は求人を掲載する。
func (s *Service) Create(ctx context.Context, employerID string, in model.JobInput) (*model.Job, error) {
	now := s.now()
	job := &model.Job{
		ID:         uuid.New().String(),
		EmployerID: employerID,
		IsActive:   true,
		PostedDate: now,
		UpdatedAt:  now,
	}
	if err := s.apply(job, in); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Update は雇用者本人の求人を更新する。掲載日は変更しない。
func (s *Service) Update(ctx context.Context, employerID, id string, in model.JobInput) (*model.Job, error) {
	job, err := s.GetOwned(ctx, employerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(job, in); err != nil {
		return nil, err
	}
	job.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return job, nil
}

// Delete は雇用者本人の求人を削除する。応募も合わせて削除される。
func (s *Service) Delete(ctx context.Context, employerID, id string) error {
	if _, err := s.GetOwned(ctx, employerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// apply は入力を正規化してjobに反映する。
func (s *Service) apply(job *model.Job, in model.JobInput) error {
	title := s.sanitizer.StripTags(in.Title)
	company := s.sanitizer.StripTags(in.Company)
	location := s.sanitizer.StripTags(in.Location)
	description := s.sanitizer.Sanitize(in.Description)

	switch {
	case title == "":
		return model.NewValidationError("title is required")
	case company == "":
		return model.NewValidationError("company is required")
	case location == "":
		return model.NewValidationError("location is required")
	case description == "":
		return model.NewValidationError("description is required")
	}

	job.Title = title
	job.Company = company
	job.Location = location
	job.Description = description
	job.Salary = strings.TrimSpace(in.Salary)
	job.Requirements = SplitRequirements(in.Requirements)
	job.CompanyLogo = strings.TrimSpace(in.CompanyLogo)
	job.Type = orDefault(in.Type, defaultType)
	job.ExperienceLevel = orDefault(in.ExperienceLevel, defaultExperienceLevel)
	job.Category = orDefault(in.Category, defaultCategory)
	job.Remote = in.Remote
	job.Deadline = in.Deadline
	if in.IsActive != nil {
		job.IsActive = *in.IsActive
	}
	return nil
}

// SplitRequirements は改行区切りの応募要件を1行1項目に分割する。空行は除く。
func SplitRequirements(text string) []string {
	var out []string
	for line := range strings.Lines(text) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
