// Package application は求人への応募と選考状態の管理を提供する。
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/repository"
)

// Service は応募のビジネスロジックを提供する。
type Service struct {
	apps repository.ApplicationRepository
	jobs repository.JobRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(apps repository.ApplicationRepository, jobs repository.JobRepository) *Service {
	return &Service{apps: apps, jobs: jobs, now: time.Now}
}

// Submit は求人に応募する。掲載中の求人にのみ応募でき、同じ求人への応募は1回まで。
func (s *Service) Submit(ctx context.Context, userID, jobID, resume, coverLetter string) (*model.Application, error) {
	resume = strings.TrimSpace(resume)
	if resume == "" {
		return nil, model.NewValidationError("Please upload your resume before submitting")
	}

	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(jobID)
	}
	if !job.IsActive {
		return nil, model.NewJobInactiveError()
	}

	exists, err := s.apps.ExistsByUserAndJob(ctx, userID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing application: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateApplicationError()
	}

	now := s.now()
	app := &model.Application{
		ID:          uuid.New().String(),
		JobID:       jobID,
		UserID:      userID,
		Status:      model.ApplicationPending,
		Resume:      resume,
		CoverLetter: strings.TrimSpace(coverLetter),
		AppliedDate: now,
		UpdatedAt:   now,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		// 確認と作成の間に別のリクエストが応募した場合
		if errors.Is(err, repository.ErrConflict) {
			return nil, model.NewDuplicateApplicationError()
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	slog.Info("application submitted",
		slog.String("application_id", app.ID),
		slog.String("job_id", jobID),
		slog.String("user_id", userID),
	)
	return app, nil
}

// ListFor はユーザーのロールに応じた応募一覧を返す。
// 求職者は自分の応募、雇用者は自社求人への応募、管理者はすべての応募を見る。
func (s *Service) ListFor(ctx context.Context, user model.UserRecord) ([]model.ApplicationWithJob, error) {
	var (
		apps []model.ApplicationWithJob
		err  error
	)
	switch user.Role {
	case model.RoleEmployer:
		apps, err = s.apps.ListByEmployer(ctx, user.ID)
	case model.RoleAdmin:
		apps, err = s.apps.ListAll(ctx)
	default:
		apps, err = s.apps.ListByUser(ctx, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	if apps == nil {
		apps = []model.ApplicationWithJob{}
	}
	return apps, nil
}

// UpdateStatus は応募の選考状態を変更する。変更できるのは求人を掲載した雇用者のみ。
func (s *Service) UpdateStatus(ctx context.Context, employerID, applicationID, status string) (*model.ApplicationWithJob, error) {
	next, ok := model.ParseApplicationStatus(status)
	if !ok {
		return nil, model.NewInvalidStatusError(status)
	}

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	if app == nil {
		return nil, model.NewApplicationNotFoundError(applicationID)
	}
	if app.EmployerID != employerID {
		return nil, model.NewApplicationForbiddenError()
	}

	now := s.now()
	if err := s.apps.UpdateStatus(ctx, applicationID, next, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewApplicationNotFoundError(applicationID)
		}
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}

	app.Status = next
	app.UpdatedAt = now
	return app, nil
}
