// Package admin は管理者向けの利用者管理と求人の掲載管理を提供する。
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ProfileUpdater はプロフィールの部分更新を行う。roleの検証は実装側で行う。
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) error
}

// LiveWorkspaces は利用中のクライアントワークスペースに変更を届ける。
type LiveWorkspaces interface {
	ApplyProfile(userID string, patch model.ProfilePatch) int
	RevalidateUser(ctx context.Context, userID string) int
}

// UserSummary は管理画面の利用者一覧の1行。
type UserSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserPage は利用者一覧の1ページ。pageは0始まり。
type UserPage struct {
	Users []UserSummary `json:"users"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int           `json:"total"`
}

// Service は管理者操作のビジネスロジックを提供する。
type Service struct {
	directory   repository.ProfileDirectory
	profiles    ProfileUpdater
	credentials repository.CredentialRepository
	jobs        repository.JobRepository
	live        LiveWorkspaces
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	directory repository.ProfileDirectory,
	profiles ProfileUpdater,
	credentials repository.CredentialRepository,
	jobs repository.JobRepository,
	live LiveWorkspaces,
) *Service {
	return &Service{
		directory:   directory,
		profiles:    profiles,
		credentials: credentials,
		jobs:        jobs,
		live:        live,
		now:         time.Now,
	}
}

// ListUsers は利用者をcreated_at降順でページ単位に返す。
// sizeが0以下の場合は20件、上限は100件。
func (s *Service) ListUsers(ctx context.Context, page, size int) (*UserPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	total, err := s.directory.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	profiles, err := s.directory.List(ctx, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]UserSummary, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, UserSummary{
			ID:        p.ID,
			Name:      p.FullName,
			Email:     p.Email,
			Role:      model.NormalizeRole(string(p.Role)),
			CreatedAt: p.CreatedAt,
		})
	}
	return &UserPage{Users: users, Page: page, Size: size, Total: total}, nil
}

// UpdateUser は利用者の表示名またはロールを変更し、
// 対象者がサインイン中のワークスペースにも即座に反映する。
func (s *Service) UpdateUser(ctx context.Context, userID string, patch model.ProfilePatch) error {
	if err := s.profiles.UpdateProfile(ctx, userID, patch); err != nil {
		return err
	}

	n := s.live.ApplyProfile(userID, patch)
	attrs := []any{slog.String("user_id", userID), slog.Int("live_workspaces", n)}
	if patch.Role != nil {
		attrs = append(attrs, slog.String("role", string(*patch.Role)))
	}
	slog.Info("profile updated by admin", attrs...)
	return nil
}

// ModerateJob は求人の掲載状態を切り替える。
func (s *Service) ModerateJob(ctx context.Context, jobID string, active bool) (*model.Job, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(jobID)
	}

	job.IsActive = active
	job.UpdatedAt = s.now()
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	slog.Info("job moderated",
		slog.String("job_id", jobID),
		slog.Bool("active", active),
	)
	return job, nil
}

// BanUser は利用者を削除する。セッション・プロフィール・求人・応募も削除され、
// サインイン中のワークスペースはサインアウト状態になる。自分自身は削除できない。
func (s *Service) BanUser(ctx context.Context, adminID, userID string) error {
	if userID == adminID {
		return model.NewValidationError("You cannot ban your own account")
	}

	if err := s.credentials.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError(userID)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	n := s.live.RevalidateUser(ctx, userID)
	slog.Info("user banned",
		slog.String("user_id", userID),
		slog.String("admin_id", adminID),
		slog.Int("live_workspaces", n),
	)
	return nil
}
