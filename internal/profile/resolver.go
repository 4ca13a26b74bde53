// Package profile は認証主体からアプリケーション用のユーザー情報を解決する。
// プロフィール行は初回解決時に遅延作成される。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/repository"
)

// defaultName はメールアドレスからも名前を導けない場合の表示名。
const defaultName = "User"

// Resolver はIdentityに対応するプロフィールを取得または作成し、UserRecordを導出する。
type Resolver struct {
	store   repository.ProfileRepository
	metrics metrics.MetricsCollector
	group   singleflight.Group
	now     func() time.Time
}

// NewResolver はResolverを生成する。mcがnilの場合はメトリクスを記録しない。
func NewResolver(store repository.ProfileRepository, mc metrics.MetricsCollector) *Resolver {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Resolver{
		store:   store,
		metrics: mc,
		now:     time.Now,
	}
}

// Resolve はIdentityのUserRecordを返す。失敗は返さない。
// プロフィールの取得・作成に失敗した場合は縮退レコードを返し、ログに記録する。
// 同じIdentityに対する同時解決は1回のストア往復に集約される。
func (r *Resolver) Resolve(ctx context.Context, identity model.Identity) model.UserRecord {
	// 先行した呼び出し元のキャンセルが相乗りした呼び出し元に波及しないようにする
	shared := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do(identity.ID, func() (any, error) {
		return r.resolve(shared, identity), nil
	})
	return v.(model.UserRecord)
}

func (r *Resolver) resolve(ctx context.Context, identity model.Identity) model.UserRecord {
	p, err := r.store.FindByID(ctx, identity.ID)
	if err == nil {
		r.metrics.RecordProfileResolution(metrics.ResolutionFound)
		return toUserRecord(p, identity)
	}

	if !errors.Is(err, repository.ErrNotFound) {
		slog.Error("profile lookup failed, using fallback record",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return r.fallback(identity)
	}

	rec, err := r.Create(ctx, identity)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, repository.ErrConflict) {
			// 並行するセッションが先に作成した
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "profile creation failed, using fallback record",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return r.fallback(identity)
	}

	r.metrics.RecordProfileResolution(metrics.ResolutionCreated)
	slog.Info("profile created", slog.String("user_id", identity.ID), slog.String("role", string(rec.Role)))
	return rec
}

// Create はIdentityのプロフィール行を作成してUserRecordを返す。
// 挿入に失敗した場合は再試行せずエラーを返す。
// 既に行が存在する場合のエラーはrepository.ErrConflictをラップする。
func (r *Resolver) Create(ctx context.Context, identity model.Identity) (model.UserRecord, error) {
	now := r.now()
	p := &model.Profile{
		ID:        identity.ID,
		FullName:  initialName(identity),
		Email:     identity.Email,
		Role:      identity.Metadata.PreferredRole(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Insert(ctx, p); err != nil {
		return model.UserRecord{}, fmt.Errorf("failed to insert profile: %w", err)
	}
	return toUserRecord(p, identity), nil
}

// UpdateProfile はプロフィールを部分更新する。roleは境界で検証する。
func (r *Resolver) UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) error {
	if patch.Role != nil && !patch.Role.Valid() {
		return model.NewInvalidRoleError(string(*patch.Role))
	}
	if err := r.store.Update(ctx, id, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewProfileNotFoundError()
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// fallback はIdentityのみから縮退レコードを作る。
func (r *Resolver) fallback(identity model.Identity) model.UserRecord {
	r.metrics.RecordProfileResolution(metrics.ResolutionFallback)
	name := identity.LocalPart()
	if name == "" {
		name = defaultName
	}
	return model.UserRecord{
		ID:    identity.ID,
		Name:  name,
		Email: identity.Email,
		Role:  model.RoleJobseeker,
	}
}

func initialName(identity model.Identity) string {
	if name := identity.Metadata.FullName(); name != "" {
		return name
	}
	if local := identity.LocalPart(); local != "" {
		return local
	}
	return defaultName
}

// toUserRecord は保存値のroleを正規化してUserRecordを作る。
// 名前が空の場合はメールアドレスのローカル部、それもなければdefaultNameを使う。
// メールアドレスは認証主体のものを優先する。
func toUserRecord(p *model.Profile, identity model.Identity) model.UserRecord {
	name := p.FullName
	if name == "" {
		name = identity.LocalPart()
	}
	if name == "" {
		name = defaultName
	}
	email := identity.Email
	if email == "" {
		email = p.Email
	}
	return model.UserRecord{
		ID:    p.ID,
		Name:  name,
		Email: email,
		Role:  model.NormalizeRole(string(p.Role)),
	}
}
