package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/jobboard/internal/appstate"
	"github.com/hitoshi/jobboard/internal/auth"
	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
)

// UnexpectedErrorMessage は認証エラー以外の失敗時に利用者へ表示するメッセージ。
const UnexpectedErrorMessage = "An unexpected error occurred"

// Result はUI層に返す操作結果。Errorはそのまま表示できる文言。
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AuthClient はAuthが利用するセッションハンドルの操作。
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error)
	SignUp(ctx context.Context, email, password string, metadata model.Metadata) (*model.Identity, error)
	SignOut(ctx context.Context) error
	SignOutEverywhere(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	VerifyRecovery(ctx context.Context, token string) (*model.AuthSession, error)
	UpdatePassword(ctx context.Context, newPassword string) error
}

// ProfileCreator はサインアップ直後のプロフィール作成を行う。
type ProfileCreator interface {
	Create(ctx context.Context, identity model.Identity) (model.UserRecord, error)
}

// Auth はUI層に公開する認証操作。
// 各操作は処理中フラグを立て、結果に関わらず終了時に必ず下ろす。
type Auth struct {
	client  AuthClient
	boot    *Bootstrapper
	store   *appstate.Store
	creator ProfileCreator
	metrics metrics.MetricsCollector
}

// NewAuth はAuthを生成する。
func NewAuth(client AuthClient, boot *Bootstrapper, store *appstate.Store, creator ProfileCreator, mc metrics.MetricsCollector) *Auth {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Auth{
		client:  client,
		boot:    boot,
		store:   store,
		creator: creator,
		metrics: mc,
	}
}

// SignIn は既存のセッションを破棄してからサインインする。
// 成功時はプロフィール解決が反映されるまで待って戻る。
func (a *Auth) SignIn(ctx context.Context, email, password string) Result {
	a.store.SetLoading(true)
	defer a.store.SetLoading(false)

	a.discardSession(ctx)

	if _, err := a.client.SignInWithPassword(ctx, email, password); err != nil {
		a.metrics.RecordSignIn(outcomeOf(err))
		return failure("sign in", err)
	}
	a.metrics.RecordSignIn(metrics.OutcomeSuccess)

	a.settle(ctx)
	return Result{Success: true}
}

// SignUp は既存のセッションを破棄してから、氏名と希望ロールをメタデータとして登録する。
// 登録後すぐにプロフィールの作成を試み、失敗はログに記録するだけにとどめる。
func (a *Auth) SignUp(ctx context.Context, email, password, name string, role model.Role) Result {
	a.store.SetLoading(true)
	defer a.store.SetLoading(false)

	a.discardSession(ctx)

	identity, err := a.client.SignUp(ctx, email, password, model.Metadata{
		model.MetadataFullName:      name,
		model.MetadataPreferredRole: string(role),
	})
	if err != nil {
		a.metrics.RecordSignUp(outcomeOf(err))
		return failure("sign up", err)
	}
	a.metrics.RecordSignUp(metrics.OutcomeSuccess)

	if _, err := a.creator.Create(ctx, *identity); err != nil {
		slog.Error("failed to create profile during sign-up",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
	}

	a.settle(ctx)
	return Result{Success: true}
}

// SignOut は現在のセッションを破棄する。
func (a *Auth) SignOut(ctx context.Context) Result {
	return a.signOut(ctx, a.client.SignOut)
}

// SignOutEverywhere は同一ユーザーの全セッションを破棄する。
func (a *Auth) SignOutEverywhere(ctx context.Context) Result {
	return a.signOut(ctx, a.client.SignOutEverywhere)
}

func (a *Auth) signOut(ctx context.Context, fn func(context.Context) error) Result {
	a.store.SetLoading(true)
	defer a.store.SetLoading(false)

	err := fn(ctx)
	a.settle(ctx)
	if err != nil {
		return failure("sign out", err)
	}
	return Result{Success: true}
}

// PrepareEntry はログイン・登録フォームの表示時に呼ばれ、既存のセッションを必ず破棄する。
// 戻った時点で状態は未認証になっている。
func (a *Auth) PrepareEntry(ctx context.Context) {
	a.discardSession(ctx)
	a.settle(ctx)
}

// RequestPasswordReset はパスワード再設定リンクの送信を依頼する。
func (a *Auth) RequestPasswordReset(ctx context.Context, email, redirectURL string) Result {
	a.store.SetLoading(true)
	defer a.store.SetLoading(false)

	if err := a.client.ResetPasswordForEmail(ctx, email, redirectURL); err != nil {
		return failure("password reset request", err)
	}
	return Result{Success: true}
}

// CompleteRecovery は再設定リンクのトークンでサインインする。
func (a *Auth) CompleteRecovery(ctx context.Context, token string) Result {
	a.store.SetLoading(true)
	defer a.store.SetLoading(false)

	if _, err := a.client.VerifyRecovery(ctx, token); err != nil {
		return failure("password recovery", err)
	}
	a.settle(ctx)
	return Result{Success: true}
}

// UpdatePassword は現在のユーザーのパスワードを変更する。
func (a *Auth) UpdatePassword(ctx context.Context, newPassword string) Result {
	a.store.SetLoading(true)
	defer a.store.SetLoading(false)

	if err := a.client.UpdatePassword(ctx, newPassword); err != nil {
		return failure("password update", err)
	}
	return Result{Success: true}
}

func (a *Auth) discardSession(ctx context.Context) {
	if err := a.client.SignOut(ctx); err != nil {
		slog.Warn("failed to discard previous session", slog.String("error", err.Error()))
	}
}

func (a *Auth) settle(ctx context.Context) {
	if err := a.boot.Settle(ctx); err != nil {
		slog.Warn("session state did not settle", slog.String("error", err.Error()))
	}
}

// failure は認証エラーをそのまま、それ以外を汎用メッセージとして返す。
func failure(op string, err error) Result {
	var credErr *auth.CredentialError
	if errors.As(err, &credErr) {
		return Result{Success: false, Error: credErr.Message}
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	return Result{Success: false, Error: UnexpectedErrorMessage}
}

func outcomeOf(err error) string {
	var credErr *auth.CredentialError
	if errors.As(err, &credErr) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeUnexpected
}
