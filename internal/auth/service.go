// Package auth はメールアドレスとパスワードによる認証、ログインセッションの発行、
// パスワード再設定を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/repository"
)

// SignOutScope はサインアウトで破棄するセッションの範囲。
type SignOutScope int

const (
	// ScopeLocal は現在のセッションのみを破棄する。
	ScopeLocal SignOutScope = iota
	// ScopeGlobal は同一ユーザーの全セッションを破棄する。
	ScopeGlobal
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge     time.Duration
	RecoveryTokenTTL  time.Duration
	MinPasswordLength int
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	credRepo     repository.CredentialRepository
	sessionRepo  repository.SessionRepository
	recoveryRepo repository.RecoveryTokenRepository
	hasher       PasswordHasher
	signer       *TokenSigner
	mailer       Mailer
	config       ServiceConfig
	now          func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	credRepo repository.CredentialRepository,
	sessionRepo repository.SessionRepository,
	recoveryRepo repository.RecoveryTokenRepository,
	hasher PasswordHasher,
	signer *TokenSigner,
	mailer Mailer,
	config ServiceConfig,
) *Service {
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 6
	}
	if config.RecoveryTokenTTL <= 0 {
		config.RecoveryTokenTTL = time.Hour
	}
	return &Service{
		credRepo:     credRepo,
		sessionRepo:  sessionRepo,
		recoveryRepo: recoveryRepo,
		hasher:       hasher,
		signer:       signer,
		mailer:       mailer,
		config:       config,
		now:          time.Now,
	}
}

// SignUp は認証主体を登録する。メタデータは登録時にのみ設定できる。
// 登録だけではセッションは発行しない。
func (s *Service) SignUp(ctx context.Context, email, password string, metadata model.Metadata) (*model.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < s.config.MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	cred := &model.Credential{
		Identity: model.Identity{
			ID:       uuid.New().String(),
			Email:    email,
			Metadata: cloneMetadata(metadata),
		},
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.credRepo.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	slog.Info("identity registered", slog.String("user_id", cred.ID))
	identity := cred.Identity
	return &identity, nil
}

// SignInWithPassword はメールアドレスとパスワードを検証してセッションを発行する。
// 未登録のメールアドレスとパスワード誤りは区別しない。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	cred, err := s.credRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(cred.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(ctx, cred.Identity)
	if err != nil {
		return nil, err
	}
	slog.Info("user signed in", slog.String("user_id", cred.ID))
	return session, nil
}

// GetSession はアクセストークンに対応する有効なセッションを返す。
// トークンが不正・期限切れ・失効済みの場合はnilを返す。
func (s *Service) GetSession(ctx context.Context, accessToken string) (*model.AuthSession, error) {
	if accessToken == "" {
		return nil, nil
	}
	claims, err := s.signer.Parse(accessToken)
	if err != nil {
		slog.Debug("access token rejected", slog.String("error", err.Error()))
		return nil, nil
	}

	row, err := s.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if row == nil || row.UserID != claims.UserID {
		return nil, nil
	}

	cred, err := s.credRepo.FindByID(ctx, row.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return nil, nil
	}

	return &model.AuthSession{
		ID:          row.ID,
		AccessToken: accessToken,
		Identity:    cred.Identity,
		ExpiresAt:   row.ExpiresAt,
		CreatedAt:   row.CreatedAt,
	}, nil
}

// SignOut はセッションを破棄する。トークンが不正な場合も成功として扱う。
func (s *Service) SignOut(ctx context.Context, accessToken string, scope SignOutScope) error {
	if accessToken == "" {
		return nil
	}
	claims, err := s.signer.Parse(accessToken)
	if err != nil {
		return nil
	}

	if scope == ScopeGlobal {
		if err := s.sessionRepo.DeleteByUserID(ctx, claims.UserID); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
	} else if err := s.sessionRepo.DeleteByID(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out",
		slog.String("user_id", claims.UserID),
		slog.Bool("global", scope == ScopeGlobal),
	)
	return nil
}

// ResetPasswordForEmail は一回限りの再設定トークンを発行し、
// redirectURLにtokenクエリを付与したリンクをMailerで送る。
// 未登録のメールアドレスでも成功を返す。
func (s *Service) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	link, err := url.Parse(redirectURL)
	if err != nil || !link.IsAbs() {
		return fmt.Errorf("invalid redirect url %q", redirectURL)
	}

	cred, err := s.credRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		slog.Info("password recovery requested for unknown email")
		return nil
	}

	raw, err := randomHex(32)
	if err != nil {
		return fmt.Errorf("failed to generate recovery token: %w", err)
	}
	now := s.now()
	token := &model.RecoveryToken{
		TokenHash: hashToken(raw),
		UserID:    cred.ID,
		ExpiresAt: now.Add(s.config.RecoveryTokenTTL),
		CreatedAt: now,
	}
	if err := s.recoveryRepo.Create(ctx, token); err != nil {
		return fmt.Errorf("failed to save recovery token: %w", err)
	}

	q := link.Query()
	q.Set("token", raw)
	link.RawQuery = q.Encode()

	if err := s.mailer.SendRecoveryLink(ctx, cred.Email, link.String()); err != nil {
		return fmt.Errorf("failed to send recovery link: %w", err)
	}
	return nil
}

// VerifyRecovery は再設定トークンを消費し、そのユーザーのセッションを発行する。
func (s *Service) VerifyRecovery(ctx context.Context, rawToken string) (*model.AuthSession, error) {
	if rawToken == "" {
		return nil, ErrInvalidRecoveryToken
	}
	token, err := s.recoveryRepo.Consume(ctx, hashToken(rawToken))
	if err != nil {
		return nil, fmt.Errorf("failed to consume recovery token: %w", err)
	}
	if token == nil {
		return nil, ErrInvalidRecoveryToken
	}

	cred, err := s.credRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return nil, ErrInvalidRecoveryToken
	}

	return s.issueSession(ctx, cred.Identity)
}

// UpdatePassword は有効なセッションの持ち主のパスワードを変更する。
func (s *Service) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	session, err := s.GetSession(ctx, accessToken)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionMissing
	}
	if len(newPassword) < s.config.MinPasswordLength {
		return ErrWeakPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.credRepo.UpdatePassword(ctx, session.Identity.ID, hash, s.now()); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password updated", slog.String("user_id", session.Identity.ID))
	return nil
}

// issueSession はセッション行を作成し、対応するアクセストークンを発行する。
func (s *Service) issueSession(ctx context.Context, identity model.Identity) (*model.AuthSession, error) {
	sessionID, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	row := &model.Session{
		ID:        sessionID,
		UserID:    identity.ID,
		ExpiresAt: now.Add(s.config.SessionMaxAge),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	token, err := s.signer.Sign(row.ID, identity.ID, now, row.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &model.AuthSession{
		ID:          row.ID,
		AccessToken: token,
		Identity:    identity,
		ExpiresAt:   row.ExpiresAt,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func cloneMetadata(m model.Metadata) model.Metadata {
	out := make(model.Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// randomHex は暗号的に安全なランダム文字列を生成する。
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
