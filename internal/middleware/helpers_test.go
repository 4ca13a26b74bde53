package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/jobboard/internal/auth"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/session"
)

// fakeAuthService はアクセストークンとセッションの対応だけを持つ認証サービス。
type fakeAuthService struct {
	mu       sync.Mutex
	sessions map[string]*model.AuthSession
}

func newFakeAuthService() *fakeAuthService {
	return &fakeAuthService{sessions: make(map[string]*model.AuthSession)}
}

func (f *fakeAuthService) add(token string, identity model.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[token] = &model.AuthSession{
		ID:          "sess-" + token,
		AccessToken: token,
		Identity:    identity,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func (f *fakeAuthService) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.Identity.Email == email && password == "correct-password" {
			return s, nil
		}
	}
	return nil, auth.ErrInvalidCredentials
}

func (f *fakeAuthService) SignUp(ctx context.Context, email, password string, metadata model.Metadata) (*model.Identity, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAuthService) GetSession(ctx context.Context, accessToken string) (*model.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[accessToken]
	if !ok {
		return nil, auth.ErrSessionMissing
	}
	return s, nil
}

func (f *fakeAuthService) SignOut(ctx context.Context, accessToken string, scope auth.SignOutScope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, accessToken)
	return nil
}

func (f *fakeAuthService) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return nil
}

func (f *fakeAuthService) VerifyRecovery(ctx context.Context, token string) (*model.AuthSession, error) {
	return nil, auth.ErrInvalidRecoveryToken
}

func (f *fakeAuthService) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	return nil
}

// fakeProfiles はメタデータのpreferred_roleをそのままロールにする。
type fakeProfiles struct{}

func (fakeProfiles) Resolve(ctx context.Context, identity model.Identity) model.UserRecord {
	return model.UserRecord{
		ID:    identity.ID,
		Name:  identity.Metadata.FullName(),
		Email: identity.Email,
		Role:  identity.Metadata.PreferredRole(),
	}
}

func (p fakeProfiles) Create(ctx context.Context, identity model.Identity) (model.UserRecord, error) {
	return p.Resolve(ctx, identity), nil
}

func newTestManager(t *testing.T, svc *fakeAuthService) *session.Manager {
	t.Helper()
	m := session.NewManager(svc, fakeProfiles{}, session.ManagerConfig{}, nil)
	t.Cleanup(m.Close)
	return m
}

func employerIdentity() model.Identity {
	return model.Identity{
		ID:    "emp-1",
		Email: "boss@acme.example",
		Metadata: model.Metadata{
			model.MetadataFullName:      "Acme Boss",
			model.MetadataPreferredRole: "employer",
		},
	}
}
