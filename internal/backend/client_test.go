package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/jobboard/internal/auth"
	"github.com/hitoshi/jobboard/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	signInFn         func(ctx context.Context, email, password string) (*model.AuthSession, error)
	signUpFn         func(ctx context.Context, email, password string, metadata model.Metadata) (*model.Identity, error)
	getSessionFn     func(ctx context.Context, accessToken string) (*model.AuthSession, error)
	signOutFn        func(ctx context.Context, accessToken string, scope auth.SignOutScope) error
	resetFn          func(ctx context.Context, email, redirectURL string) error
	verifyFn         func(ctx context.Context, token string) (*model.AuthSession, error)
	updatePasswordFn func(ctx context.Context, accessToken, newPassword string) error
}

func (m *mockAuthService) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, auth.ErrInvalidCredentials
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string, metadata model.Metadata) (*model.Identity, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, metadata)
	}
	return &model.Identity{ID: "u1", Email: email, Metadata: metadata}, nil
}

func (m *mockAuthService) GetSession(ctx context.Context, accessToken string) (*model.AuthSession, error) {
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, accessToken)
	}
	return nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, accessToken string, scope auth.SignOutScope) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken, scope)
	}
	return nil
}

func (m *mockAuthService) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	if m.resetFn != nil {
		return m.resetFn(ctx, email, redirectURL)
	}
	return nil
}

func (m *mockAuthService) VerifyRecovery(ctx context.Context, token string) (*model.AuthSession, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return nil, auth.ErrInvalidRecoveryToken
}

func (m *mockAuthService) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, accessToken, newPassword)
	}
	return nil
}

var _ AuthService = (*mockAuthService)(nil)
var _ AuthService = (*auth.Service)(nil)

func testSession(token string) *model.AuthSession {
	return &model.AuthSession{
		ID:          "sid-" + token,
		AccessToken: token,
		Identity:    model.Identity{ID: "u1", Email: "jane@x.com"},
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func receive(t *testing.T, ch <-chan AuthEvent) AuthEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for auth event")
		return AuthEvent{}
	}
}

// --- テスト ---

func TestSignInWithPassword_EmitsSignedIn(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(_ context.Context, _, _ string) (*model.AuthSession, error) {
			return testSession("tok-1"), nil
		},
	}
	c := NewClient(svc)
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	if _, err := c.SignInWithPassword(context.Background(), "jane@x.com", "secret123"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}

	ev := receive(t, events)
	if ev.Type != EventSignedIn || ev.Session == nil || ev.Session.AccessToken != "tok-1" {
		t.Errorf("event = %+v", ev)
	}
	if c.AccessToken() != "tok-1" {
		t.Errorf("AccessToken = %q", c.AccessToken())
	}
}

func TestSignInWithPassword_Failure_EmitsNothing(t *testing.T) {
	c := NewClient(&mockAuthService{})
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	_, err := c.SignInWithPassword(context.Background(), "jane@x.com", "wrong")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected event %+v", ev)
	default:
	}
}

func TestSignOut_WithoutSession_StillEmitsSignedOut(t *testing.T) {
	var gotToken = "unset"
	svc := &mockAuthService{
		signOutFn: func(_ context.Context, token string, _ auth.SignOutScope) error {
			gotToken = token
			return nil
		},
	}
	c := NewClient(svc)
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if gotToken != "" {
		t.Errorf("token passed to SignOut = %q, want empty", gotToken)
	}
	if ev := receive(t, events); ev.Type != EventSignedOut || ev.Session != nil {
		t.Errorf("event = %+v", ev)
	}
}

func TestSignOut_ServiceFailure_ClearsLocalSession(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(_ context.Context, _, _ string) (*model.AuthSession, error) {
			return testSession("tok-1"), nil
		},
		signOutFn: func(context.Context, string, auth.SignOutScope) error {
			return errors.New("db down")
		},
	}
	c := NewClient(svc)
	c.SignInWithPassword(context.Background(), "jane@x.com", "secret123")

	if err := c.SignOut(context.Background()); err == nil {
		t.Error("expected error from SignOut")
	}
	if c.AccessToken() != "" {
		t.Error("local session should be cleared even when revocation fails")
	}
}

func TestSignOutEverywhere_UsesGlobalScope(t *testing.T) {
	var gotScope auth.SignOutScope
	svc := &mockAuthService{
		signOutFn: func(_ context.Context, _ string, scope auth.SignOutScope) error {
			gotScope = scope
			return nil
		},
	}
	c := NewClient(svc)
	if err := c.SignOutEverywhere(context.Background()); err != nil {
		t.Fatalf("SignOutEverywhere: %v", err)
	}
	if gotScope != auth.ScopeGlobal {
		t.Errorf("scope = %v, want ScopeGlobal", gotScope)
	}
}

func TestRestore_DoesNotEmit(t *testing.T) {
	svc := &mockAuthService{
		getSessionFn: func(_ context.Context, token string) (*model.AuthSession, error) {
			if token == "tok-1" {
				return testSession(token), nil
			}
			return nil, nil
		},
	}
	c := NewClient(svc)
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	if err := c.Restore(context.Background(), "tok-1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	select {
	case ev := <-events:
		t.Errorf("Restore must not emit, got %+v", ev)
	default:
	}

	session, err := c.GetCurrentSession(context.Background())
	if err != nil || session == nil {
		t.Fatalf("GetCurrentSession = %v, %v", session, err)
	}
}

func TestGetCurrentSession_RevokedSession_ReturnsNil(t *testing.T) {
	revoked := false
	svc := &mockAuthService{
		getSessionFn: func(_ context.Context, token string) (*model.AuthSession, error) {
			if revoked {
				return nil, nil
			}
			return testSession(token), nil
		},
	}
	c := NewClient(svc)
	c.Restore(context.Background(), "tok-1")
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	revoked = true
	session, err := c.GetCurrentSession(context.Background())
	if err != nil || session != nil {
		t.Errorf("GetCurrentSession = %v, %v; want nil, nil", session, err)
	}
	if c.AccessToken() != "" {
		t.Error("revoked session should be dropped locally")
	}
	if ev := receive(t, events); ev.Type != EventSignedOut || ev.Session != nil {
		t.Errorf("event = %+v, want signed-out without session", ev)
	}
}

func TestGetCurrentSession_BackendError_KeepsSession(t *testing.T) {
	failing := false
	svc := &mockAuthService{
		getSessionFn: func(_ context.Context, token string) (*model.AuthSession, error) {
			if failing {
				return nil, errors.New("connection refused")
			}
			return testSession(token), nil
		},
	}
	c := NewClient(svc)
	c.Restore(context.Background(), "tok-1")
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	failing = true
	if _, err := c.GetCurrentSession(context.Background()); err == nil {
		t.Fatal("expected backend error")
	}
	if c.CachedSession() == nil || c.AccessToken() != "tok-1" {
		t.Error("a failed lookup must not drop the session")
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected event %+v", ev)
	default:
	}
}

func TestUnsubscribe_ClosesChannelAndIsIdempotent(t *testing.T) {
	c := NewClient(&mockAuthService{})
	events, unsubscribe := c.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-events; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut after unsubscribe: %v", err)
	}
}

func TestSlowSubscriber_DoesNotBlockEmitter(t *testing.T) {
	c := NewClient(&mockAuthService{})
	_, unsubscribe := c.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			c.SignOut(context.Background())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitter blocked on a subscriber that never reads")
	}
}

func TestSlowSubscriber_KeepsLatestEvent(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(_ context.Context, _, _ string) (*model.AuthSession, error) {
			return testSession("tok-1"), nil
		},
	}
	c := NewClient(svc)
	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer; i++ {
		c.SignInWithPassword(context.Background(), "jane@x.com", "secret1")
	}
	c.SignOut(context.Background())

	var last AuthEvent
	n := 0
	for {
		select {
		case ev := <-events:
			last = ev
			n++
			continue
		default:
		}
		break
	}
	if n != subscriberBuffer {
		t.Errorf("buffered events = %d, want %d", n, subscriberBuffer)
	}
	if last.Type != EventSignedOut {
		t.Errorf("last event = %q, want signed-out", last.Type)
	}
}

func TestUpdatePassword_PassesCurrentToken(t *testing.T) {
	var gotToken string
	svc := &mockAuthService{
		verifyFn: func(_ context.Context, _ string) (*model.AuthSession, error) {
			return testSession("tok-recover"), nil
		},
		updatePasswordFn: func(_ context.Context, token, _ string) error {
			gotToken = token
			return nil
		},
	}
	c := NewClient(svc)
	if _, err := c.VerifyRecovery(context.Background(), "raw"); err != nil {
		t.Fatalf("VerifyRecovery: %v", err)
	}
	if err := c.UpdatePassword(context.Background(), "new-secret"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if gotToken != "tok-recover" {
		t.Errorf("token = %q, want tok-recover", gotToken)
	}
}
