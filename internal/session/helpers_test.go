package session

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/jobboard/internal/auth"
	"github.com/hitoshi/jobboard/internal/backend"
	"github.com/hitoshi/jobboard/internal/model"
)

// --- モック定義 ---

// fakeSource はイベントを手動で発行できるSessionSource。
type fakeSource struct {
	mu           sync.Mutex
	calls        []string
	current      *model.AuthSession
	currentErr   error
	events       chan backend.AuthEvent
	unsubscribed bool
}

func newFakeSource(current *model.AuthSession) *fakeSource {
	return &fakeSource{current: current, events: make(chan backend.AuthEvent, 16)}
}

func (f *fakeSource) GetCurrentSession(context.Context) (*model.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get")
	return f.current, f.currentErr
}

func (f *fakeSource) Subscribe() (<-chan backend.AuthEvent, backend.Unsubscribe) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "subscribe")
	return f.events, func() {
		f.mu.Lock()
		f.unsubscribed = true
		f.mu.Unlock()
	}
}

func (f *fakeSource) emit(ev backend.AuthEvent) {
	f.events <- ev
}

func (f *fakeSource) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeResolver はIdentityごとに応答と遅延を設定できるProfileResolver。
type fakeResolver struct {
	mu      sync.Mutex
	calls   []string
	records map[string]model.UserRecord
	gates   map[string]chan struct{}
	entered chan string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		records: make(map[string]model.UserRecord),
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
	}
}

// hold は指定Identityの解決を、返されたチャネルが閉じられるまで止める。
func (f *fakeResolver) hold(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[id] = gate
	return gate
}

func (f *fakeResolver) Resolve(_ context.Context, identity model.Identity) model.UserRecord {
	f.mu.Lock()
	f.calls = append(f.calls, identity.ID)
	gate := f.gates[identity.ID]
	rec, ok := f.records[identity.ID]
	f.mu.Unlock()

	f.entered <- identity.ID
	if gate != nil {
		<-gate
	}
	if !ok {
		rec = model.UserRecord{ID: identity.ID, Name: identity.LocalPart(), Email: identity.Email, Role: model.RoleJobseeker}
	}
	return rec
}

func (f *fakeResolver) Create(_ context.Context, identity model.Identity) (model.UserRecord, error) {
	return model.UserRecord{ID: identity.ID, Name: identity.Metadata.FullName(), Email: identity.Email, Role: identity.Metadata.PreferredRole()}, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// mockAuthService はbackend.AuthServiceの関数フィールド実装。
type mockAuthService struct {
	mu               sync.Mutex
	signOutCalls     int
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
	return &model.Identity{ID: "new-user", Email: email, Metadata: metadata}, nil
}

func (m *mockAuthService) GetSession(ctx context.Context, accessToken string) (*model.AuthSession, error) {
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, accessToken)
	}
	return nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, accessToken string, scope auth.SignOutScope) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()
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

func (m *mockAuthService) signOutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutCalls
}

var (
	_ SessionSource       = (*fakeSource)(nil)
	_ ResolverCreator     = (*fakeResolver)(nil)
	_ backend.AuthService = (*mockAuthService)(nil)
	_ AuthClient          = (*backend.Client)(nil)
	_ SessionSource       = (*backend.Client)(nil)
)

func sessionFor(id, email string) *model.AuthSession {
	return &model.AuthSession{
		ID:          "sid-" + id,
		AccessToken: "tok-" + id,
		Identity:    model.Identity{ID: id, Email: email},
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func testCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
