package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/jobboard/internal/appstate"
	"github.com/hitoshi/jobboard/internal/backend"
	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
)

// Workspace はブラウザ1つ分のクライアント状態。
// セッションハンドル、Bootstrapper、状態ストアを1組ずつ持つ。
type Workspace struct {
	ID     string
	Client *backend.Client
	Boot   *Bootstrapper
	Store  *appstate.Store
	Auth   *Auth

	mu          sync.Mutex
	lastSeen    time.Time
	validatedAt time.Time
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// revalidationDue はバックエンドへの再確認が必要かを判定し、必要なら確認時刻を記録する。
// 保持中のセッションが有効期限を過ぎている場合は間隔に関係なく再確認する。
func (w *Workspace) revalidationDue(now time.Time, interval time.Duration) bool {
	current := w.Client.CachedSession()
	if current == nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !current.Expired(now) && now.Sub(w.validatedAt) < interval {
		return false
	}
	w.validatedAt = now
	return true
}

// userID は認証済みの場合にユーザーIDを返す。
func (w *Workspace) userID() string {
	snap := w.Store.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil {
		return ""
	}
	return snap.User.ID
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// ResolverCreator はプロフィールの解決と作成の両方を行う。
type ResolverCreator interface {
	ProfileResolver
	ProfileCreator
}

// ManagerConfig はワークスペース管理の設定。
type ManagerConfig struct {
	IdleTTL            time.Duration // 最終アクセスからこの時間を過ぎたワークスペースを破棄する
	CleanupInterval    time.Duration
	RevalidateInterval time.Duration // 保持中のセッションをバックエンドに再確認する間隔
}

// Manager はclient_idをキーにワークスペースを保持する。
// ワークスペースの生成がクライアントアプリケーションの起動にあたる。
type Manager struct {
	authSvc  backend.AuthService
	profiles ResolverCreator
	metrics  metrics.MetricsCollector
	config   ManagerConfig

	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.RWMutex
	workspaces map[string]*Workspace
	group      singleflight.Group

	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewManager はManagerを生成し、アイドルなワークスペースの掃除を開始する。
func NewManager(authSvc backend.AuthService, profiles ResolverCreator, config ManagerConfig, mc metrics.MetricsCollector) *Manager {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 30 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.RevalidateInterval <= 0 {
		config.RevalidateInterval = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		authSvc:    authSvc,
		profiles:   profiles,
		metrics:    mc,
		config:     config,
		baseCtx:    ctx,
		cancel:     cancel,
		workspaces: make(map[string]*Workspace),
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}

	go m.cleanupLoop()

	return m
}

// Get はclientIDのワークスペースを返す。存在しない場合は生成して起動する。
// accessTokenはクライアントが保存していたトークンで、生成時のセッション復元にのみ使う。
func (m *Manager) Get(ctx context.Context, clientID, accessToken string) (*Workspace, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	m.mu.RLock()
	ws, ok := m.workspaces[clientID]
	m.mu.RUnlock()
	if ok {
		m.refresh(ctx, ws)
		return ws, nil
	}

	v, err, _ := m.group.Do(clientID, func() (any, error) {
		m.mu.RLock()
		existing, ok := m.workspaces[clientID]
		m.mu.RUnlock()
		if ok {
			return existing, nil
		}
		return m.create(ctx, clientID, accessToken)
	})
	if err != nil {
		return nil, err
	}
	ws = v.(*Workspace)
	m.refresh(ctx, ws)
	return ws, nil
}

// refresh はアクセス時刻を更新し、期限が来ていればセッションをバックエンドに再確認する。
// 別のブラウザからの全端末サインアウトや期限切れは、ここでsigned-outイベントとして届く。
func (m *Manager) refresh(ctx context.Context, ws *Workspace) {
	now := m.now()
	ws.touch(now)
	if !ws.revalidationDue(now, m.config.RevalidateInterval) {
		return
	}
	m.revalidate(ctx, ws)
}

func (m *Manager) revalidate(ctx context.Context, ws *Workspace) {
	if _, err := ws.Client.GetCurrentSession(ctx); err != nil {
		slog.Warn("failed to revalidate session",
			slog.String("client_id", ws.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) create(ctx context.Context, clientID, accessToken string) (*Workspace, error) {
	client := backend.NewClient(m.authSvc)
	if accessToken != "" {
		if err := client.Restore(context.WithoutCancel(ctx), accessToken); err != nil {
			slog.Warn("failed to restore session", slog.String("client_id", clientID), slog.String("error", err.Error()))
		}
	}

	store := appstate.New()
	boot := NewBootstrapper(client, m.profiles, store)
	if err := boot.Start(m.baseCtx); err != nil {
		return nil, fmt.Errorf("failed to start bootstrapper: %w", err)
	}

	now := m.now()
	ws := &Workspace{
		ID:          clientID,
		Client:      client,
		Boot:        boot,
		Store:       store,
		Auth:        NewAuth(client, boot, store, m.profiles, m.metrics),
		lastSeen:    now,
		validatedAt: now,
	}

	m.mu.Lock()
	m.workspaces[clientID] = ws
	count := len(m.workspaces)
	m.mu.Unlock()

	m.metrics.SetActiveWorkspaces(count)
	slog.Debug("workspace started",
		slog.String("client_id", clientID),
		slog.String("state", string(boot.State())),
	)
	return ws, nil
}

// ApplyProfile は指定ユーザーとして認証済みのワークスペースにプロフィールの変更を反映し、
// 反映したワークスペース数を返す。
func (m *Manager) ApplyProfile(userID string, patch model.ProfilePatch) int {
	targets := m.workspacesOf(userID)
	for _, ws := range targets {
		if patch.FullName != nil {
			ws.Store.SetName(*patch.FullName)
		}
		if patch.Role != nil {
			ws.Store.SetRole(*patch.Role)
		}
	}
	return len(targets)
}

// RevalidateUser は指定ユーザーとして認証済みのワークスペースのセッションを即座に再確認し、
// 確認したワークスペース数を返す。バックエンドで破棄済みならsigned-outになる。
func (m *Manager) RevalidateUser(ctx context.Context, userID string) int {
	targets := m.workspacesOf(userID)
	now := m.now()
	for _, ws := range targets {
		ws.mu.Lock()
		ws.validatedAt = now
		ws.mu.Unlock()
		m.revalidate(ctx, ws)
	}
	return len(targets)
}

func (m *Manager) workspacesOf(userID string) []*Workspace {
	if userID == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Workspace
	for _, ws := range m.workspaces {
		if ws.userID() == userID {
			out = append(out, ws)
		}
	}
	return out
}

// Count は保持中のワークスペース数を返す。
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

// Close は掃除を停止し、すべてのワークスペースを終了する。
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.cancel()

		m.mu.Lock()
		all := m.workspaces
		m.workspaces = make(map[string]*Workspace)
		m.mu.Unlock()

		for _, ws := range all {
			ws.Boot.Stop()
		}
		m.metrics.SetActiveWorkspaces(0)
	})
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスがIdleTTLより古いワークスペースを破棄する。
func (m *Manager) evictIdle() {
	cutoff := m.now().Add(-m.config.IdleTTL)

	var evicted []*Workspace
	m.mu.Lock()
	for id, ws := range m.workspaces {
		if ws.idleSince().Before(cutoff) {
			evicted = append(evicted, ws)
			delete(m.workspaces, id)
		}
	}
	count := len(m.workspaces)
	m.mu.Unlock()

	for _, ws := range evicted {
		ws.Boot.Stop()
	}
	if len(evicted) > 0 {
		slog.Info("idle workspaces evicted", slog.Int("count", len(evicted)))
	}
	m.metrics.SetActiveWorkspaces(count)
}
