// Package backend はクライアント1つ分の認証セッションハンドルを提供する。
// ハンドルは現在のセッションを保持し、状態変化を購読者に通知する。
package backend

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/jobboard/internal/auth"
	"github.com/hitoshi/jobboard/internal/model"
)

// EventType は認証状態変化イベントの種類。
type EventType string

const (
	EventSignedIn  EventType = "signed-in"
	EventSignedOut EventType = "signed-out"
)

// AuthEvent は認証状態変化イベント。サインアウト時のSessionはnil。
type AuthEvent struct {
	Type    EventType
	Session *model.AuthSession
}

// Unsubscribe は購読を解除する。複数回呼んでも安全。
type Unsubscribe func()

// AuthService はClientが利用する認証サービスの操作。
type AuthService interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error)
	SignUp(ctx context.Context, email, password string, metadata model.Metadata) (*model.Identity, error)
	GetSession(ctx context.Context, accessToken string) (*model.AuthSession, error)
	SignOut(ctx context.Context, accessToken string, scope auth.SignOutScope) error
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	VerifyRecovery(ctx context.Context, token string) (*model.AuthSession, error)
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// subscriberBuffer は購読者ごとのイベントバッファ長。
const subscriberBuffer = 16

// Client は1クライアント分のセッションハンドル。
type Client struct {
	svc AuthService

	mu      sync.Mutex
	session *model.AuthSession
	subs    map[int]chan AuthEvent
	nextID  int
}

// NewClient はClientを生成する。
func NewClient(svc AuthService) *Client {
	return &Client{
		svc:  svc,
		subs: make(map[int]chan AuthEvent),
	}
}

// Restore は保存済みのアクセストークンからセッションを復元する。イベントは発行しない。
// トークンが無効な場合はセッションなしの状態になる。
func (c *Client) Restore(ctx context.Context, accessToken string) error {
	session, err := c.svc.GetSession(ctx, accessToken)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return nil
}

// AccessToken は現在のアクセストークンを返す。セッションがない場合は空文字列。
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// GetCurrentSession は現在のセッションを返す。セッションがない、または失効している場合はnil。
func (c *Client) GetCurrentSession(ctx context.Context) (*model.AuthSession, error) {
	token := c.AccessToken()
	if token == "" {
		return nil, nil
	}

	session, err := c.svc.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		// バックエンド側で失効したセッションはサインアウトとして購読者に伝える
		c.mu.Lock()
		if c.session != nil && c.session.AccessToken == token {
			c.replaceLocked(nil)
		}
		c.mu.Unlock()
	}
	return session, nil
}

// CachedSession はバックエンドに問い合わせずに保持中のセッションを返す。
func (c *Client) CachedSession() *model.AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Subscribe は認証状態変化イベントの購読を開始する。
// 発行側はブロックしない。受信が遅れてバッファが埋まった場合は最も古いイベントを捨てるため、
// 最後に届くイベントは常に最新の状態を表す。
func (c *Client) Subscribe() (<-chan AuthEvent, Unsubscribe) {
	ch := make(chan AuthEvent, subscriberBuffer)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// SignInWithPassword はサインインし、signed-inイベントを発行する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	session, err := c.svc.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setSession(session)
	return session, nil
}

// SignUp は認証主体を登録する。セッションは発行されないためイベントも発行しない。
func (c *Client) SignUp(ctx context.Context, email, password string, metadata model.Metadata) (*model.Identity, error) {
	return c.svc.SignUp(ctx, email, password, metadata)
}

// SignOut は現在のセッションを破棄し、signed-outイベントを発行する。
// セッションがない場合も成功し、イベントを発行する。
func (c *Client) SignOut(ctx context.Context) error {
	return c.signOut(ctx, auth.ScopeLocal)
}

// SignOutEverywhere は同一ユーザーの全セッションを破棄する。
func (c *Client) SignOutEverywhere(ctx context.Context) error {
	return c.signOut(ctx, auth.ScopeGlobal)
}

func (c *Client) signOut(ctx context.Context, scope auth.SignOutScope) error {
	token := c.AccessToken()

	// サーバー側の破棄に失敗してもローカルのセッションは破棄する
	err := c.svc.SignOut(ctx, token, scope)
	c.setSession(nil)
	if err != nil {
		slog.Warn("failed to revoke session", slog.String("error", err.Error()))
	}
	return err
}

// ResetPasswordForEmail はパスワード再設定リンクの送信を依頼する。
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return c.svc.ResetPasswordForEmail(ctx, email, redirectURL)
}

// VerifyRecovery は再設定リンクのトークンでサインインし、signed-inイベントを発行する。
func (c *Client) VerifyRecovery(ctx context.Context, token string) (*model.AuthSession, error) {
	session, err := c.svc.VerifyRecovery(ctx, token)
	if err != nil {
		return nil, err
	}
	c.setSession(session)
	return session, nil
}

// UpdatePassword は現在のセッションの持ち主のパスワードを変更する。
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	return c.svc.UpdatePassword(ctx, c.AccessToken(), newPassword)
}

// setSession はセッションを差し替え、対応するイベントを全購読者に配送する。
func (c *Client) setSession(session *model.AuthSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(session)
}

// replaceLocked はc.muを保持した状態で呼ぶ。
func (c *Client) replaceLocked(session *model.AuthSession) {
	ev := AuthEvent{Type: EventSignedOut}
	if session != nil {
		ev = AuthEvent{Type: EventSignedIn, Session: session}
	}

	c.session = session
	for _, ch := range c.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// 送信はc.muの下でのみ行うため、1件捨てれば必ず空きができる
		select {
		case dropped := <-ch:
			slog.Debug("auth event coalesced for slow subscriber",
				slog.String("dropped", string(dropped.Type)),
				slog.String("event", string(ev.Type)),
			)
		default:
		}
		ch <- ev
	}
}
