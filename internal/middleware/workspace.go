// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/jobboard/internal/appstate"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/session"
)

const (
	clientCookieName = "client_id"
	tokenCookieName  = "access_token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var workspaceContextKey = contextKey("workspace")

// WorkspaceProvider はブラウザごとのワークスペースを返す。
type WorkspaceProvider interface {
	Get(ctx context.Context, clientID, accessToken string) (*session.Workspace, error)
}

// ClientConfig はクライアント識別Cookieとトークン保存Cookieの設定。
type ClientConfig struct {
	CookieSecure bool
	CookieDomain string
	ClientMaxAge int // client_id Cookieの有効期間（秒）
	TokenMaxAge  int // access_token Cookieの有効期間（秒）
}

// NewWorkspaceMiddleware はclient_id Cookieからブラウザのワークスペースを取得し、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない場合は新しいclient_idを発行する。
// レスポンスを書き出す時点でアクセストークンが変化していればaccess_token Cookieを更新する。
func NewWorkspaceMiddleware(provider WorkspaceProvider, config ClientConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := readClientID(r)
			if clientID == "" {
				clientID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     clientCookieName,
					Value:    clientID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   config.ClientMaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			var token string
			if c, err := r.Cookie(tokenCookieName); err == nil {
				token = c.Value
			}

			ws, err := provider.Get(r.Context(), clientID, token)
			if err != nil {
				slog.Error("failed to open client workspace",
					slog.String("client_id", clientID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			tw := &tokenCookieWriter{ResponseWriter: w, ws: ws, sent: token, config: config}
			ctx := ContextWithWorkspace(r.Context(), ws)
			next.ServeHTTP(tw, r.WithContext(ctx))
			tw.sync()

			if snap := ws.Store.Snapshot(); snap.User != nil {
				annotateUserID(r.Context(), snap.User.ID)
			}
		})
	}
}

// readClientID はUUID形式のclient_id Cookieを読む。不正な値は無視する。
func readClientID(r *http.Request) string {
	c, err := r.Cookie(clientCookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// tokenCookieWriter はヘッダー送信の直前にaccess_token Cookieを同期する。
type tokenCookieWriter struct {
	http.ResponseWriter
	ws     *session.Workspace
	sent   string
	config ClientConfig
	synced bool
}

func (tw *tokenCookieWriter) WriteHeader(code int) {
	tw.sync()
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *tokenCookieWriter) Write(b []byte) (int, error) {
	tw.sync()
	return tw.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseControllerのためにラップ元を返す。
func (tw *tokenCookieWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

func (tw *tokenCookieWriter) sync() {
	if tw.synced {
		return
	}
	tw.synced = true

	current := tw.ws.Client.AccessToken()
	if current == tw.sent {
		return
	}

	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    current,
		Path:     "/",
		Domain:   tw.config.CookieDomain,
		MaxAge:   tw.config.TokenMaxAge,
		HttpOnly: true,
		Secure:   tw.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if current == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(tw.ResponseWriter, cookie)
}

// ContextWithWorkspace はコンテキストにワークスペースを注入する。
func ContextWithWorkspace(ctx context.Context, ws *session.Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey, ws)
}

// WorkspaceFromContext はリクエストコンテキストからワークスペースを取得する。
func WorkspaceFromContext(ctx context.Context) (*session.Workspace, bool) {
	ws, ok := ctx.Value(workspaceContextKey).(*session.Workspace)
	return ws, ok && ws != nil
}

// Snapshot は処理中の認証イベントを反映させてから、リクエスト元の状態を返す。
// guard.SnapshotFuncとして使う。
func Snapshot(r *http.Request) (appstate.Snapshot, bool) {
	ws, ok := WorkspaceFromContext(r.Context())
	if !ok {
		return appstate.Snapshot{}, false
	}
	if err := ws.Boot.Settle(r.Context()); err != nil {
		slog.Warn("session state did not settle before snapshot", slog.String("error", err.Error()))
	}
	return ws.Store.Snapshot(), true
}

// CurrentUser はリクエスト元の認証済みユーザーを返す。
func CurrentUser(r *http.Request) (model.UserRecord, bool) {
	snap, ok := Snapshot(r)
	if !ok || !snap.IsAuthenticated || snap.User == nil {
		return model.UserRecord{}, false
	}
	return *snap.User, true
}
