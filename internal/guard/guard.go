// Package guard はページごとのアクセス制御を提供する。
// 判定はアプリケーション状態のスナップショットのみを読む純粋関数で行う。
package guard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/hitoshi/jobboard/internal/appstate"
	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
)

const (
	// LoginPath は未認証時のリダイレクト先。
	LoginPath = "/login"
	// JobsPath はロール不一致時の既定のリダイレクト先。
	JobsPath = "/jobs"
)

// Policy は1ページ分のアクセス条件。
// Rolesが空の場合、認証済みであればロールを問わない。
type Policy struct {
	Page         string
	RequireAuth  bool
	Roles        []model.Role
	AuthNotice   string // 未認証で拒否したときの通知
	DenyRedirect string
	DenyNotice   string // ロール不一致で拒否したときの通知
}

// Decision はガードの判定結果。Allowがfalseの場合はRedirectへ遷移させる。
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
	Notice   string `json:"notice,omitempty"`
}

// Evaluate はスナップショットに対してポリシーを評価する。
func Evaluate(p Policy, snap appstate.Snapshot) Decision {
	if !p.RequireAuth && len(p.Roles) == 0 {
		return Decision{Allow: true}
	}
	if !snap.IsAuthenticated || snap.User == nil {
		return Decision{Redirect: LoginPath, Notice: p.AuthNotice}
	}
	if len(p.Roles) > 0 && !slices.Contains(p.Roles, snap.User.Role) {
		redirect := p.DenyRedirect
		if redirect == "" {
			redirect = JobsPath
		}
		return Decision{Redirect: redirect, Notice: p.DenyNotice}
	}
	return Decision{Allow: true}
}

// HomeFor はサインイン直後の遷移先をロールから決める。
func HomeFor(role model.Role) string {
	switch role {
	case model.RoleEmployer:
		return EmployerDashboardPath
	case model.RoleAdmin:
		return AdminPath
	default:
		return JobsPath
	}
}

// SnapshotFunc はリクエストに対応するクライアントの状態を返す。
// 状態が見つからない場合はfalseを返し、未認証として扱われる。
type SnapshotFunc func(r *http.Request) (appstate.Snapshot, bool)

// redirectBody はガードが拒否したときのレスポンスボディ。
type redirectBody struct {
	Redirect string `json:"redirect"`
	Notice   string `json:"notice,omitempty"`
}

// Require はポリシーを満たさないリクエストを303 See Otherで遷移させるミドルウェアを返す。
func Require(p Policy, snapshot SnapshotFunc, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, ok := snapshot(r)
			if !ok {
				snap = appstate.Snapshot{}
			}

			d := Evaluate(p, snap)
			mc.RecordGuardDecision(p.Page, d.Allow)
			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}

			slog.Debug("page access denied",
				slog.String("page", p.Page),
				slog.String("redirect", d.Redirect),
				slog.String("role", string(snap.Role())),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Location", d.Redirect)
			w.WriteHeader(http.StatusSeeOther)
			json.NewEncoder(w).Encode(redirectBody{Redirect: d.Redirect, Notice: d.Notice})
		})
	}
}
