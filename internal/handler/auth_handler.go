// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/jobboard/internal/appstate"
	"github.com/hitoshi/jobboard/internal/guard"
	"github.com/hitoshi/jobboard/internal/middleware"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/session"
)

const (
	// RecoverPath はパスワード再設定メールのリンク先。
	RecoverPath = "/auth/recover"

	resetPasswordPath  = "/reset-password"
	forgotPasswordPath = "/forgot-password"
)

// AuthActions は認証ハンドラーが必要とするクライアント側の認証操作。
// ワークスペースごとのsession.Authが実装する。
type AuthActions interface {
	SignIn(ctx context.Context, email, password string) session.Result
	SignUp(ctx context.Context, email, password, name string, role model.Role) session.Result
	SignOut(ctx context.Context) session.Result
	SignOutEverywhere(ctx context.Context) session.Result
	PrepareEntry(ctx context.Context)
	RequestPasswordReset(ctx context.Context, email, redirectURL string) session.Result
	CompleteRecovery(ctx context.Context, token string) session.Result
	UpdatePassword(ctx context.Context, newPassword string) session.Result
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string // 再設定リンクの組み立てに使う公開URL
}

// AuthHandler はログイン・登録・パスワード再設定のHTTPハンドラー。
type AuthHandler struct {
	config     AuthHandlerConfig
	actionsFor func(r *http.Request) (AuthActions, bool)
	snapshot   guard.SnapshotFunc
}

// NewAuthHandler はリクエスト元のワークスペースに対して操作するAuthHandlerを生成する。
func NewAuthHandler(config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		config:     config,
		actionsFor: workspaceAuth,
		snapshot:   middleware.Snapshot,
	}
}

func workspaceAuth(r *http.Request) (AuthActions, bool) {
	ws, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return ws.Auth, true
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	FullName        string `json:"full_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"omitempty,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,oneof=jobseeker employer"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"omitempty,eqfield=Password"`
}

// authResponse は認証操作の結果。Redirectは次に表示する画面。
type authResponse struct {
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
	Notice   string            `json:"notice,omitempty"`
	User     *model.UserRecord `json:"user,omitempty"`
}

// entryResponse はログイン・登録画面の初期状態。
type entryResponse struct {
	State appstate.Snapshot `json:"state"`
	Roles []model.Role      `json:"roles,omitempty"`
}

// LoginEntry はログイン画面の表示前に既存のセッションを破棄する。
// GET /auth/login
func (h *AuthHandler) LoginEntry(w http.ResponseWriter, r *http.Request) {
	h.entry(w, r, nil)
}

// RegisterEntry は登録画面の表示前に既存のセッションを破棄する。
// GET /auth/register
func (h *AuthHandler) RegisterEntry(w http.ResponseWriter, r *http.Request) {
	h.entry(w, r, []model.Role{model.RoleJobseeker, model.RoleEmployer})
}

func (h *AuthHandler) entry(w http.ResponseWriter, r *http.Request, roles []model.Role) {
	actions, ok := h.actions(w, r)
	if !ok {
		return
	}
	actions.PrepareEntry(r.Context())

	snap, _ := h.snapshot(r)
	writeJSON(w, http.StatusOK, entryResponse{State: snap, Roles: roles})
}

// Login はメールアドレスとパスワードでサインインし、ロールに応じた遷移先を返す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	actions, ok := h.actions(w, r)
	if !ok {
		return
	}

	res := actions.SignIn(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if !res.Success {
		writeJSON(w, failureStatus(res, http.StatusUnauthorized), authResponse{Error: res.Error})
		return
	}

	resp := authResponse{Success: true, Redirect: guard.JobsPath}
	if snap, ok := h.snapshot(r); ok && snap.IsAuthenticated && snap.User != nil {
		resp.User = snap.User
		resp.Redirect = guard.HomeFor(snap.User.Role)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register は新しいアカウントを登録する。セッションは発行されないため、ログイン画面へ誘導する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	actions, ok := h.actions(w, r)
	if !ok {
		return
	}

	role := model.RoleJobseeker
	if req.Role != "" {
		role = model.Role(req.Role)
	}

	res := actions.SignUp(r.Context(), strings.TrimSpace(req.Email), req.Password, strings.TrimSpace(req.FullName), role)
	if !res.Success {
		writeJSON(w, failureStatus(res, http.StatusBadRequest), authResponse{Error: res.Error})
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{
		Success:  true,
		Redirect: guard.LoginPath,
		Notice:   "Your account has been created. Redirecting to login page.",
	})
}

// Logout はセッションを破棄する。scope=globalの場合は全端末のセッションを破棄する。
// サービス側の失敗に関わらずクライアントの状態は未認証になる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actions, ok := h.actions(w, r)
	if !ok {
		return
	}

	var res session.Result
	if r.URL.Query().Get("scope") == "global" {
		res = actions.SignOutEverywhere(r.Context())
	} else {
		res = actions.SignOut(r.Context())
	}
	writeJSON(w, http.StatusOK, authResponse{Success: res.Success, Error: res.Error, Redirect: guard.LoginPath})
}

// Me は現在のクライアント状態を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, errSessionRequired)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ForgotPassword はパスワード再設定リンクの送信を依頼する。
// POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	actions, ok := h.actions(w, r)
	if !ok {
		return
	}

	res := actions.RequestPasswordReset(r.Context(), strings.TrimSpace(req.Email), h.recoverURL())
	if !res.Success {
		writeJSON(w, failureStatus(res, http.StatusBadRequest), authResponse{Error: res.Error})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Notice:  "Check your email for the password reset link",
	})
}

// Recover は再設定リンクのトークンでサインインし、パスワード変更画面へ誘導する。
// 失敗時は再設定の依頼画面へ誘導する。
// GET /auth/recover?token=xxx
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRecoveryTokenError())
		return
	}
	actions, ok := h.actions(w, r)
	if !ok {
		return
	}

	res := actions.CompleteRecovery(r.Context(), token)
	if !res.Success {
		w.Header().Set("Location", forgotPasswordPath)
		writeJSON(w, http.StatusSeeOther, authResponse{Error: res.Error, Redirect: forgotPasswordPath})
		return
	}
	w.Header().Set("Location", resetPasswordPath)
	writeJSON(w, http.StatusSeeOther, authResponse{Success: true, Redirect: resetPasswordPath})
}

// ResetPassword は再設定リンクで得たセッションのパスワードを変更する。
// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if snap, ok := h.snapshot(r); !ok || !snap.IsAuthenticated {
		writeAPIErrorResponse(w, http.StatusUnauthorized, errSessionRequired)
		return
	}
	actions, ok := h.actions(w, r)
	if !ok {
		return
	}

	res := actions.UpdatePassword(r.Context(), req.Password)
	if !res.Success {
		writeJSON(w, failureStatus(res, http.StatusBadRequest), authResponse{Error: res.Error})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Success:  true,
		Redirect: guard.LoginPath,
		Notice:   "Your password has been successfully updated.",
	})
}

// actions はリクエスト元の認証操作を返す。ワークスペースがなければ500を書き込む。
func (h *AuthHandler) actions(w http.ResponseWriter, r *http.Request) (AuthActions, bool) {
	actions, ok := h.actionsFor(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return actions, true
}

func (h *AuthHandler) recoverURL() string {
	return strings.TrimRight(h.config.BaseURL, "/") + RecoverPath
}

// failureStatus は認証エラーをrejected、想定外の失敗を500にする。
func failureStatus(res session.Result, rejected int) int {
	if res.Error == session.UnexpectedErrorMessage {
		return http.StatusInternalServerError
	}
	return rejected
}
