package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobboard/internal/admin"
	"github.com/hitoshi/jobboard/internal/middleware"
	"github.com/hitoshi/jobboard/internal/model"
)

// AdminServiceInterface は管理者操作のインターフェース。
type AdminServiceInterface interface {
	ListUsers(ctx context.Context, page, size int) (*admin.UserPage, error)
	UpdateUser(ctx context.Context, userID string, patch model.ProfilePatch) error
	ModerateJob(ctx context.Context, jobID string, active bool) (*model.Job, error)
	BanUser(ctx context.Context, adminID, userID string) error
}

// AdminHandler は管理者向けエンドポイントのHTTPハンドラー。
type AdminHandler struct {
	admin       AdminServiceInterface
	currentUser func(r *http.Request) (model.UserRecord, bool)
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(adminService AdminServiceInterface) *AdminHandler {
	return &AdminHandler{
		admin:       adminService,
		currentUser: middleware.CurrentUser,
	}
}

type updateUserRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=100"`
	Role     *string `json:"role" validate:"omitempty,oneof=jobseeker employer admin"`
}

// Home は管理者ページの表示者を返す。
// GET /admin
func (h *AdminHandler) Home(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.currentUser)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// ListUsers は利用者一覧を返す。pageは0始まり。
// GET /admin/users?page=N&size=M
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, h.currentUser); !ok {
		return
	}

	page, ok := queryInt(w, r, "page", 0)
	if !ok {
		return
	}
	size, ok := queryInt(w, r, "size", 0)
	if !ok {
		return
	}

	users, err := h.admin.ListUsers(r.Context(), page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// UpdateUser は利用者の表示名またはロールを変更する。
// 対象者がサインイン中のワークスペースにも即座に反映される。
// PATCH /admin/users/{id}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, h.currentUser); !ok {
		return
	}

	var req updateUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.FullName == nil && req.Role == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("full_name or role is required"))
		return
	}

	var patch model.ProfilePatch
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("full_name must not be blank"))
			return
		}
		patch.FullName = &name
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		patch.Role = &role
	}

	if err := h.admin.UpdateUser(r.Context(), chi.URLParam(r, "id"), patch); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ModerateJob は求人の掲載状態を切り替える。
// PUT /admin/jobs/{id}/moderate?active=true|false
func (h *AdminHandler) ModerateJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, h.currentUser); !ok {
		return
	}

	active, err := strconv.ParseBool(r.URL.Query().Get("active"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("active must be true or false"))
		return
	}

	job, err := h.admin.ModerateJob(r.Context(), chi.URLParam(r, "id"), active)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// BanUser は利用者を削除し、サインイン中のワークスペースをサインアウトさせる。
// DELETE /admin/users/{id}
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.currentUser)
	if !ok {
		return
	}

	if err := h.admin.BanUser(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt は0以上の整数クエリパラメータを読む。未指定ならdefを返し、不正なら400を書き込む。
func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(key+" must be a non-negative integer"))
		return 0, false
	}
	return n, true
}
