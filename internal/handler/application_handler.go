package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobboard/internal/middleware"
	"github.com/hitoshi/jobboard/internal/model"
)

// ApplicationServiceInterface は応募ハンドラーが必要とするサービスインターフェース。
type ApplicationServiceInterface interface {
	Submit(ctx context.Context, userID, jobID, resume, coverLetter string) (*model.Application, error)
	ListFor(ctx context.Context, user model.UserRecord) ([]model.ApplicationWithJob, error)
	UpdateStatus(ctx context.Context, employerID, applicationID, status string) (*model.ApplicationWithJob, error)
}

// ApplicationHandler は応募のHTTPハンドラー。
type ApplicationHandler struct {
	service     ApplicationServiceInterface
	currentUser func(r *http.Request) (model.UserRecord, bool)
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationServiceInterface) *ApplicationHandler {
	return &ApplicationHandler{
		service:     service,
		currentUser: middleware.CurrentUser,
	}
}

// applyRequest は応募リクエストのボディ。Resumeはアップロード済み履歴書のURL。
type applyRequest struct {
	Resume      string `json:"resume"`
	CoverLetter string `json:"cover_letter" validate:"max=5000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// applicationResponse は応募のAPIレスポンス。
type applicationResponse struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	Resume      string    `json:"resume"`
	CoverLetter string    `json:"cover_letter,omitempty"`
	AppliedDate time.Time `json:"applied_date"`
	UpdatedAt   time.Time `json:"updated_at"`
	JobTitle    string    `json:"job_title,omitempty"`
	Company     string    `json:"company,omitempty"`
}

// ListApplications はロールに応じた応募一覧を返す。
// 求職者は自分の応募、雇用者は自社求人への応募、管理者はすべて。
// GET /applications
func (h *ApplicationHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.currentUser)
	if !ok {
		return
	}

	apps, err := h.service.ListFor(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}

// Apply は求人に応募する。未ログインの場合は401を返す。
// POST /jobs/{id}/apply
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     model.ErrCodeSessionRequired,
			Message:  "Please log in to apply for this job",
			Category: "auth",
			Action:   "Log in or create an account, then apply again.",
		})
		return
	}
	var req applyRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	app, err := h.service.Submit(r.Context(), user.ID, chi.URLParam(r, "id"), req.Resume, req.CoverLetter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationResponse(model.ApplicationWithJob{Application: *app}))
}

// UpdateStatus は応募の選考状態を変更する。
// PUT /applications/{id}/status
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r, h.currentUser)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	app, err := h.service.UpdateStatus(r.Context(), user.ID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(*app))
}

func toApplicationResponse(a model.ApplicationWithJob) applicationResponse {
	return applicationResponse{
		ID:          a.ID,
		JobID:       a.JobID,
		UserID:      a.UserID,
		Status:      string(a.Status),
		Resume:      a.Resume,
		CoverLetter: a.CoverLetter,
		AppliedDate: a.AppliedDate,
		UpdatedAt:   a.UpdatedAt,
		JobTitle:    a.JobTitle,
		Company:     a.Company,
	}
}

func toApplicationResponses(apps []model.ApplicationWithJob) []applicationResponse {
	out := make([]applicationResponse, len(apps))
	for i, a := range apps {
		out[i] = toApplicationResponse(a)
	}
	return out
}
