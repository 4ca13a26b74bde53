package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobboard/internal/job"
	"github.com/hitoshi/jobboard/internal/middleware"
	"github.com/hitoshi/jobboard/internal/model"
)

// JobServiceInterface は求人ハンドラーが必要とするサービスインターフェース。
type JobServiceInterface interface {
	ListActive(ctx context.Context, limit int) ([]*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	GetOwned(ctx context.Context, employerID, id string) (*model.Job, error)
	ListByEmployer(ctx context.Context, employerID string) ([]*model.Job, error)
	Create(ctx context.Context, employerID string, in model.JobInput) (*model.Job, error)
	Update(ctx context.Context, employerID, id string, in model.JobInput) (*model.Job, error)
	Delete(ctx context.Context, employerID, id string) error
}

// JobImporterInterface はフィードからの求人取り込み。
type JobImporterInterface interface {
	Import(ctx context.Context, employerID, rawURL string) (*job.ImportResult, error)
}

// JobHandler は求人の閲覧と雇用者向け管理画面のHTTPハンドラー。
// 雇用者向けのルートはガードを通過した後に呼ばれる前提とする。
type JobHandler struct {
	jobs         JobServiceInterface
	importer     JobImporterInterface
	applications ApplicationServiceInterface
	currentUser  func(r *http.Request) (model.UserRecord, bool)
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(jobs JobServiceInterface, importer JobImporterInterface, applications ApplicationServiceInterface) *JobHandler {
	return &JobHandler{
		jobs:         jobs,
		importer:     importer,
		applications: applications,
		currentUser:  middleware.CurrentUser,
	}
}

// jobRequest は求人の作成・更新リクエストのボディ。
type jobRequest struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Company         string     `json:"company" validate:"required,max=200"`
	Location        string     `json:"location" validate:"required,max=200"`
	Salary          string     `json:"salary" validate:"max=100"`
	Description     string     `json:"description" validate:"required"`
	Requirements    string     `json:"requirements"`
	CompanyLogo     string     `json:"company_logo" validate:"omitempty,http_url"`
	Type            string     `json:"type" validate:"omitempty,oneof=FULL_TIME PART_TIME CONTRACT FREELANCE INTERNSHIP"`
	ExperienceLevel string     `json:"experience_level" validate:"omitempty,oneof=ENTRY JUNIOR MID SENIOR EXECUTIVE"`
	Remote          bool       `json:"remote"`
	Category        string     `json:"category" validate:"max=100"`
	Deadline        *time.Time `json:"deadline"`
	IsActive        *bool      `json:"is_active"`
}

func (req jobRequest) input() model.JobInput {
	return model.JobInput{
		Title:           req.Title,
		Company:         req.Company,
		Location:        req.Location,
		Salary:          req.Salary,
		Description:     req.Description,
		Requirements:    req.Requirements,
		CompanyLogo:     req.CompanyLogo,
		Type:            req.Type,
		ExperienceLevel: req.ExperienceLevel,
		Remote:          req.Remote,
		Category:        req.Category,
		Deadline:        req.Deadline,
		IsActive:        req.IsActive,
	}
}

type importRequest struct {
	URL string `json:"url" validate:"required,http_url,max=2048"`
}

// jobResponse は求人のAPIレスポンス。
type jobResponse struct {
	ID              string     `json:"id"`
	EmployerID      string     `json:"employer_id"`
	Title           string     `json:"title"`
	Company         string     `json:"company"`
	Location        string     `json:"location"`
	Salary          string     `json:"salary,omitempty"`
	Description     string     `json:"description"`
	Requirements    []string   `json:"requirements"`
	CompanyLogo     string     `json:"company_logo,omitempty"`
	Type            string     `json:"type"`
	ExperienceLevel string     `json:"experience_level"`
	Remote          bool       `json:"remote"`
	Category        string     `json:"category"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	IsActive        bool       `json:"is_active"`
	PostedDate      time.Time  `json:"posted_date"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// jobFormResponse は求人投稿フォームの初期値と選択肢。
type jobFormResponse struct {
	Defaults         jobResponse `json:"defaults"`
	JobTypes         []string    `json:"job_types"`
	ExperienceLevels []string    `json:"experience_levels"`
}

type dashboardResponse struct {
	Jobs                []jobResponse         `json:"jobs"`
	ActiveJobs          int                   `json:"active_jobs"`
	Applications        []applicationResponse `json:"applications"`
	PendingApplications int                   `json:"pending_applications"`
}

type importResponse struct {
	FeedURL  string        `json:"feed_url"`
	Imported []jobResponse `json:"imported"`
	Skipped  int           `json:"skipped"`
}

// ListJobs は掲載中の求人一覧を返す。
// GET /jobs?limit=N
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	jobs, err := h.jobs.ListActive(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// GetJob は求人の詳細を返す。
// GET /jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

// Dashboard は雇用者の求人と受け取った応募の概要を返す。
// GET /employer-dashboard
func (h *JobHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListByEmployer(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	apps, err := h.applications.ListFor(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := dashboardResponse{
		Jobs:         toJobResponses(jobs),
		Applications: toApplicationResponses(apps),
	}
	for _, j := range jobs {
		if j.IsActive {
			resp.ActiveJobs++
		}
	}
	for _, a := range apps {
		if a.Status == model.ApplicationPending {
			resp.PendingApplications++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// JobForm は求人投稿フォームの初期値を返す。
// GET /post-job
func (h *JobHandler) JobForm(w http.ResponseWriter, r *http.Request) {
	in := job.DefaultInput()
	writeJSON(w, http.StatusOK, jobFormResponse{
		Defaults: jobResponse{
			Type:            in.Type,
			ExperienceLevel: in.ExperienceLevel,
			Category:        in.Category,
			Requirements:    []string{},
			IsActive:        true,
		},
		JobTypes:         job.JobTypes,
		ExperienceLevels: job.ExperienceLevels,
	})
}

// CreateJob は求人を掲載する。
// POST /post-job
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req jobRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	j, err := h.jobs.Create(r.Context(), user.ID, req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(j))
}

// ManageJobs は雇用者が掲載した求人の一覧を返す。
// GET /manage-jobs
func (h *JobHandler) ManageJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListByEmployer(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// DeleteJob は求人を削除する。
// DELETE /manage-jobs/{id}
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.jobs.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditJob は編集対象の求人を返す。
// GET /edit-job/{id}
func (h *JobHandler) EditJob(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	j, err := h.jobs.GetOwned(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

// UpdateJob は求人を更新する。
// PUT /edit-job/{id}
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req jobRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	j, err := h.jobs.Update(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

// ImportJobs は雇用者のRSS/Atomフィードから求人を取り込む。
// POST /manage-jobs/import
func (h *JobHandler) ImportJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req importRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.importer.Import(r.Context(), user.ID, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if len(res.Imported) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, importResponse{
		FeedURL:  res.FeedURL,
		Imported: toJobResponses(res.Imported),
		Skipped:  res.Skipped,
	})
}

func (h *JobHandler) requireUser(w http.ResponseWriter, r *http.Request) (model.UserRecord, bool) {
	return requireUser(w, r, h.currentUser)
}

// requireUser は認証済みユーザーを返す。未認証なら401を書き込む。
func requireUser(w http.ResponseWriter, r *http.Request, current func(*http.Request) (model.UserRecord, bool)) (model.UserRecord, bool) {
	user, ok := current(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, errSessionRequired)
		return model.UserRecord{}, false
	}
	return user, true
}

func toJobResponse(j *model.Job) jobResponse {
	reqs := j.Requirements
	if reqs == nil {
		reqs = []string{}
	}
	return jobResponse{
		ID:              j.ID,
		EmployerID:      j.EmployerID,
		Title:           j.Title,
		Company:         j.Company,
		Location:        j.Location,
		Salary:          j.Salary,
		Description:     j.Description,
		Requirements:    reqs,
		CompanyLogo:     j.CompanyLogo,
		Type:            j.Type,
		ExperienceLevel: j.ExperienceLevel,
		Remote:          j.Remote,
		Category:        j.Category,
		Deadline:        j.Deadline,
		IsActive:        j.IsActive,
		PostedDate:      j.PostedDate,
		UpdatedAt:       j.UpdatedAt,
	}
}

func toJobResponses(jobs []*model.Job) []jobResponse {
	out := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = toJobResponse(j)
	}
	return out
}
