package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobboard/internal/admin"
	"github.com/hitoshi/jobboard/internal/appstate"
	"github.com/hitoshi/jobboard/internal/job"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/session"
)

// --- モック定義 ---

// mockAuthActions はAuthActionsのモック実装。
type mockAuthActions struct {
	signInFn               func(ctx context.Context, email, password string) session.Result
	signUpFn               func(ctx context.Context, email, password, name string, role model.Role) session.Result
	signOutFn              func(ctx context.Context) session.Result
	signOutEverywhereFn    func(ctx context.Context) session.Result
	prepareEntryFn         func(ctx context.Context)
	requestPasswordResetFn func(ctx context.Context, email, redirectURL string) session.Result
	completeRecoveryFn     func(ctx context.Context, token string) session.Result
	updatePasswordFn       func(ctx context.Context, newPassword string) session.Result
}

var okResult = session.Result{Success: true}

func (m *mockAuthActions) SignIn(ctx context.Context, email, password string) session.Result {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return okResult
}

func (m *mockAuthActions) SignUp(ctx context.Context, email, password, name string, role model.Role) session.Result {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, name, role)
	}
	return okResult
}

func (m *mockAuthActions) SignOut(ctx context.Context) session.Result {
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return okResult
}

func (m *mockAuthActions) SignOutEverywhere(ctx context.Context) session.Result {
	if m.signOutEverywhereFn != nil {
		return m.signOutEverywhereFn(ctx)
	}
	return okResult
}

func (m *mockAuthActions) PrepareEntry(ctx context.Context) {
	if m.prepareEntryFn != nil {
		m.prepareEntryFn(ctx)
	}
}

func (m *mockAuthActions) RequestPasswordReset(ctx context.Context, email, redirectURL string) session.Result {
	if m.requestPasswordResetFn != nil {
		return m.requestPasswordResetFn(ctx, email, redirectURL)
	}
	return okResult
}

func (m *mockAuthActions) CompleteRecovery(ctx context.Context, token string) session.Result {
	if m.completeRecoveryFn != nil {
		return m.completeRecoveryFn(ctx, token)
	}
	return okResult
}

func (m *mockAuthActions) UpdatePassword(ctx context.Context, newPassword string) session.Result {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, newPassword)
	}
	return okResult
}

// mockJobService はJobServiceInterfaceのモック実装。
type mockJobService struct {
	listActiveFn     func(ctx context.Context, limit int) ([]*model.Job, error)
	getFn            func(ctx context.Context, id string) (*model.Job, error)
	getOwnedFn       func(ctx context.Context, employerID, id string) (*model.Job, error)
	listByEmployerFn func(ctx context.Context, employerID string) ([]*model.Job, error)
	createFn         func(ctx context.Context, employerID string, in model.JobInput) (*model.Job, error)
	updateFn         func(ctx context.Context, employerID, id string, in model.JobInput) (*model.Job, error)
	deleteFn         func(ctx context.Context, employerID, id string) error
}

func (m *mockJobService) ListActive(ctx context.Context, limit int) ([]*model.Job, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockJobService) Get(ctx context.Context, id string) (*model.Job, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewJobNotFoundError(id)
}

func (m *mockJobService) GetOwned(ctx context.Context, employerID, id string) (*model.Job, error) {
	if m.getOwnedFn != nil {
		return m.getOwnedFn(ctx, employerID, id)
	}
	return nil, model.NewJobNotFoundError(id)
}

func (m *mockJobService) ListByEmployer(ctx context.Context, employerID string) ([]*model.Job, error) {
	if m.listByEmployerFn != nil {
		return m.listByEmployerFn(ctx, employerID)
	}
	return nil, nil
}

func (m *mockJobService) Create(ctx context.Context, employerID string, in model.JobInput) (*model.Job, error) {
	if m.createFn != nil {
		return m.createFn(ctx, employerID, in)
	}
	return &model.Job{ID: "job-new", EmployerID: employerID, Title: in.Title}, nil
}

func (m *mockJobService) Update(ctx context.Context, employerID, id string, in model.JobInput) (*model.Job, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, employerID, id, in)
	}
	return &model.Job{ID: id, EmployerID: employerID, Title: in.Title}, nil
}

func (m *mockJobService) Delete(ctx context.Context, employerID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, employerID, id)
	}
	return nil
}

// mockImporter はJobImporterInterfaceのモック実装。
type mockImporter struct {
	importFn func(ctx context.Context, employerID, rawURL string) (*job.ImportResult, error)
}

func (m *mockImporter) Import(ctx context.Context, employerID, rawURL string) (*job.ImportResult, error) {
	if m.importFn != nil {
		return m.importFn(ctx, employerID, rawURL)
	}
	return &job.ImportResult{FeedURL: rawURL}, nil
}

// mockApplicationService はApplicationServiceInterfaceのモック実装。
type mockApplicationService struct {
	submitFn       func(ctx context.Context, userID, jobID, resume, coverLetter string) (*model.Application, error)
	listForFn      func(ctx context.Context, user model.UserRecord) ([]model.ApplicationWithJob, error)
	updateStatusFn func(ctx context.Context, employerID, applicationID, status string) (*model.ApplicationWithJob, error)
}

func (m *mockApplicationService) Submit(ctx context.Context, userID, jobID, resume, coverLetter string) (*model.Application, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, userID, jobID, resume, coverLetter)
	}
	return &model.Application{ID: "app-new", JobID: jobID, UserID: userID, Status: model.ApplicationPending}, nil
}

func (m *mockApplicationService) ListFor(ctx context.Context, user model.UserRecord) ([]model.ApplicationWithJob, error) {
	if m.listForFn != nil {
		return m.listForFn(ctx, user)
	}
	return []model.ApplicationWithJob{}, nil
}

func (m *mockApplicationService) UpdateStatus(ctx context.Context, employerID, applicationID, status string) (*model.ApplicationWithJob, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, employerID, applicationID, status)
	}
	return nil, model.NewApplicationNotFoundError(applicationID)
}

// mockAdminService はAdminServiceInterfaceのモック実装。
type mockAdminService struct {
	listUsersFn   func(ctx context.Context, page, size int) (*admin.UserPage, error)
	updateUserFn  func(ctx context.Context, userID string, patch model.ProfilePatch) error
	moderateJobFn func(ctx context.Context, jobID string, active bool) (*model.Job, error)
	banUserFn     func(ctx context.Context, adminID, userID string) error
}

func (m *mockAdminService) ListUsers(ctx context.Context, page, size int) (*admin.UserPage, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, page, size)
	}
	return &admin.UserPage{Users: []admin.UserSummary{}}, nil
}

func (m *mockAdminService) UpdateUser(ctx context.Context, userID string, patch model.ProfilePatch) error {
	if m.updateUserFn != nil {
		return m.updateUserFn(ctx, userID, patch)
	}
	return nil
}

func (m *mockAdminService) ModerateJob(ctx context.Context, jobID string, active bool) (*model.Job, error) {
	if m.moderateJobFn != nil {
		return m.moderateJobFn(ctx, jobID, active)
	}
	return nil, model.NewJobNotFoundError(jobID)
}

func (m *mockAdminService) BanUser(ctx context.Context, adminID, userID string) error {
	if m.banUserFn != nil {
		return m.banUserFn(ctx, adminID, userID)
	}
	return nil
}

// --- テストヘルパー ---

var (
	employer  = model.UserRecord{ID: "emp-1", Name: "Acme Boss", Email: "boss@acme.example", Role: model.RoleEmployer}
	jobseeker = model.UserRecord{ID: "seeker-1", Name: "Sam", Email: "sam@example.com", Role: model.RoleJobseeker}
)

// signedInAs はcurrentUserに差し込む関数を返す。
func signedInAs(user model.UserRecord) func(*http.Request) (model.UserRecord, bool) {
	return func(*http.Request) (model.UserRecord, bool) { return user, true }
}

func anonymous(*http.Request) (model.UserRecord, bool) {
	return model.UserRecord{}, false
}

// snapshotOf はsnapshotに差し込む関数を返す。userがnilなら未認証。
func snapshotOf(user *model.UserRecord) func(*http.Request) (appstate.Snapshot, bool) {
	return func(*http.Request) (appstate.Snapshot, bool) {
		return appstate.Snapshot{User: user, IsAuthenticated: user != nil}, true
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return v
}
