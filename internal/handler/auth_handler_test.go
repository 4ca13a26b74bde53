package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/jobboard/internal/appstate"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/session"
)

func newTestAuthHandler(actions *mockAuthActions, user *model.UserRecord) *AuthHandler {
	h := NewAuthHandler(AuthHandlerConfig{BaseURL: "https://jobs.example.com/"})
	h.actionsFor = func(*http.Request) (AuthActions, bool) { return actions, true }
	h.snapshot = snapshotOf(user)
	return h
}

func TestAuthHandler_Login_RedirectsByRole(t *testing.T) {
	admin := model.UserRecord{ID: "adm-1", Role: model.RoleAdmin}

	tests := []struct {
		name     string
		user     model.UserRecord
		redirect string
	}{
		{"employer", employer, "/employer-dashboard"},
		{"admin", admin, "/admin"},
		{"jobseeker", jobseeker, "/jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotEmail string
			actions := &mockAuthActions{
				signInFn: func(ctx context.Context, email, password string) session.Result {
					gotEmail = email
					return session.Result{Success: true}
				},
			}
			h := newTestAuthHandler(actions, &tt.user)

			w := httptest.NewRecorder()
			h.Login(w, jsonRequest(t, http.MethodPost, "/auth/login", map[string]string{
				"email":    tt.name + "@example.com",
				"password": "secret123",
			}))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
			}
			resp := decodeBody[authResponse](t, w)
			if resp.Redirect != tt.redirect {
				t.Errorf("redirect = %q, want %q", resp.Redirect, tt.redirect)
			}
			if resp.User == nil || resp.User.ID != tt.user.ID {
				t.Errorf("user = %+v, want %s", resp.User, tt.user.ID)
			}
			if gotEmail != tt.name+"@example.com" {
				t.Errorf("email passed = %q", gotEmail)
			}
		})
	}
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]string
		result     session.Result
		wantStatus int
	}{
		{"invalid credentials", map[string]string{"email": "a@example.com", "password": "x"},
			session.Result{Error: "Invalid login credentials"}, http.StatusUnauthorized},
		{"unexpected", map[string]string{"email": "a@example.com", "password": "x"},
			session.Result{Error: session.UnexpectedErrorMessage}, http.StatusInternalServerError},
		{"missing password", map[string]string{"email": "a@example.com"},
			session.Result{}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "not-an-email", "password": "x"},
			session.Result{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := &mockAuthActions{
				signInFn: func(ctx context.Context, email, password string) session.Result { return tt.result },
			}
			h := newTestAuthHandler(actions, nil)

			w := httptest.NewRecorder()
			h.Login(w, jsonRequest(t, http.MethodPost, "/auth/login", tt.body))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthHandler_Login_InvalidJSON(t *testing.T) {
	h := newTestAuthHandler(&mockAuthActions{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if got := decodeBody[apiErrorResponse](t, w); got.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", got.Code)
	}
}

func TestAuthHandler_Register(t *testing.T) {
	var gotName string
	var gotRole model.Role
	actions := &mockAuthActions{
		signUpFn: func(ctx context.Context, email, password, name string, role model.Role) session.Result {
			gotName, gotRole = name, role
			return session.Result{Success: true}
		},
	}
	h := newTestAuthHandler(actions, nil)

	w := httptest.NewRecorder()
	h.Register(w, jsonRequest(t, http.MethodPost, "/auth/register", map[string]string{
		"full_name":        " Jane Doe ",
		"email":            "jane@example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
	}))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[authResponse](t, w)
	if resp.Redirect != "/login" {
		t.Errorf("redirect = %q, want /login", resp.Redirect)
	}
	if gotName != "Jane Doe" {
		t.Errorf("name = %q, want trimmed", gotName)
	}
	if gotRole != model.RoleJobseeker {
		t.Errorf("role = %q, want jobseeker by default", gotRole)
	}
}

func TestAuthHandler_Register_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]string
		result     session.Result
		wantStatus int
		wantMsg    string
	}{
		{"admin self-registration", map[string]string{"full_name": "A", "email": "a@example.com", "password": "secret1", "role": "admin"},
			session.Result{Success: true}, http.StatusBadRequest, "role must be one of: jobseeker employer"},
		{"password mismatch", map[string]string{"full_name": "A", "email": "a@example.com", "password": "secret1", "confirm_password": "secret2"},
			session.Result{Success: true}, http.StatusBadRequest, "Passwords do not match"},
		{"missing name", map[string]string{"email": "a@example.com", "password": "secret1"},
			session.Result{Success: true}, http.StatusBadRequest, "full_name is required"},
		{"email taken", map[string]string{"full_name": "A", "email": "a@example.com", "password": "secret1", "role": "employer"},
			session.Result{Error: "User already registered"}, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := &mockAuthActions{
				signUpFn: func(ctx context.Context, email, password, name string, role model.Role) session.Result { return tt.result },
			}
			h := newTestAuthHandler(actions, nil)

			w := httptest.NewRecorder()
			h.Register(w, jsonRequest(t, http.MethodPost, "/auth/register", tt.body))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantMsg != "" {
				if got := decodeBody[apiErrorResponse](t, w); got.Message != tt.wantMsg {
					t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
				}
			}
		})
	}
}

func TestAuthHandler_Entry_PreparesAndReturnsState(t *testing.T) {
	prepared := 0
	actions := &mockAuthActions{prepareEntryFn: func(ctx context.Context) { prepared++ }}
	h := newTestAuthHandler(actions, nil)

	w := httptest.NewRecorder()
	h.RegisterEntry(w, httptest.NewRequest(http.MethodGet, "/auth/register", nil))

	if prepared != 1 {
		t.Errorf("PrepareEntry calls = %d, want 1", prepared)
	}
	resp := decodeBody[entryResponse](t, w)
	if resp.State.IsAuthenticated {
		t.Error("state should be unauthenticated")
	}
	if len(resp.Roles) != 2 {
		t.Errorf("roles = %v, want jobseeker and employer", resp.Roles)
	}

	w = httptest.NewRecorder()
	h.LoginEntry(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if prepared != 2 {
		t.Errorf("PrepareEntry calls = %d, want 2", prepared)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var local, global int
	actions := &mockAuthActions{
		signOutFn:           func(ctx context.Context) session.Result { local++; return session.Result{Success: true} },
		signOutEverywhereFn: func(ctx context.Context) session.Result { global++; return session.Result{Success: true} },
	}
	h := newTestAuthHandler(actions, &employer)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	h.Logout(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/logout?scope=global", nil))

	if local != 1 || global != 1 {
		t.Errorf("local = %d, global = %d, want 1 each", local, global)
	}
	if resp := decodeBody[authResponse](t, w); resp.Redirect != "/login" || !resp.Success {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAuthHandler_Logout_ServiceFailureStillRedirects(t *testing.T) {
	actions := &mockAuthActions{
		signOutFn: func(ctx context.Context) session.Result {
			return session.Result{Error: session.UnexpectedErrorMessage}
		},
	}
	h := newTestAuthHandler(actions, nil)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	resp := decodeBody[authResponse](t, w)
	if resp.Success || resp.Redirect != "/login" {
		t.Errorf("resp = %+v, want failure with /login", resp)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := newTestAuthHandler(&mockAuthActions{}, &employer)

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	snap := decodeBody[appstate.Snapshot](t, w)
	if !snap.IsAuthenticated || snap.User == nil || snap.User.Role != model.RoleEmployer {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestAuthHandler_ForgotPassword_UsesRecoverURL(t *testing.T) {
	var gotURL string
	actions := &mockAuthActions{
		requestPasswordResetFn: func(ctx context.Context, email, redirectURL string) session.Result {
			gotURL = redirectURL
			return session.Result{Success: true}
		},
	}
	h := newTestAuthHandler(actions, nil)

	w := httptest.NewRecorder()
	h.ForgotPassword(w, jsonRequest(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "a@example.com"}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotURL != "https://jobs.example.com/auth/recover" {
		t.Errorf("redirect url = %q", gotURL)
	}
}

func TestAuthHandler_Recover(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		result       session.Result
		wantStatus   int
		wantLocation string
	}{
		{"valid token", "/auth/recover?token=abc", session.Result{Success: true}, http.StatusSeeOther, "/reset-password"},
		{"expired token", "/auth/recover?token=abc", session.Result{Error: "Email link is invalid or has expired"}, http.StatusSeeOther, "/forgot-password"},
		{"missing token", "/auth/recover", session.Result{Success: true}, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := &mockAuthActions{
				completeRecoveryFn: func(ctx context.Context, token string) session.Result { return tt.result },
			}
			h := newTestAuthHandler(actions, nil)

			w := httptest.NewRecorder()
			h.Recover(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	t.Run("requires recovery session", func(t *testing.T) {
		h := newTestAuthHandler(&mockAuthActions{}, nil)
		w := httptest.NewRecorder()
		h.ResetPassword(w, jsonRequest(t, http.MethodPost, "/auth/reset-password", map[string]string{"password": "newsecret"}))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		actions := &mockAuthActions{
			updatePasswordFn: func(ctx context.Context, pw string) session.Result {
				return session.Result{Error: "Password should be at least 6 characters"}
			},
		}
		h := newTestAuthHandler(actions, &jobseeker)
		w := httptest.NewRecorder()
		h.ResetPassword(w, jsonRequest(t, http.MethodPost, "/auth/reset-password", map[string]string{"password": "abc"}))

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		var got string
		actions := &mockAuthActions{
			updatePasswordFn: func(ctx context.Context, pw string) session.Result {
				got = pw
				return session.Result{Success: true}
			},
		}
		h := newTestAuthHandler(actions, &jobseeker)
		w := httptest.NewRecorder()
		h.ResetPassword(w, jsonRequest(t, http.MethodPost, "/auth/reset-password", map[string]string{
			"password":         "newsecret",
			"confirm_password": "newsecret",
		}))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if got != "newsecret" {
			t.Errorf("password = %q", got)
		}
		if resp := decodeBody[authResponse](t, w); resp.Redirect != "/login" {
			t.Errorf("redirect = %q, want /login", resp.Redirect)
		}
	})
}

func TestAuthHandler_NoWorkspace_Returns500(t *testing.T) {
	h := NewAuthHandler(AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
