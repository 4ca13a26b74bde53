package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/jobboard/internal/guard"
	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/middleware"
)

// HealthChecker はヘルスチェックでDB接続を確認する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	MetricsHandler     http.Handler // nilの場合は/metricsを公開しない
	HealthChecker      HealthChecker
	Workspaces         middleware.WorkspaceProvider
	ClientConfig       middleware.ClientConfig
	CSRFConfig         middleware.CSRFConfig
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter

	// 認証
	AuthConfig AuthHandlerConfig

	// 求人・応募
	JobService         JobServiceInterface
	JobImporter        JobImporterInterface
	ApplicationService ApplicationServiceInterface

	// 管理
	AdminService AdminServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS
//	  → Workspace → RateLimit(General) → CSRF → ページごとのガード
//
// /health、/metrics、/auth/csrf-tokenはワークスペースの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, mc))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins...))

	authHandler := NewAuthHandler(deps.AuthConfig)
	jobHandler := NewJobHandler(deps.JobService, deps.JobImporter, deps.ApplicationService)
	appHandler := NewApplicationHandler(deps.ApplicationService)
	adminHandler := NewAdminHandler(deps.AdminService)

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/auth/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// ページごとのアクセス制御
	page := func(path string) func(http.Handler) http.Handler {
		return guard.Require(guard.Lookup(path), middleware.Snapshot, mc)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewWorkspaceMiddleware(deps.Workspaces, deps.ClientConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", authHandler.LoginEntry)
			r.Get("/register", authHandler.RegisterEntry)
			r.Get("/me", authHandler.Me)
			r.Get("/recover", authHandler.Recover)
			r.Post("/logout", authHandler.Logout)

			// 認証試行は接続元IPごとに制限する
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.AuthAttemptMiddleware())
				r.Post("/login", authHandler.Login)
				r.Post("/register", authHandler.Register)
				r.Post("/forgot-password", authHandler.ForgotPassword)
				r.Post("/reset-password", authHandler.ResetPassword)
			})
		})

		// 公開ページ
		r.With(page(guard.JobsListPath)).Get("/jobs", jobHandler.ListJobs)
		r.With(page(guard.JobDetailPath)).Get("/jobs/{id}", jobHandler.GetJob)
		r.Post("/jobs/{id}/apply", appHandler.Apply)

		// ログインが必要なページ
		r.With(page(guard.ApplicationsPath)).Get("/applications", appHandler.ListApplications)

		// 雇用者向けページ
		r.With(page(guard.EmployerDashboardPath)).Get("/employer-dashboard", jobHandler.Dashboard)
		r.With(page(guard.EmployerDashboardPath)).Put("/applications/{id}/status", appHandler.UpdateStatus)

		r.Route("/post-job", func(r chi.Router) {
			r.Use(page(guard.PostJobPath))
			r.Get("/", jobHandler.JobForm)
			r.Post("/", jobHandler.CreateJob)
		})

		r.Route("/manage-jobs", func(r chi.Router) {
			r.Use(page(guard.ManageJobsPath))
			r.Get("/", jobHandler.ManageJobs)
			r.Post("/import", jobHandler.ImportJobs)
			r.Delete("/{id}", jobHandler.DeleteJob)
		})

		r.Route("/edit-job/{id}", func(r chi.Router) {
			r.Use(page(guard.EditJobPath))
			r.Get("/", jobHandler.EditJob)
			r.Put("/", jobHandler.UpdateJob)
		})

		// 管理者ページ
		r.Route("/admin", func(r chi.Router) {
			r.Use(page(guard.AdminPath))
			r.Get("/", adminHandler.Home)
			r.Get("/users", adminHandler.ListUsers)
			r.Patch("/users/{id}", adminHandler.UpdateUser)
			r.Delete("/users/{id}", adminHandler.BanUser)
			r.Put("/jobs/{id}/moderate", adminHandler.ModerateJob)
		})
	})

	return r
}

// healthHandler はDBへの疎通を確認する。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
