package guard

import "github.com/hitoshi/jobboard/internal/model"

const (
	JobsListPath          = "/jobs"
	JobDetailPath         = "/jobs/{id}"
	ApplicationsPath      = "/applications"
	EmployerDashboardPath = "/employer-dashboard"
	PostJobPath           = "/post-job"
	ManageJobsPath        = "/manage-jobs"
	EditJobPath           = "/edit-job/{id}"
	AdminPath             = "/admin"
)

const (
	employerOnlyNotice = "Only employers can access this page."
	adminOnlyNotice    = "You don't have permission to access this page"
)

var employerOnly = []model.Role{model.RoleEmployer}

// DefaultPolicies はページごとのポリシー一覧を返す。
func DefaultPolicies() []Policy {
	return []Policy{
		{Page: JobsListPath},
		{Page: JobDetailPath},
		{
			Page:        ApplicationsPath,
			RequireAuth: true,
			AuthNotice:  "Please log in to view your applications",
		},
		{Page: EmployerDashboardPath, RequireAuth: true, Roles: employerOnly, DenyRedirect: JobsPath, DenyNotice: employerOnlyNotice},
		{Page: PostJobPath, RequireAuth: true, Roles: employerOnly, DenyRedirect: JobsPath, DenyNotice: employerOnlyNotice},
		{Page: ManageJobsPath, RequireAuth: true, Roles: employerOnly, DenyRedirect: JobsPath, DenyNotice: employerOnlyNotice},
		{Page: EditJobPath, RequireAuth: true, Roles: employerOnly, DenyRedirect: JobsPath, DenyNotice: employerOnlyNotice},
		{
			Page:         AdminPath,
			RequireAuth:  true,
			Roles:        []model.Role{model.RoleAdmin},
			AuthNotice:   adminOnlyNotice,
			DenyRedirect: JobsPath,
			DenyNotice:   adminOnlyNotice,
		},
	}
}

// Lookup はページに対応するポリシーを返す。未登録のページは誰でも閲覧できる。
func Lookup(page string) Policy {
	for _, p := range DefaultPolicies() {
		if p.Page == page {
			return p
		}
	}
	return Policy{Page: page}
}
