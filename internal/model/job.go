package model

import "time"

// Job は求人を表す。
type Job struct {
	ID              string
	EmployerID      string
	Title           string
	Company         string
	Location        string
	Salary          string
	Description     string // サニタイズ済みHTML
	Requirements    []string
	CompanyLogo     string
	Type            string
	ExperienceLevel string
	Remote          bool
	Category        string
	Deadline        *time.Time
	IsActive        bool
	SourceGUID      string // フィード取り込み時の元記事GUID
	PostedDate      time.Time
	UpdatedAt       time.Time
}

// JobInput は求人の作成・更新リクエストの内容。
// Requirementsは改行区切りのテキストとして受け取る。
type JobInput struct {
	Title           string
	Company         string
	Location        string
	Salary          string
	Description     string
	Requirements    string
	CompanyLogo     string
	Type            string
	ExperienceLevel string
	Remote          bool
	Category        string
	Deadline        *time.Time
	IsActive        *bool
}

// ApplicationStatus は応募の選考状態を表す。
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationReviewed  ApplicationStatus = "reviewed"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationInterview ApplicationStatus = "interview"
	ApplicationHired     ApplicationStatus = "hired"
)

// ParseApplicationStatus は文字列を選考状態に変換する。
func ParseApplicationStatus(s string) (ApplicationStatus, bool) {
	switch ApplicationStatus(s) {
	case ApplicationPending, ApplicationReviewed, ApplicationRejected, ApplicationInterview, ApplicationHired:
		return ApplicationStatus(s), true
	default:
		return "", false
	}
}

// Application は求人への応募を表す。
type Application struct {
	ID          string
	JobID       string
	UserID      string
	Status      ApplicationStatus
	Resume      string
	CoverLetter string
	AppliedDate time.Time
	UpdatedAt   time.Time
}

// ApplicationWithJob は応募と求人の概要を結合したモデル。
type ApplicationWithJob struct {
	Application
	JobTitle   string
	Company    string
	EmployerID string
}
