package wire

import (
	"time"

	"github.com/ogurasousui/worktime/internal/core/report"
	"github.com/ogurasousui/worktime/internal/core/session"
)

// Session はセッションのワイヤ表現です。時刻は RFC 3339 文字列で運びます。
type Session struct {
	ID              string      `json:"id"`
	EmployeeID      string      `json:"employee_id"`
	Kind            string      `json:"kind"`
	ProjectID       string      `json:"project_id,omitempty"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	DurationSeconds int64       `json:"duration_seconds"`
	Status          string      `json:"status"`
	Idle            *IdleReview `json:"idle,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// IdleReview はアイドルセッションの承認情報です。
type IdleReview struct {
	Reason         string     `json:"reason,omitempty"`
	ApprovalStatus string     `json:"approval_status"`
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ReviewNote     string     `json:"review_note,omitempty"`
}

type (
	StartRequest struct {
		EmployeeID string `json:"employee_id"`
		ProjectID  string `json:"project_id,omitempty"`
	}
	StopRequest struct {
		EmployeeID string `json:"employee_id"`
	}
	GetRunningRequest struct {
		EmployeeID string `json:"employee_id"`
		Kind       string `json:"kind"`
	}
	SessionResponse struct {
		Session *Session `json:"session"`
	}
	IdleTickRequest struct {
		EmployeeID  string `json:"employee_id"`
		IdleSeconds int64  `json:"idle_seconds"`
	}
	IdleTickResponse struct {
		Action  string   `json:"action"`
		Session *Session `json:"session,omitempty"`
	}
	UpdateReasonRequest struct {
		SessionID  string `json:"session_id"`
		EmployeeID string `json:"employee_id"`
		Reason     string `json:"reason"`
	}
	ReviewRequest struct {
		SessionID string `json:"session_id"`
		AdminID   string `json:"admin_id"`
		Decision  string `json:"decision"`
		Note      string `json:"note,omitempty"`
	}
	GetSessionRequest struct {
		ID string `json:"id"`
	}
	ListRequest struct {
		EmployeeID string     `json:"employee_id,omitempty"`
		ProjectID  string     `json:"project_id,omitempty"`
		Kind       string     `json:"kind,omitempty"`
		Status     string     `json:"status,omitempty"`
		From       *time.Time `json:"from,omitempty"`
		To         *time.Time `json:"to,omitempty"`
		PageSize   int        `json:"page_size,omitempty"`
		PageToken  string     `json:"page_token,omitempty"`
	}
	ListResponse struct {
		Sessions      []*Session `json:"sessions"`
		NextPageToken string     `json:"next_page_token,omitempty"`
	}
	ExportRequest struct {
		EmployeeID string     `json:"employee_id,omitempty"`
		ProjectID  string     `json:"project_id,omitempty"`
		Kind       string     `json:"kind,omitempty"`
		From       *time.Time `json:"from,omitempty"`
		To         *time.Time `json:"to,omitempty"`
	}
	SessionsResponse struct {
		Sessions []*Session `json:"sessions"`
	}
	ImportRequest struct {
		Sessions []*Session `json:"sessions"`
	}
	ImportResponse struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	ReportRequest struct {
		EmployeeID string     `json:"employee_id,omitempty"`
		ProjectID  string     `json:"project_id,omitempty"`
		From       *time.Time `json:"from,omitempty"`
		To         *time.Time `json:"to,omitempty"`
	}
)

// Report は集計結果のワイヤ表現です。
type Report struct {
	EmployeeID   string        `json:"employee_id,omitempty"`
	ProjectID    string        `json:"project_id,omitempty"`
	From         *time.Time    `json:"from,omitempty"`
	To           *time.Time    `json:"to,omitempty"`
	SessionCount int           `json:"session_count"`
	Totals       Totals        `json:"totals"`
	Employees    []Contributor `json:"employees"`
	Projects     []Contributor `json:"projects"`
}

// Totals は種別・承認状態ごとの集計です。
type Totals struct {
	SecondsByKind         map[string]int64        `json:"seconds_by_kind"`
	CountByKind           map[string]StatusCounts `json:"count_by_kind"`
	IdleCountByApproval   map[string]int          `json:"idle_count_by_approval"`
	IdleSecondsByApproval map[string]int64        `json:"idle_seconds_by_approval"`
}

// StatusCounts は稼働状態ごとの件数です。
type StatusCounts struct {
	Running int `json:"running"`
	Stopped int `json:"stopped"`
}

// Contributor は従業員またはプロジェクト単位の集計です。
type Contributor struct {
	ID     string `json:"id"`
	Totals Totals `json:"totals"`
}

// FromSession はドメインのセッションをワイヤ表現に変換します。
func FromSession(s *session.Session) *Session {
	if s == nil {
		return nil
	}
	out := &Session{
		ID:              s.ID,
		EmployeeID:      s.EmployeeID,
		Kind:            string(s.Kind),
		ProjectID:       s.ProjectID,
		StartTime:       s.StartTime.UTC(),
		EndTime:         utc(s.EndTime),
		DurationSeconds: s.DurationSeconds,
		Status:          string(s.Status),
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}
	if s.Idle != nil {
		out.Idle = &IdleReview{
			Reason:         s.Idle.Reason,
			ApprovalStatus: string(s.Idle.ApprovalStatus),
			ReviewedBy:     s.Idle.ReviewedBy,
			ReviewedAt:     utc(s.Idle.ReviewedAt),
			ReviewNote:     s.Idle.ReviewNote,
		}
	}
	return out
}

// ToSession はワイヤ表現をドメインのセッションに変換します。値の検証はユースケース側で行います。
func (s *Session) ToSession() *session.Session {
	if s == nil {
		return nil
	}
	out := &session.Session{
		ID:              s.ID,
		EmployeeID:      s.EmployeeID,
		Kind:            session.Kind(s.Kind),
		ProjectID:       s.ProjectID,
		StartTime:       s.StartTime.UTC(),
		EndTime:         utc(s.EndTime),
		DurationSeconds: s.DurationSeconds,
		Status:          session.Status(s.Status),
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}
	if s.Idle != nil {
		out.Idle = &session.IdleReview{
			Reason:         s.Idle.Reason,
			ApprovalStatus: session.ApprovalStatus(s.Idle.ApprovalStatus),
			ReviewedBy:     s.Idle.ReviewedBy,
			ReviewedAt:     utc(s.Idle.ReviewedAt),
			ReviewNote:     s.Idle.ReviewNote,
		}
	}
	return out
}

// FromSessions はセッション一覧を変換します。
func FromSessions(sessions []*session.Session) []*Session {
	out := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, FromSession(s))
	}
	return out
}

// ToSessions はワイヤ表現の一覧をドメインに変換します。
func ToSessions(sessions []*Session) []*session.Session {
	out := make([]*session.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ToSession())
	}
	return out
}

// FromReport は集計結果をワイヤ表現に変換します。
func FromReport(r *report.Report) *Report {
	if r == nil {
		return nil
	}
	return &Report{
		EmployeeID:   r.Scope.EmployeeID,
		ProjectID:    r.Scope.ProjectID,
		From:         utc(r.Scope.From),
		To:           utc(r.Scope.To),
		SessionCount: r.SessionCount,
		Totals:       fromTotals(r.Totals),
		Employees:    fromContributors(r.Employees),
		Projects:     fromContributors(r.Projects),
	}
}

func fromTotals(t report.Totals) Totals {
	out := Totals{
		SecondsByKind:         make(map[string]int64, len(t.SecondsByKind)),
		CountByKind:           make(map[string]StatusCounts, len(t.CountByKind)),
		IdleCountByApproval:   make(map[string]int, len(t.Idle.CountByApproval)),
		IdleSecondsByApproval: make(map[string]int64, len(t.Idle.SecondsByApproval)),
	}
	for k, v := range t.SecondsByKind {
		out.SecondsByKind[string(k)] = v
	}
	for k, v := range t.CountByKind {
		out.CountByKind[string(k)] = StatusCounts{Running: v.Running, Stopped: v.Stopped}
	}
	for k, v := range t.Idle.CountByApproval {
		out.IdleCountByApproval[string(k)] = v
	}
	for k, v := range t.Idle.SecondsByApproval {
		out.IdleSecondsByApproval[string(k)] = v
	}
	return out
}

func fromContributors(in []report.ContributorTotals) []Contributor {
	out := make([]Contributor, 0, len(in))
	for _, c := range in {
		out = append(out, Contributor{ID: c.ID, Totals: fromTotals(c.Totals)})
	}
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
