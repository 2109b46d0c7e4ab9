package session

import "time"

// Kind はセッションの種別を表します。種別ごとに従業員あたり一件だけ稼働できます。
type Kind string

const (
	KindWork  Kind = "work"
	KindBreak Kind = "break"
	KindIdle  Kind = "idle"
)

// Status はセッションの稼働状態を表します。
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// ApprovalStatus はアイドルセッションの承認状態を表します。
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Decision は管理者によるレビュー結果です。
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Session は作業・休憩・アイドルのいずれかの計測区間です。
type Session struct {
	ID              string
	EmployeeID      string
	Kind            Kind
	ProjectID       string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int64
	Status          Status
	Idle            *IdleReview
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IdleReview はアイドルセッションにのみ付与される承認情報です。
type IdleReview struct {
	Reason         string
	ApprovalStatus ApprovalStatus
	ReviewedBy     string
	ReviewedAt     *time.Time
	ReviewNote     string
}

// Review は ApplyReview に渡すレビュー内容です。
type Review struct {
	Status     ApprovalStatus
	ReviewedBy string
	ReviewedAt time.Time
	Note       string
}

// IsRunning はセッションが稼働中かどうかを返します。
func (s *Session) IsRunning() bool {
	return s != nil && s.Status == StatusRunning
}

// Reviewable はアイドルセッションがレビュー可能な状態かどうかを返します。
func (s *Session) Reviewable() bool {
	if s == nil || s.Kind != KindIdle || s.Status != StatusStopped || s.Idle == nil {
		return false
	}
	return s.Idle.ApprovalStatus == ApprovalPending
}

// ApprovalStatus は Decision に対応する承認状態を返します。
func (d Decision) ApprovalStatus() (ApprovalStatus, bool) {
	switch d {
	case DecisionApprove:
		return ApprovalApproved, true
	case DecisionReject:
		return ApprovalRejected, true
	default:
		return "", false
	}
}

func isValidKind(kind Kind) bool {
	switch kind {
	case KindWork, KindBreak, KindIdle:
		return true
	default:
		return false
	}
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusRunning, StatusStopped:
		return true
	default:
		return false
	}
}

func isValidApprovalStatus(status ApprovalStatus) bool {
	switch status {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	default:
		return false
	}
}

// ParseKind は文字列から Kind を取得します。
func ParseKind(raw string) (Kind, error) {
	kind := Kind(raw)
	if !isValidKind(kind) {
		return "", ErrInvalidKind
	}
	return kind, nil
}

// ParseStatus は文字列から Status を取得します。
func ParseStatus(raw string) (Status, error) {
	status := Status(raw)
	if !isValidStatus(status) {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// ParseApprovalStatus は文字列から ApprovalStatus を取得します。
func ParseApprovalStatus(raw string) (ApprovalStatus, error) {
	status := ApprovalStatus(raw)
	if !isValidApprovalStatus(status) {
		return "", ErrInvalidApprovalStatus
	}
	return status, nil
}

// ParseDecision は文字列から Decision を取得します。
func ParseDecision(raw string) (Decision, error) {
	d := Decision(raw)
	if _, ok := d.ApprovalStatus(); !ok {
		return "", ErrInvalidDecision
	}
	return d, nil
}
