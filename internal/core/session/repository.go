package session

import (
	"context"
	"time"
)

// Repository はセッション永続化の抽象です。
//
// Insert は (EmployeeID, Kind) に稼働中セッションが存在する場合 ErrAlreadyRunning を返します。
// この判定はストア側の一意制約で行い、読み取り後の書き込みで代用してはいけません。
//
// Close・UpdateIdleReason・ApplyReview はいずれも条件付き更新です。条件に一致しない場合は
// それぞれ ErrNoRunningSession・ErrReasonFrozen・ErrNotReviewable を返します。
// FindLatestStopped は終了時刻が最も新しい停止済みセッションを返し、無ければ ErrSessionNotFound を返します。
// Import は (EmployeeID, Kind, StartTime) が既存の場合 false を返します。
type Repository interface {
	Insert(ctx context.Context, s *Session) (*Session, error)
	FindRunning(ctx context.Context, employeeID string, kind Kind) (*Session, error)
	FindLatestStopped(ctx context.Context, employeeID string, kind Kind) (*Session, error)
	Close(ctx context.Context, id string, endTime time.Time, durationSeconds int64) (*Session, error)
	FindByID(ctx context.Context, id string) (*Session, error)
	UpdateIdleReason(ctx context.Context, id, employeeID, reason string, updatedAt time.Time) (*Session, error)
	ApplyReview(ctx context.Context, id string, review Review) (*Session, error)
	List(ctx context.Context, filter ListFilter) ([]*Session, error)
	Import(ctx context.Context, s *Session) (bool, error)
}

// ListFilter は一覧取得用フィルタです。ゼロ値の項目は条件に含めません。
// StartFrom は含み、StartTo は含みません。Limit が 0 の場合は全件を返します。
type ListFilter struct {
	EmployeeID string
	ProjectID  string
	Kind       *Kind
	Status     *Status
	StartFrom  *time.Time
	StartTo    *time.Time
	Limit      int
	Offset     int
}
