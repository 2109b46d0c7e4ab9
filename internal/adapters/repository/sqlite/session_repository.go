package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/worktime/internal/core/session"
	litedb "github.com/ogurasousui/worktime/internal/platform/db/sqlite"
)

const sessionColumns = `id, employee_id, kind, project_id, start_time, end_time, duration_seconds, status,
       idle_reason, approval_status, reviewed_by, reviewed_at, review_note, created_at, updated_at`

const insertSession = `INSERT INTO work_sessions (` + sessionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SessionRepository は SQLite を利用したセッション永続化の実装です。
type SessionRepository struct {
	db litedb.Queryer
}

// NewSessionRepository は SessionRepository を生成します。
func NewSessionRepository(db litedb.Queryer) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert は稼働中セッションを登録します。
func (r *SessionRepository) Insert(ctx context.Context, s *session.Session) (*session.Session, error) {
	q := litedb.QueryerFromContext(ctx, r.db)
	row := q.QueryRowContext(ctx, insertSession+` RETURNING `+sessionColumns, insertArgs(s)...)

	created, err := scanSession(row)
	if err != nil {
		return nil, translateSessionError(err, session.ErrSessionNotFound)
	}
	return created, nil
}

// FindRunning は従業員の指定種別の稼働中セッションを取得します。
func (r *SessionRepository) FindRunning(ctx context.Context, employeeID string, kind session.Kind) (*session.Session, error) {
	q := litedb.QueryerFromContext(ctx, r.db)
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+`
  FROM work_sessions
 WHERE employee_id = ? AND kind = ? AND status = 'running'
 LIMIT 1`, employeeID, string(kind))

	found, err := scanSession(row)
	if err != nil {
		return nil, translateSessionError(err, session.ErrNoRunningSession)
	}
	return found, nil
}

// FindLatestStopped は終了時刻が最も新しい停止済みセッションを取得します。
func (r *SessionRepository) FindLatestStopped(ctx context.Context, employeeID string, kind session.Kind) (*session.Session, error) {
	q := litedb.QueryerFromContext(ctx, r.db)
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+`
  FROM work_sessions
 WHERE employee_id = ? AND kind = ? AND status = 'stopped'
 ORDER BY end_time DESC, id DESC
 LIMIT 1`, employeeID, string(kind))

	found, err := scanSession(row)
	if err != nil {
		return nil, translateSessionError(err, session.ErrSessionNotFound)
	}
	return found, nil
}

// Close は稼働中のセッションを停止します。
func (r *SessionRepository) Close(ctx context.Context, id string, endTime time.Time, durationSeconds int64) (*session.Session, error) {
	end := litedb.FormatTime(endTime)
	q := litedb.QueryerFromContext(ctx, r.db)
	row := q.QueryRowContext(ctx, `UPDATE work_sessions
   SET end_time = ?, duration_seconds = ?, status = 'stopped', updated_at = ?
 WHERE id = ? AND status = 'running'
RETURNING `+sessionColumns, end, durationSeconds, end, id)

	closed, err := scanSession(row)
	if err != nil {
		return nil, translateSessionError(err, session.ErrNoRunningSession)
	}
	return closed, nil
}

// FindByID は ID でセッションを取得します。
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*session.Session, error) {
	q := litedb.QueryerFromContext(ctx, r.db)
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM work_sessions WHERE id = ?`, id)

	found, err := scanSession(row)
	if err != nil {
		return nil, translateSessionError(err, session.ErrSessionNotFound)
	}
	return found, nil
}

// UpdateIdleReason は本人の承認待ちアイドルセッションの理由を更新します。
func (r *SessionRepository) UpdateIdleReason(ctx context.Context, id, employeeID, reason string, updatedAt time.Time) (*session.Session, error) {
	q := litedb.QueryerFromContext(ctx, r.db)
	row := q.QueryRowContext(ctx, `UPDATE work_sessions
   SET idle_reason = ?, updated_at = ?
 WHERE id = ? AND employee_id = ? AND kind = 'idle' AND approval_status = 'pending'
RETURNING `+sessionColumns, nullString(reason), litedb.FormatTime(updatedAt), id, employeeID)

	updated, err := scanSession(row)
	if err != nil {
		return nil, translateSessionError(err, session.ErrReasonFrozen)
	}
	return updated, nil
}

// ApplyReview は停止済みかつ承認待ちのアイドルセッションにレビュー結果を記録します。
func (r *SessionRepository) ApplyReview(ctx context.Context, id string, review session.Review) (*session.Session, error) {
	reviewedAt := litedb.FormatTime(review.ReviewedAt)
	q := litedb.QueryerFromContext(ctx, r.db)
	row := q.QueryRowContext(ctx, `UPDATE work_sessions
   SET approval_status = ?, reviewed_by = ?, reviewed_at = ?, review_note = ?, updated_at = ?
 WHERE id = ? AND kind = 'idle' AND status = 'stopped' AND approval_status = 'pending'
RETURNING `+sessionColumns,
		string(review.Status), review.ReviewedBy, reviewedAt, nullString(review.Note), reviewedAt, id)

	reviewed, err := scanSession(row)
	if err != nil {
		return nil, translateSessionError(err, session.ErrNotReviewable)
	}
	return reviewed, nil
}

// List はフィルタに一致するセッションを開始時刻の昇順で取得します。
func (r *SessionRepository) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	if filter.Limit < 0 {
		return nil, session.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, session.ErrInvalidPageToken
	}

	var (
		conditions []string
		args       []any
	)
	add := func(cond string, v any) {
		conditions = append(conditions, cond)
		args = append(args, v)
	}
	if filter.EmployeeID != "" {
		add("employee_id = ?", filter.EmployeeID)
	}
	if filter.ProjectID != "" {
		add("project_id = ?", filter.ProjectID)
	}
	if filter.Kind != nil {
		add("kind = ?", string(*filter.Kind))
	}
	if filter.Status != nil {
		add("status = ?", string(*filter.Status))
	}
	if filter.StartFrom != nil {
		add("start_time >= ?", litedb.FormatTime(*filter.StartFrom))
	}
	if filter.StartTo != nil {
		add("start_time < ?", litedb.FormatTime(*filter.StartTo))
	}

	query := `SELECT ` + sessionColumns + ` FROM work_sessions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY start_time ASC, id ASC`
	// SQLite は OFFSET 単独を受け付けないため LIMIT -1 で全件を表す
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit == 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	q := litedb.QueryerFromContext(ctx, r.db)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateSessionError(err, session.ErrSessionNotFound)
	}
	defer rows.Close()

	sessions := make([]*session.Session, 0, filter.Limit)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, translateSessionError(err, session.ErrSessionNotFound)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, translateSessionError(err, session.ErrSessionNotFound)
	}
	return sessions, nil
}

// Import は取り込んだセッションを登録します。(employee_id, kind, start_time) が既存なら false を返します。
func (r *SessionRepository) Import(ctx context.Context, s *session.Session) (bool, error) {
	q := litedb.QueryerFromContext(ctx, r.db)
	res, err := q.ExecContext(ctx, insertSession+`
ON CONFLICT (employee_id, kind, start_time) DO NOTHING`, insertArgs(s)...)
	if err != nil {
		return false, translateSessionError(err, session.ErrSessionNotFound)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n == 1, nil
}

func insertArgs(s *session.Session) []any {
	var reason, approval, reviewedBy, reviewedAt, note sql.NullString
	if s.Idle != nil {
		reason = nullString(s.Idle.Reason)
		approval = nullString(string(s.Idle.ApprovalStatus))
		reviewedBy = nullString(s.Idle.ReviewedBy)
		reviewedAt = nullTime(s.Idle.ReviewedAt)
		note = nullString(s.Idle.ReviewNote)
	}

	return []any{
		s.ID,
		s.EmployeeID,
		string(s.Kind),
		nullString(s.ProjectID),
		litedb.FormatTime(s.StartTime),
		nullTime(s.EndTime),
		s.DurationSeconds,
		string(s.Status),
		reason,
		approval,
		reviewedBy,
		reviewedAt,
		note,
		litedb.FormatTime(s.CreatedAt),
		litedb.FormatTime(s.UpdatedAt),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*session.Session, error) {
	var (
		s                                  session.Session
		kind, status                       string
		start, created, updated            string
		projectID, end                     sql.NullString
		reason, approval, reviewedBy, note sql.NullString
		reviewedAt                         sql.NullString
	)

	if err := row.Scan(
		&s.ID, &s.EmployeeID, &kind, &projectID, &start, &end, &s.DurationSeconds, &status,
		&reason, &approval, &reviewedBy, &reviewedAt, &note, &created, &updated,
	); err != nil {
		return nil, err
	}

	var err error
	if s.StartTime, err = litedb.ParseTime(start); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = litedb.ParseTime(created); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = litedb.ParseTime(updated); err != nil {
		return nil, err
	}
	if s.EndTime, err = parseNullTime(end); err != nil {
		return nil, err
	}

	s.Kind = session.Kind(kind)
	s.Status = session.Status(status)
	s.ProjectID = projectID.String

	if approval.Valid {
		s.Idle = &session.IdleReview{
			Reason:         reason.String,
			ApprovalStatus: session.ApprovalStatus(approval.String),
			ReviewedBy:     reviewedBy.String,
			ReviewNote:     note.String,
		}
		if s.Idle.ReviewedAt, err = parseNullTime(reviewedAt); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

func translateSessionError(err error, noRows error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return noRows
	}
	if litedb.IsUniqueViolation(err) {
		switch cols := uniqueColumns(err); cols {
		case oneRunningColumns:
			return session.ErrAlreadyRunning
		case naturalKeyColumns:
			return session.ErrDuplicateSession
		default:
			return fmt.Errorf("%w: %s", session.ErrDuplicateSession, cols)
		}
	}
	if litedb.IsCheckViolation(err) {
		if strings.Contains(err.Error(), "work_sessions_interval_chk") {
			return session.ErrInvalidInterval
		}
		return fmt.Errorf("%w: %v", session.ErrInvalidRecord, err)
	}
	return err
}

// SQLite の一意制約違反はインデックス名ではなく列一覧で報告される。
// 例: "UNIQUE constraint failed: work_sessions.employee_id, work_sessions.kind (2067)"
const (
	uniqueFailedPrefix = "UNIQUE constraint failed: "
	oneRunningColumns  = "work_sessions.employee_id, work_sessions.kind"
	naturalKeyColumns  = oneRunningColumns + ", work_sessions.start_time"
)

// uniqueColumns は一意制約違反メッセージから列一覧を取り出します。
func uniqueColumns(err error) string {
	_, cols, ok := strings.Cut(err.Error(), uniqueFailedPrefix)
	if !ok {
		return ""
	}
	cols, _, _ = strings.Cut(cols, " (")
	return strings.TrimSpace(cols)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(v *time.Time) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: litedb.FormatTime(*v), Valid: true}
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := litedb.ParseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
