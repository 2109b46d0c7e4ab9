package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/worktime/internal/core/session"
	pgdb "github.com/ogurasousui/worktime/internal/platform/db/postgres"
)

const (
	uniqueViolationCode = "23505"
	checkViolationCode  = "23514"

	oneRunningConstraint    = "work_sessions_one_running_idx"
	naturalKeyConstraint    = "work_sessions_natural_key_idx"
	intervalCheckConstraint = "work_sessions_interval_chk"
)

const sessionColumns = `id, employee_id, kind, project_id, start_time, end_time, duration_seconds, status,
               idle_reason, approval_status, reviewed_by, reviewed_at, review_note, created_at, updated_at`

// SessionRepository は PostgreSQL を利用したセッション永続化の実装です。
// 稼働中セッションの排他は部分一意インデックス work_sessions_one_running_idx で保証します。
type SessionRepository struct {
	pool pgdb.Queryer
}

// NewSessionRepository は SessionRepository を生成します。
func NewSessionRepository(pool pgdb.Queryer) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Insert は稼働中セッションを登録します。
func (r *SessionRepository) Insert(ctx context.Context, s *session.Session) (*session.Session, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO work_sessions (`+sessionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING `+sessionColumns,
		insertArgs(s)...,
	)

	created, err := scanSession(row)
	if err != nil {
		return nil, translateSessionPgError(err, session.ErrSessionNotFound)
	}
	return created, nil
}

// FindRunning は従業員の指定種別の稼働中セッションを取得します。
func (r *SessionRepository) FindRunning(ctx context.Context, employeeID string, kind session.Kind) (*session.Session, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+sessionColumns+`
          FROM work_sessions
         WHERE employee_id = $1 AND kind = $2 AND status = 'running'
         LIMIT 1
    `, employeeID, string(kind))

	found, err := scanSession(row)
	if err != nil {
		return nil, translateSessionPgError(err, session.ErrNoRunningSession)
	}
	return found, nil
}

// FindLatestStopped は終了時刻が最も新しい停止済みセッションを取得します。
func (r *SessionRepository) FindLatestStopped(ctx context.Context, employeeID string, kind session.Kind) (*session.Session, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+sessionColumns+`
          FROM work_sessions
         WHERE employee_id = $1 AND kind = $2 AND status = 'stopped'
         ORDER BY end_time DESC, id DESC
         LIMIT 1
    `, employeeID, string(kind))

	found, err := scanSession(row)
	if err != nil {
		return nil, translateSessionPgError(err, session.ErrSessionNotFound)
	}
	return found, nil
}

// Close は稼働中のセッションを停止します。既に停止済みなら ErrNoRunningSession を返します。
func (r *SessionRepository) Close(ctx context.Context, id string, endTime time.Time, durationSeconds int64) (*session.Session, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE work_sessions
           SET end_time = $2,
               duration_seconds = $3,
               status = 'stopped',
               updated_at = $2
         WHERE id = $1 AND status = 'running'
        RETURNING `+sessionColumns,
		id, endTime.UTC(), durationSeconds,
	)

	closed, err := scanSession(row)
	if err != nil {
		return nil, translateSessionPgError(err, session.ErrNoRunningSession)
	}
	return closed, nil
}

// FindByID は ID でセッションを取得します。
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*session.Session, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+sessionColumns+`
          FROM work_sessions
         WHERE id = $1
    `, id)

	found, err := scanSession(row)
	if err != nil {
		return nil, translateSessionPgError(err, session.ErrSessionNotFound)
	}
	return found, nil
}

// UpdateIdleReason は本人の承認待ちアイドルセッションの理由を更新します。
func (r *SessionRepository) UpdateIdleReason(ctx context.Context, id, employeeID, reason string, updatedAt time.Time) (*session.Session, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE work_sessions
           SET idle_reason = $3,
               updated_at = $4
         WHERE id = $1
           AND employee_id = $2
           AND kind = 'idle'
           AND approval_status = 'pending'
        RETURNING `+sessionColumns,
		id, employeeID, nullableText(reason), updatedAt.UTC(),
	)

	updated, err := scanSession(row)
	if err != nil {
		return nil, translateSessionPgError(err, session.ErrReasonFrozen)
	}
	return updated, nil
}

// ApplyReview は停止済みかつ承認待ちのアイドルセッションにレビュー結果を記録します。
func (r *SessionRepository) ApplyReview(ctx context.Context, id string, review session.Review) (*session.Session, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE work_sessions
           SET approval_status = $2,
               reviewed_by = $3,
               reviewed_at = $4,
               review_note = $5,
               updated_at = $4
         WHERE id = $1
           AND kind = 'idle'
           AND status = 'stopped'
           AND approval_status = 'pending'
        RETURNING `+sessionColumns,
		id, string(review.Status), review.ReviewedBy, review.ReviewedAt.UTC(), nullableText(review.Note),
	)

	reviewed, err := scanSession(row)
	if err != nil {
		return nil, translateSessionPgError(err, session.ErrNotReviewable)
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

	args := make([]any, 0, 8)
	conditions := make([]string, 0, 6)
	placeholder := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.EmployeeID != "" {
		conditions = append(conditions, "employee_id = "+placeholder(filter.EmployeeID))
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = "+placeholder(filter.ProjectID))
	}
	if filter.Kind != nil {
		conditions = append(conditions, "kind = "+placeholder(string(*filter.Kind)))
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = "+placeholder(string(*filter.Status)))
	}
	if filter.StartFrom != nil {
		conditions = append(conditions, "start_time >= "+placeholder(filter.StartFrom.UTC()))
	}
	if filter.StartTo != nil {
		conditions = append(conditions, "start_time < "+placeholder(filter.StartTo.UTC()))
	}

	var b strings.Builder
	b.WriteString("SELECT " + sessionColumns + " FROM work_sessions")
	if len(conditions) > 0 {
		b.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY start_time ASC, id ASC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT " + placeholder(filter.Limit))
	}
	if filter.Offset > 0 {
		b.WriteString(" OFFSET " + placeholder(filter.Offset))
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, translateSessionPgError(err, session.ErrSessionNotFound)
	}
	defer rows.Close()

	sessions := make([]*session.Session, 0, max(filter.Limit, 0))
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, translateSessionPgError(err, session.ErrSessionNotFound)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, translateSessionPgError(err, session.ErrSessionNotFound)
	}

	return sessions, nil
}

// Import は取り込んだセッションを登録します。(employee_id, kind, start_time) が既存なら false を返します。
func (r *SessionRepository) Import(ctx context.Context, s *session.Session) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        INSERT INTO work_sessions (`+sessionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (employee_id, kind, start_time) DO NOTHING
    `, insertArgs(s)...)
	if err != nil {
		return false, translateSessionPgError(err, session.ErrSessionNotFound)
	}
	return tag.RowsAffected() == 1, nil
}

func insertArgs(s *session.Session) []any {
	var (
		reason, approval, reviewedBy, note any
		reviewedAt                         any
	)
	if s.Idle != nil {
		reason = nullableText(s.Idle.Reason)
		approval = string(s.Idle.ApprovalStatus)
		reviewedBy = nullableText(s.Idle.ReviewedBy)
		reviewedAt = nullableTime(s.Idle.ReviewedAt)
		note = nullableText(s.Idle.ReviewNote)
	}

	return []any{
		s.ID,
		s.EmployeeID,
		string(s.Kind),
		nullableText(s.ProjectID),
		s.StartTime.UTC(),
		nullableTime(s.EndTime),
		s.DurationSeconds,
		string(s.Status),
		reason,
		approval,
		reviewedBy,
		reviewedAt,
		note,
		s.CreatedAt.UTC(),
		s.UpdatedAt.UTC(),
	}
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		s          session.Session
		kind       string
		status     string
		projectID  sql.NullString
		endTime    sql.NullTime
		reason     sql.NullString
		approval   sql.NullString
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
		note       sql.NullString
	)

	if err := row.Scan(
		&s.ID,
		&s.EmployeeID,
		&kind,
		&projectID,
		&s.StartTime,
		&endTime,
		&s.DurationSeconds,
		&status,
		&reason,
		&approval,
		&reviewedBy,
		&reviewedAt,
		&note,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	s.Kind = session.Kind(kind)
	s.Status = session.Status(status)
	s.ProjectID = projectID.String
	s.StartTime = s.StartTime.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.EndTime = timePtr(endTime)

	if approval.Valid {
		s.Idle = &session.IdleReview{
			Reason:         reason.String,
			ApprovalStatus: session.ApprovalStatus(approval.String),
			ReviewedBy:     reviewedBy.String,
			ReviewedAt:     timePtr(reviewedAt),
			ReviewNote:     note.String,
		}
	}

	return &s, nil
}

// translateSessionPgError は pgx のエラーをドメインエラーへ変換します。
// 行が返らなかった場合は noRows を返します。
func translateSessionPgError(err error, noRows error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return noRows
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			switch pgErr.ConstraintName {
			case oneRunningConstraint:
				return session.ErrAlreadyRunning
			case naturalKeyConstraint:
				return session.ErrDuplicateSession
			default:
				return fmt.Errorf("%w: %s", session.ErrDuplicateSession, pgErr.ConstraintName)
			}
		case checkViolationCode:
			if pgErr.ConstraintName == intervalCheckConstraint {
				return session.ErrInvalidInterval
			}
			return session.ErrInvalidRecord
		}
	}

	return err
}

func nullableText(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
