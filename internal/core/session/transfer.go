package session

import (
	"context"
	"fmt"
	"time"
)

// ExportInput はセッション記録の書き出し条件です。
type ExportInput struct {
	EmployeeID string
	ProjectID  string
	Kind       *Kind
	From       *time.Time
	To         *time.Time
}

// ImportInput は取り込むセッション記録です。
type ImportInput struct {
	Sessions []*Session
}

// ImportResult は取り込み結果です。Skipped は (EmployeeID, Kind, StartTime) が既存だった件数です。
type ImportResult struct {
	Imported int
	Skipped  int
}

// ExportSessions は条件に一致するセッション記録を開始時刻の昇順で返します。
func (s *Service) ExportSessions(ctx context.Context, in ExportInput) ([]*Session, error) {
	filter, err := buildListFilter(in.EmployeeID, in.ProjectID, in.Kind, nil, in.From, in.To)
	if err != nil {
		return nil, err
	}

	var sessions []*Session
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.List(txCtx, filter)
		if err != nil {
			return err
		}
		sessions = found
		return nil
	}); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ImportSessions はセッション記録を一つのトランザクションで取り込みます。
// 一件でも不正な記録があれば何も取り込みません。
func (s *Service) ImportSessions(ctx context.Context, in ImportInput) (*ImportResult, error) {
	records := make([]*Session, 0, len(in.Sessions))
	for i, rec := range in.Sessions {
		normalized, err := s.normalizeRecord(rec)
		if err != nil {
			return nil, wrapRecordError(i, err)
		}
		records = append(records, normalized)
	}

	result := &ImportResult{}
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		for i, rec := range records {
			inserted, err := s.repo.Import(txCtx, rec)
			if err != nil {
				return wrapRecordError(i, err)
			}
			if inserted {
				result.Imported++
			} else {
				result.Skipped++
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.log.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("sessions imported")
	return result, nil
}

func (s *Service) normalizeRecord(rec *Session) (*Session, error) {
	if rec == nil {
		return nil, ErrInvalidRecord
	}

	employeeID, err := normalizeEmployeeID(rec.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !isValidKind(rec.Kind) {
		return nil, ErrInvalidKind
	}
	if !isValidStatus(rec.Status) {
		return nil, ErrInvalidStatus
	}
	if rec.StartTime.IsZero() {
		return nil, fmt.Errorf("start time is required: %w", ErrInvalidRecord)
	}

	now := s.now()
	out := &Session{
		ID:         rec.ID,
		EmployeeID: employeeID,
		Kind:       rec.Kind,
		StartTime:  rec.StartTime.UTC().Truncate(timePrecision),
		Status:     rec.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if out.ID == "" {
		out.ID = s.newID()
	}
	if !rec.CreatedAt.IsZero() {
		out.CreatedAt = rec.CreatedAt.UTC().Truncate(timePrecision)
	}
	if !rec.UpdatedAt.IsZero() {
		out.UpdatedAt = rec.UpdatedAt.UTC().Truncate(timePrecision)
	}

	if rec.Kind == KindWork {
		if out.ProjectID, err = normalizeProjectID(rec.ProjectID); err != nil {
			return nil, err
		}
	} else if rec.ProjectID != "" {
		return nil, fmt.Errorf("project id is only allowed on work sessions: %w", ErrInvalidRecord)
	}

	switch rec.Status {
	case StatusRunning:
		if rec.EndTime != nil || rec.DurationSeconds != 0 {
			return nil, fmt.Errorf("running session must not have an end time: %w", ErrInvalidRecord)
		}
	case StatusStopped:
		if rec.EndTime == nil {
			return nil, fmt.Errorf("stopped session requires an end time: %w", ErrInvalidRecord)
		}
		end := rec.EndTime.UTC().Truncate(timePrecision)
		duration, err := ComputeDuration(out.StartTime, end)
		if err != nil {
			return nil, err
		}
		if duration != rec.DurationSeconds {
			return nil, fmt.Errorf("duration %d does not match end-start %d: %w", rec.DurationSeconds, duration, ErrInvalidRecord)
		}
		out.EndTime = &end
		out.DurationSeconds = duration
	}

	if rec.Kind != KindIdle {
		if rec.Idle != nil {
			return nil, fmt.Errorf("approval data is only allowed on idle sessions: %w", ErrInvalidRecord)
		}
		return out, nil
	}

	review, err := normalizeImportedReview(rec)
	if err != nil {
		return nil, err
	}
	out.Idle = review
	return out, nil
}

func normalizeImportedReview(rec *Session) (*IdleReview, error) {
	if rec.Idle == nil {
		return &IdleReview{ApprovalStatus: ApprovalPending}, nil
	}

	reason, err := normalizeText(rec.Idle.Reason, ErrInvalidReason)
	if err != nil {
		return nil, err
	}
	note, err := normalizeText(rec.Idle.ReviewNote, ErrInvalidNote)
	if err != nil {
		return nil, err
	}

	status := rec.Idle.ApprovalStatus
	if status == "" {
		status = ApprovalPending
	}
	if !isValidApprovalStatus(status) {
		return nil, ErrInvalidApprovalStatus
	}

	review := &IdleReview{Reason: reason, ApprovalStatus: status, ReviewNote: note}
	if status == ApprovalPending {
		if rec.Idle.ReviewedBy != "" || rec.Idle.ReviewedAt != nil {
			return nil, fmt.Errorf("pending session must not carry review data: %w", ErrInvalidRecord)
		}
		return review, nil
	}

	if rec.Status != StatusStopped {
		return nil, fmt.Errorf("only stopped sessions can be reviewed: %w", ErrInvalidRecord)
	}
	if rec.Idle.ReviewedBy == "" || rec.Idle.ReviewedAt == nil {
		return nil, fmt.Errorf("reviewed session requires reviewer and review time: %w", ErrInvalidRecord)
	}
	reviewedAt := rec.Idle.ReviewedAt.UTC().Truncate(timePrecision)
	review.ReviewedBy = rec.Idle.ReviewedBy
	review.ReviewedAt = &reviewedAt
	return review, nil
}
