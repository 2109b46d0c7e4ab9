package session

import (
	"context"
	"errors"
)

// ReviewInput は管理者によるアイドルセッションのレビュー入力です。
type ReviewInput struct {
	SessionID string
	AdminID   string
	Decision  Decision
	Note      string
}

// UpdateReasonInput は従業員によるアイドル理由の更新入力です。
type UpdateReasonInput struct {
	SessionID  string
	EmployeeID string
	Reason     string
}

// ReviewIdleSession は停止済みかつ未レビューのアイドルセッションを承認または却下します。
// 決定済みのセッションへの再レビューは同じ決定であっても ErrNotReviewable になります。
func (s *Service) ReviewIdleSession(ctx context.Context, in ReviewInput) (*Session, error) {
	id, err := normalizeID(in.SessionID)
	if err != nil {
		return nil, err
	}
	adminID, err := normalizeAdminID(in.AdminID)
	if err != nil {
		return nil, err
	}
	status, ok := in.Decision.ApprovalStatus()
	if !ok {
		return nil, ErrInvalidDecision
	}
	note, err := normalizeText(in.Note, ErrInvalidNote)
	if err != nil {
		return nil, err
	}

	var reviewed *Session
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		result, err := s.repo.ApplyReview(txCtx, id, Review{
			Status:     status,
			ReviewedBy: adminID,
			ReviewedAt: s.now(),
			Note:       note,
		})
		if errors.Is(err, ErrNotReviewable) {
			// 存在しないセッションは NotFound として区別する
			if _, findErr := s.repo.FindByID(txCtx, id); findErr != nil {
				return findErr
			}
		}
		if err != nil {
			return err
		}
		reviewed = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", reviewed.ID).
		Str("employee_id", reviewed.EmployeeID).
		Str("admin_id", adminID).
		Str("approval_status", string(status)).
		Msg("idle session reviewed")
	return reviewed, nil
}

// UpdateIdleReason はアイドル理由を更新します。レビュー後は ErrReasonFrozen を返します。
func (s *Service) UpdateIdleReason(ctx context.Context, in UpdateReasonInput) (*Session, error) {
	id, err := normalizeID(in.SessionID)
	if err != nil {
		return nil, err
	}
	employeeID, err := normalizeEmployeeID(in.EmployeeID)
	if err != nil {
		return nil, err
	}
	reason, err := normalizeText(in.Reason, ErrInvalidReason)
	if err != nil {
		return nil, err
	}

	var updated *Session
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		result, err := s.repo.UpdateIdleReason(txCtx, id, employeeID, reason, s.now())
		if errors.Is(err, ErrReasonFrozen) {
			existing, findErr := s.repo.FindByID(txCtx, id)
			if findErr != nil {
				return findErr
			}
			if existing.EmployeeID != employeeID || existing.Kind != KindIdle {
				return ErrSessionNotFound
			}
		}
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

func normalizeAdminID(raw string) (string, error) {
	id, err := normalizeEmployeeID(raw)
	if err != nil {
		return "", ErrInvalidAdminID
	}
	return id, nil
}
