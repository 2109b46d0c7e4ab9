package session

import "errors"

var (
	ErrAlreadyRunning        = errors.New("session: already running")
	ErrNoRunningSession      = errors.New("session: no running session")
	ErrInvalidInterval       = errors.New("session: invalid interval")
	ErrNotReviewable         = errors.New("session: not reviewable")
	ErrReasonFrozen          = errors.New("session: reason is frozen after review")
	ErrSessionNotFound       = errors.New("session: not found")
	ErrDuplicateSession      = errors.New("session: duplicate session record")
	ErrInvalidID             = errors.New("session: invalid id")
	ErrInvalidEmployeeID     = errors.New("session: invalid employee id")
	ErrInvalidAdminID        = errors.New("session: invalid admin id")
	ErrInvalidProjectID      = errors.New("session: invalid project id")
	ErrInvalidKind           = errors.New("session: invalid kind")
	ErrInvalidStatus         = errors.New("session: invalid status")
	ErrInvalidApprovalStatus = errors.New("session: invalid approval status")
	ErrInvalidDecision       = errors.New("session: invalid decision")
	ErrInvalidReason         = errors.New("session: invalid reason")
	ErrInvalidNote           = errors.New("session: invalid note")
	ErrInvalidIdleSeconds    = errors.New("session: invalid idle seconds")
	ErrInvalidPageSize       = errors.New("session: invalid page size")
	ErrInvalidPageToken      = errors.New("session: invalid page token")
	ErrInvalidTimeRange      = errors.New("session: invalid time range")
	ErrInvalidRecord         = errors.New("session: invalid record")
)
