package handler

import (
	"errors"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/ogurasousui/worktime/internal/core/report"
	"github.com/ogurasousui/worktime/internal/core/session"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, wire.ErrMalformed),
		errors.Is(err, session.ErrInvalidID),
		errors.Is(err, session.ErrInvalidEmployeeID),
		errors.Is(err, session.ErrInvalidAdminID),
		errors.Is(err, session.ErrInvalidProjectID),
		errors.Is(err, session.ErrInvalidKind),
		errors.Is(err, session.ErrInvalidStatus),
		errors.Is(err, session.ErrInvalidApprovalStatus),
		errors.Is(err, session.ErrInvalidDecision),
		errors.Is(err, session.ErrInvalidReason),
		errors.Is(err, session.ErrInvalidNote),
		errors.Is(err, session.ErrInvalidIdleSeconds),
		errors.Is(err, session.ErrInvalidPageSize),
		errors.Is(err, session.ErrInvalidPageToken),
		errors.Is(err, session.ErrInvalidTimeRange),
		errors.Is(err, session.ErrInvalidRecord),
		errors.Is(err, report.ErrInvalidScope):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, session.ErrAlreadyRunning), errors.Is(err, session.ErrDuplicateSession):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, session.ErrNoRunningSession),
		errors.Is(err, session.ErrNotReviewable),
		errors.Is(err, session.ErrReasonFrozen):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, session.ErrInvalidInterval):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
