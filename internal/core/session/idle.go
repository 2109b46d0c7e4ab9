package session

import (
	"context"
	"errors"
	"math"
	"time"
)

// time.Duration に変換しても桁あふれしない最大のアイドル秒数。
const maxIdleSeconds = math.MaxInt64 / int64(time.Second)

// IdleAction はアイドルサンプル処理の結果種別です。
type IdleAction string

const (
	IdleActionNone   IdleAction = "none"
	IdleActionOpened IdleAction = "opened"
	IdleActionClosed IdleAction = "closed"
)

// RecordIdleTickInput はアイドル秒数サンプルです。
type RecordIdleTickInput struct {
	EmployeeID  string
	IdleSeconds int64
}

// IdleTickResult はサンプル処理の結果です。Action が none の場合 Session は
// 稼働中のアイドルセッション (存在すれば) を指します。
type IdleTickResult struct {
	Action  IdleAction
	Session *Session
}

// RecordIdleTick はアイドル秒数のサンプルを反映します。
//
// 閾値以上でアイドルセッションが無ければ、アイドル開始時刻まで遡って開始します。
// 閾値未満でアイドルセッションが稼働中なら現在時刻で終了します。
// 同じサンプルが重複して届いても二重に開始・終了はしません。
// 開始時刻が直前に終了したアイドルセッションの終了時刻より前になるサンプルは
// 再配送とみなし、何もしません。
func (s *Service) RecordIdleTick(ctx context.Context, in RecordIdleTickInput) (*IdleTickResult, error) {
	employeeID, err := normalizeEmployeeID(in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if in.IdleSeconds < 0 || in.IdleSeconds > maxIdleSeconds {
		return nil, ErrInvalidIdleSeconds
	}

	now := s.now()
	idle := time.Duration(in.IdleSeconds) * time.Second

	running, err := s.repo.FindRunning(ctx, employeeID, KindIdle)
	if err != nil && !errors.Is(err, ErrNoRunningSession) {
		return nil, err
	}

	if idle >= s.idleThreshold {
		if running != nil {
			return &IdleTickResult{Action: IdleActionNone, Session: running}, nil
		}

		start := now.Add(-idle)
		last, err := s.repo.FindLatestStopped(ctx, employeeID, KindIdle)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		if last != nil && last.EndTime != nil && start.Before(*last.EndTime) {
			s.log.Debug().
				Str("employee_id", employeeID).
				Str("session_id", last.ID).
				Time("start_time", start).
				Msg("stale idle tick overlaps closed idle session")
			return &IdleTickResult{Action: IdleActionNone}, nil
		}

		opened, err := s.insertRunning(ctx, employeeID, KindIdle, "", start)
		if IsAlreadyRunning(err) {
			// 別の配送が先に開始済み
			current, findErr := s.repo.FindRunning(ctx, employeeID, KindIdle)
			if findErr != nil && !errors.Is(findErr, ErrNoRunningSession) {
				return nil, findErr
			}
			return &IdleTickResult{Action: IdleActionNone, Session: current}, nil
		}
		if err != nil {
			return nil, err
		}

		s.log.Info().
			Str("employee_id", employeeID).
			Int64("idle_seconds", in.IdleSeconds).
			Time("start_time", opened.StartTime).
			Msg("idle session opened")
		return &IdleTickResult{Action: IdleActionOpened, Session: opened}, nil
	}

	if running == nil {
		return &IdleTickResult{Action: IdleActionNone}, nil
	}

	closed, err := s.closeRunning(ctx, running, now)
	if errors.Is(err, ErrNoRunningSession) {
		return &IdleTickResult{Action: IdleActionNone}, nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("employee_id", employeeID).
		Str("session_id", closed.ID).
		Int64("duration_seconds", closed.DurationSeconds).
		Msg("idle session closed")
	return &IdleTickResult{Action: IdleActionClosed, Session: closed}, nil
}
