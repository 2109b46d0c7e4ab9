package handler

import (
	"context"
	"fmt"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/ogurasousui/worktime/internal/core/report"
	"github.com/ogurasousui/worktime/internal/core/session"
	"google.golang.org/protobuf/types/known/structpb"
)

// TimeTrackingGrpcHandler は TimeTrackingService の gRPC 実装です。
type TimeTrackingGrpcHandler struct {
	sessions session.UseCase
	reports  report.UseCase
}

var _ TimeTrackingServer = (*TimeTrackingGrpcHandler)(nil)

// NewTimeTrackingGrpcHandler は TimeTrackingGrpcHandler を生成します。
func NewTimeTrackingGrpcHandler(sessions session.UseCase, reports report.UseCase) *TimeTrackingGrpcHandler {
	return &TimeTrackingGrpcHandler{sessions: sessions, reports: reports}
}

// handle はリクエストを Req にデコードし、call の結果を Struct にエンコードします。
func handle[Req any, Resp any](ctx context.Context, in *structpb.Struct, call func(context.Context, *Req) (Resp, error)) (*structpb.Struct, error) {
	req := new(Req)
	if err := wire.Decode(in, req); err != nil {
		return nil, toStatusError(err)
	}
	resp, err := call(ctx, req)
	if err != nil {
		return nil, toStatusError(err)
	}
	out, err := wire.Encode(resp)
	if err != nil {
		return nil, toStatusError(err)
	}
	return out, nil
}

func sessionResponse(s *session.Session, err error) (*wire.SessionResponse, error) {
	if err != nil {
		return nil, err
	}
	return &wire.SessionResponse{Session: wire.FromSession(s)}, nil
}

// StartWork は作業タイマーを開始します。
func (h *TimeTrackingGrpcHandler) StartWork(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.StartRequest) (*wire.SessionResponse, error) {
		return sessionResponse(h.sessions.StartWork(ctx, session.StartInput{EmployeeID: req.EmployeeID, ProjectID: req.ProjectID}))
	})
}

// StopWork は作業タイマーを停止します。
func (h *TimeTrackingGrpcHandler) StopWork(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.StopRequest) (*wire.SessionResponse, error) {
		return sessionResponse(h.sessions.StopWork(ctx, session.StopInput{EmployeeID: req.EmployeeID}))
	})
}

// StartBreak は休憩タイマーを開始します。
func (h *TimeTrackingGrpcHandler) StartBreak(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.StartRequest) (*wire.SessionResponse, error) {
		return sessionResponse(h.sessions.StartBreak(ctx, session.StartInput{EmployeeID: req.EmployeeID, ProjectID: req.ProjectID}))
	})
}

// StopBreak は休憩タイマーを停止します。
func (h *TimeTrackingGrpcHandler) StopBreak(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.StopRequest) (*wire.SessionResponse, error) {
		return sessionResponse(h.sessions.StopBreak(ctx, session.StopInput{EmployeeID: req.EmployeeID}))
	})
}

// GetRunning は稼働中のセッションを返します。
func (h *TimeTrackingGrpcHandler) GetRunning(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.GetRunningRequest) (*wire.SessionResponse, error) {
		kind, err := session.ParseKind(req.Kind)
		if err != nil {
			return nil, err
		}
		return sessionResponse(h.sessions.GetRunning(ctx, session.GetRunningInput{EmployeeID: req.EmployeeID, Kind: kind}))
	})
}

// RecordIdleTick はアイドル秒数のサンプルを反映します。
func (h *TimeTrackingGrpcHandler) RecordIdleTick(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.IdleTickRequest) (*wire.IdleTickResponse, error) {
		res, err := h.sessions.RecordIdleTick(ctx, session.RecordIdleTickInput{EmployeeID: req.EmployeeID, IdleSeconds: req.IdleSeconds})
		if err != nil {
			return nil, err
		}
		return &wire.IdleTickResponse{Action: string(res.Action), Session: wire.FromSession(res.Session)}, nil
	})
}

// UpdateIdleReason はアイドル理由を更新します。
func (h *TimeTrackingGrpcHandler) UpdateIdleReason(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.UpdateReasonRequest) (*wire.SessionResponse, error) {
		return sessionResponse(h.sessions.UpdateIdleReason(ctx, session.UpdateReasonInput{
			SessionID:  req.SessionID,
			EmployeeID: req.EmployeeID,
			Reason:     req.Reason,
		}))
	})
}

// ReviewIdleSession はアイドルセッションを承認または却下します。
func (h *TimeTrackingGrpcHandler) ReviewIdleSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.ReviewRequest) (*wire.SessionResponse, error) {
		decision, err := session.ParseDecision(req.Decision)
		if err != nil {
			return nil, err
		}
		return sessionResponse(h.sessions.ReviewIdleSession(ctx, session.ReviewInput{
			SessionID: req.SessionID,
			AdminID:   req.AdminID,
			Decision:  decision,
			Note:      req.Note,
		}))
	})
}

// GetSession は ID でセッションを返します。
func (h *TimeTrackingGrpcHandler) GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.GetSessionRequest) (*wire.SessionResponse, error) {
		return sessionResponse(h.sessions.GetSession(ctx, session.GetSessionInput{ID: req.ID}))
	})
}

// ListSessions は条件に一致するセッションをページ単位で返します。
func (h *TimeTrackingGrpcHandler) ListSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.ListRequest) (*wire.ListResponse, error) {
		kind, err := optionalKind(req.Kind)
		if err != nil {
			return nil, err
		}
		var statusPtr *session.Status
		if req.Status != "" {
			st, err := session.ParseStatus(req.Status)
			if err != nil {
				return nil, err
			}
			statusPtr = &st
		}

		res, err := h.sessions.ListSessions(ctx, session.ListSessionsInput{
			EmployeeID: req.EmployeeID,
			ProjectID:  req.ProjectID,
			Kind:       kind,
			Status:     statusPtr,
			From:       req.From,
			To:         req.To,
			PageSize:   req.PageSize,
			PageToken:  req.PageToken,
		})
		if err != nil {
			return nil, err
		}
		return &wire.ListResponse{Sessions: wire.FromSessions(res.Sessions), NextPageToken: res.NextPageToken}, nil
	})
}

// ExportSessions は条件に一致するセッション記録を返します。
func (h *TimeTrackingGrpcHandler) ExportSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.ExportRequest) (*wire.SessionsResponse, error) {
		kind, err := optionalKind(req.Kind)
		if err != nil {
			return nil, err
		}
		sessions, err := h.sessions.ExportSessions(ctx, session.ExportInput{
			EmployeeID: req.EmployeeID,
			ProjectID:  req.ProjectID,
			Kind:       kind,
			From:       req.From,
			To:         req.To,
		})
		if err != nil {
			return nil, err
		}
		return &wire.SessionsResponse{Sessions: wire.FromSessions(sessions)}, nil
	})
}

// ImportSessions はセッション記録を取り込みます。
func (h *TimeTrackingGrpcHandler) ImportSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.ImportRequest) (*wire.ImportResponse, error) {
		for i, s := range req.Sessions {
			if s == nil {
				return nil, fmt.Errorf("%w: sessions[%d] is null", wire.ErrMalformed, i)
			}
		}
		res, err := h.sessions.ImportSessions(ctx, session.ImportInput{Sessions: wire.ToSessions(req.Sessions)})
		if err != nil {
			return nil, err
		}
		return &wire.ImportResponse{Imported: res.Imported, Skipped: res.Skipped}, nil
	})
}

// GetReport はセッション履歴の集計を返します。
func (h *TimeTrackingGrpcHandler) GetReport(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, in, func(ctx context.Context, req *wire.ReportRequest) (*wire.Report, error) {
		r, err := h.reports.GetReport(ctx, report.Scope{
			EmployeeID: req.EmployeeID,
			ProjectID:  req.ProjectID,
			From:       req.From,
			To:         req.To,
		})
		if err != nil {
			return nil, err
		}
		return wire.FromReport(r), nil
	})
}

func optionalKind(raw string) (*session.Kind, error) {
	if raw == "" {
		return nil, nil
	}
	kind, err := session.ParseKind(raw)
	if err != nil {
		return nil, err
	}
	return &kind, nil
}
