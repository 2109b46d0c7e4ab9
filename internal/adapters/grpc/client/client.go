// Package client は TimeTrackingService を呼び出す gRPC クライアントです。
package client

import (
	"context"
	"fmt"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/ogurasousui/worktime/internal/core/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client は TimeTrackingService のクライアントです。idle.Recorder を満たします。
type Client struct {
	conn grpc.ClientConnInterface
}

// New は既存のコネクションから Client を生成します。
func New(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial は target へのコネクションを作成します。TLS は使用しません。
func Dial(target string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return New(conn), conn, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := wire.Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, wire.FullMethod(method), in, out); err != nil {
		return err
	}
	return wire.Decode(out, resp)
}

func (c *Client) session(ctx context.Context, method string, req any) (*session.Session, error) {
	var resp wire.SessionResponse
	if err := c.invoke(ctx, method, req, &resp); err != nil {
		return nil, err
	}
	return resp.Session.ToSession(), nil
}

// StartWork は作業タイマーを開始します。
func (c *Client) StartWork(ctx context.Context, employeeID, projectID string) (*session.Session, error) {
	return c.session(ctx, wire.MethodStartWork, wire.StartRequest{EmployeeID: employeeID, ProjectID: projectID})
}

// StopWork は作業タイマーを停止します。
func (c *Client) StopWork(ctx context.Context, employeeID string) (*session.Session, error) {
	return c.session(ctx, wire.MethodStopWork, wire.StopRequest{EmployeeID: employeeID})
}

// StartBreak は休憩タイマーを開始します。
func (c *Client) StartBreak(ctx context.Context, employeeID, projectID string) (*session.Session, error) {
	return c.session(ctx, wire.MethodStartBreak, wire.StartRequest{EmployeeID: employeeID, ProjectID: projectID})
}

// StopBreak は休憩タイマーを停止します。
func (c *Client) StopBreak(ctx context.Context, employeeID string) (*session.Session, error) {
	return c.session(ctx, wire.MethodStopBreak, wire.StopRequest{EmployeeID: employeeID})
}

// GetRunning は稼働中のセッションを返します。
func (c *Client) GetRunning(ctx context.Context, employeeID string, kind session.Kind) (*session.Session, error) {
	return c.session(ctx, wire.MethodGetRunning, wire.GetRunningRequest{EmployeeID: employeeID, Kind: string(kind)})
}

// RecordIdleTick はアイドル秒数のサンプルを送信します。
func (c *Client) RecordIdleTick(ctx context.Context, in session.RecordIdleTickInput) (*session.IdleTickResult, error) {
	var resp wire.IdleTickResponse
	if err := c.invoke(ctx, wire.MethodRecordIdleTick, wire.IdleTickRequest{EmployeeID: in.EmployeeID, IdleSeconds: in.IdleSeconds}, &resp); err != nil {
		return nil, err
	}
	return &session.IdleTickResult{Action: session.IdleAction(resp.Action), Session: resp.Session.ToSession()}, nil
}

// UpdateIdleReason はアイドル理由を更新します。
func (c *Client) UpdateIdleReason(ctx context.Context, in session.UpdateReasonInput) (*session.Session, error) {
	return c.session(ctx, wire.MethodUpdateIdleReason, wire.UpdateReasonRequest{
		SessionID:  in.SessionID,
		EmployeeID: in.EmployeeID,
		Reason:     in.Reason,
	})
}

// ReviewIdleSession はアイドルセッションを承認または却下します。
func (c *Client) ReviewIdleSession(ctx context.Context, in session.ReviewInput) (*session.Session, error) {
	return c.session(ctx, wire.MethodReviewIdleSession, wire.ReviewRequest{
		SessionID: in.SessionID,
		AdminID:   in.AdminID,
		Decision:  string(in.Decision),
		Note:      in.Note,
	})
}

// GetSession は ID でセッションを返します。
func (c *Client) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return c.session(ctx, wire.MethodGetSession, wire.GetSessionRequest{ID: id})
}

// ListSessions はセッションを 1 ページ分返します。
func (c *Client) ListSessions(ctx context.Context, req wire.ListRequest) ([]*session.Session, string, error) {
	var resp wire.ListResponse
	if err := c.invoke(ctx, wire.MethodListSessions, req, &resp); err != nil {
		return nil, "", err
	}
	return wire.ToSessions(resp.Sessions), resp.NextPageToken, nil
}

// ExportSessions は条件に一致するセッション記録をワイヤ表現のまま返します。
func (c *Client) ExportSessions(ctx context.Context, req wire.ExportRequest) ([]*wire.Session, error) {
	var resp wire.SessionsResponse
	if err := c.invoke(ctx, wire.MethodExportSessions, req, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// ImportSessions はセッション記録を取り込みます。
func (c *Client) ImportSessions(ctx context.Context, sessions []*wire.Session) (*session.ImportResult, error) {
	var resp wire.ImportResponse
	if err := c.invoke(ctx, wire.MethodImportSessions, wire.ImportRequest{Sessions: sessions}, &resp); err != nil {
		return nil, err
	}
	return &session.ImportResult{Imported: resp.Imported, Skipped: resp.Skipped}, nil
}

// GetReport は集計結果を返します。
func (c *Client) GetReport(ctx context.Context, req wire.ReportRequest) (*wire.Report, error) {
	var resp wire.Report
	if err := c.invoke(ctx, wire.MethodGetReport, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
