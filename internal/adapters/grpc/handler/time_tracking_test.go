package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/ogurasousui/worktime/internal/core/report"
	"github.com/ogurasousui/worktime/internal/core/session"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubSessionUseCase struct {
	lastInput any
	out       *session.Session
	err       error

	tickOut   *session.IdleTickResult
	listOut   *session.ListSessionsResult
	exportOut []*session.Session
	importOut *session.ImportResult
}

func (s *stubSessionUseCase) record(in any) (*session.Session, error) {
	s.lastInput = in
	return s.out, s.err
}

func (s *stubSessionUseCase) StartWork(_ context.Context, in session.StartInput) (*session.Session, error) {
	return s.record(in)
}

func (s *stubSessionUseCase) StopWork(_ context.Context, in session.StopInput) (*session.Session, error) {
	return s.record(in)
}

func (s *stubSessionUseCase) StartBreak(_ context.Context, in session.StartInput) (*session.Session, error) {
	return s.record(in)
}

func (s *stubSessionUseCase) StopBreak(_ context.Context, in session.StopInput) (*session.Session, error) {
	return s.record(in)
}

func (s *stubSessionUseCase) GetRunning(_ context.Context, in session.GetRunningInput) (*session.Session, error) {
	return s.record(in)
}

func (s *stubSessionUseCase) RecordIdleTick(_ context.Context, in session.RecordIdleTickInput) (*session.IdleTickResult, error) {
	s.lastInput = in
	return s.tickOut, s.err
}

func (s *stubSessionUseCase) UpdateIdleReason(_ context.Context, in session.UpdateReasonInput) (*session.Session, error) {
	return s.record(in)
}

func (s *stubSessionUseCase) ReviewIdleSession(_ context.Context, in session.ReviewInput) (*session.Session, error) {
	return s.record(in)
}

func (s *stubSessionUseCase) GetSession(_ context.Context, in session.GetSessionInput) (*session.Session, error) {
	return s.record(in)
}

func (s *stubSessionUseCase) ListSessions(_ context.Context, in session.ListSessionsInput) (*session.ListSessionsResult, error) {
	s.lastInput = in
	return s.listOut, s.err
}

func (s *stubSessionUseCase) ExportSessions(_ context.Context, in session.ExportInput) ([]*session.Session, error) {
	s.lastInput = in
	return s.exportOut, s.err
}

func (s *stubSessionUseCase) ImportSessions(_ context.Context, in session.ImportInput) (*session.ImportResult, error) {
	s.lastInput = in
	return s.importOut, s.err
}

type stubReportUseCase struct {
	scope report.Scope
	out   *report.Report
	err   error
}

func (s *stubReportUseCase) GetReport(_ context.Context, scope report.Scope) (*report.Report, error) {
	s.scope = scope
	return s.out, s.err
}

var now = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func mustEncode(t *testing.T, v any) *structpb.Struct {
	t.Helper()
	s, err := wire.Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return s
}

func TestTimeTrackingGrpcHandler_StartWork(t *testing.T) {
	t.Parallel()

	stub := &stubSessionUseCase{out: &session.Session{
		ID:         "sess-1",
		EmployeeID: "emp-1",
		Kind:       session.KindWork,
		ProjectID:  "proj-a",
		StartTime:  now,
		Status:     session.StatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}}
	h := NewTimeTrackingGrpcHandler(stub, &stubReportUseCase{})

	out, err := h.StartWork(context.Background(), mustEncode(t, wire.StartRequest{EmployeeID: "emp-1", ProjectID: "proj-a"}))
	if err != nil {
		t.Fatalf("StartWork returned error: %v", err)
	}

	in, ok := stub.lastInput.(session.StartInput)
	if !ok || in.EmployeeID != "emp-1" || in.ProjectID != "proj-a" {
		t.Errorf("unexpected input passed through: %#v", stub.lastInput)
	}

	var resp wire.SessionResponse
	if err := wire.Decode(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Session == nil || resp.Session.ID != "sess-1" || resp.Session.Status != "running" {
		t.Errorf("unexpected response: %#v", resp.Session)
	}
	if !resp.Session.StartTime.Equal(now) {
		t.Errorf("expected start time %v, got %v", now, resp.Session.StartTime)
	}
}

func TestTimeTrackingGrpcHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"already running", session.ErrAlreadyRunning, codes.AlreadyExists},
		{"duplicate", session.ErrDuplicateSession, codes.AlreadyExists},
		{"no running", session.ErrNoRunningSession, codes.FailedPrecondition},
		{"not reviewable", session.ErrNotReviewable, codes.FailedPrecondition},
		{"reason frozen", session.ErrReasonFrozen, codes.FailedPrecondition},
		{"invalid interval", session.ErrInvalidInterval, codes.OutOfRange},
		{"not found", session.ErrSessionNotFound, codes.NotFound},
		{"invalid employee", session.ErrInvalidEmployeeID, codes.InvalidArgument},
		{"invalid scope", report.ErrInvalidScope, codes.InvalidArgument},
		{"unknown", errors.New("boom"), codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := NewTimeTrackingGrpcHandler(&stubSessionUseCase{err: tc.err}, &stubReportUseCase{err: tc.err})
			_, err := h.StopWork(context.Background(), mustEncode(t, wire.StopRequest{EmployeeID: "emp-1"}))
			if status.Code(err) != tc.want {
				t.Fatalf("StopWork: expected %v, got %v", tc.want, status.Code(err))
			}
			_, err = h.GetReport(context.Background(), mustEncode(t, wire.ReportRequest{}))
			if status.Code(err) != tc.want {
				t.Fatalf("GetReport: expected %v, got %v", tc.want, status.Code(err))
			}
		})
	}
}

func TestTimeTrackingGrpcHandler_MalformedRequest(t *testing.T) {
	t.Parallel()

	stub := &stubSessionUseCase{}
	h := NewTimeTrackingGrpcHandler(stub, &stubReportUseCase{})

	unknown, err := structpb.NewStruct(map[string]any{"employee_id": "emp-1", "unexpected": true})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	if _, err := h.StartWork(context.Background(), unknown); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for unknown field, got %v", status.Code(err))
	}
	if _, err := h.StartWork(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for nil request, got %v", status.Code(err))
	}
	if _, err := h.GetRunning(context.Background(), mustEncode(t, wire.GetRunningRequest{EmployeeID: "emp-1", Kind: "lunch"})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for bad kind, got %v", status.Code(err))
	}
	if _, err := h.ReviewIdleSession(context.Background(), mustEncode(t, wire.ReviewRequest{SessionID: "s", AdminID: "a", Decision: "maybe"})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for bad decision, got %v", status.Code(err))
	}
	if stub.lastInput != nil {
		t.Errorf("use case must not be called for malformed requests, got %#v", stub.lastInput)
	}
}

func TestTimeTrackingGrpcHandler_RecordIdleTick(t *testing.T) {
	t.Parallel()

	stub := &stubSessionUseCase{tickOut: &session.IdleTickResult{
		Action: session.IdleActionOpened,
		Session: &session.Session{
			ID:         "idle-1",
			EmployeeID: "emp-1",
			Kind:       session.KindIdle,
			StartTime:  now,
			Status:     session.StatusRunning,
			Idle:       &session.IdleReview{ApprovalStatus: session.ApprovalPending},
		},
	}}
	h := NewTimeTrackingGrpcHandler(stub, &stubReportUseCase{})

	out, err := h.RecordIdleTick(context.Background(), mustEncode(t, wire.IdleTickRequest{EmployeeID: "emp-1", IdleSeconds: 300}))
	if err != nil {
		t.Fatalf("RecordIdleTick returned error: %v", err)
	}
	if in := stub.lastInput.(session.RecordIdleTickInput); in.IdleSeconds != 300 {
		t.Errorf("expected idle seconds 300, got %d", in.IdleSeconds)
	}

	var resp wire.IdleTickResponse
	if err := wire.Decode(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Action != "opened" {
		t.Errorf("expected action opened, got %s", resp.Action)
	}
	if resp.Session == nil || resp.Session.Idle == nil || resp.Session.Idle.ApprovalStatus != "pending" {
		t.Errorf("expected pending idle session, got %#v", resp.Session)
	}
}

func TestTimeTrackingGrpcHandler_ListSessions(t *testing.T) {
	t.Parallel()

	stub := &stubSessionUseCase{listOut: &session.ListSessionsResult{
		Sessions:      []*session.Session{{ID: "sess-1", Kind: session.KindBreak, Status: session.StatusStopped}},
		NextPageToken: "1",
	}}
	h := NewTimeTrackingGrpcHandler(stub, &stubReportUseCase{})

	from := now
	out, err := h.ListSessions(context.Background(), mustEncode(t, wire.ListRequest{
		EmployeeID: "emp-1",
		Kind:       "break",
		Status:     "stopped",
		From:       &from,
		PageSize:   1,
	}))
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}

	in := stub.lastInput.(session.ListSessionsInput)
	if in.Kind == nil || *in.Kind != session.KindBreak {
		t.Errorf("expected kind break, got %v", in.Kind)
	}
	if in.Status == nil || *in.Status != session.StatusStopped {
		t.Errorf("expected status stopped, got %v", in.Status)
	}
	if in.From == nil || !in.From.Equal(now) || in.To != nil {
		t.Errorf("unexpected range %v - %v", in.From, in.To)
	}

	var resp wire.ListResponse
	if err := wire.Decode(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Sessions) != 1 || resp.NextPageToken != "1" {
		t.Errorf("unexpected response: %#v", resp)
	}
}

func TestTimeTrackingGrpcHandler_ImportSessions(t *testing.T) {
	t.Parallel()

	stub := &stubSessionUseCase{importOut: &session.ImportResult{Imported: 1, Skipped: 1}}
	h := NewTimeTrackingGrpcHandler(stub, &stubReportUseCase{})

	end := now.Add(time.Hour)
	req := wire.ImportRequest{Sessions: []*wire.Session{
		{ID: "a", EmployeeID: "emp-1", Kind: "work", StartTime: now, EndTime: &end, DurationSeconds: 3600, Status: "stopped"},
		{ID: "b", EmployeeID: "emp-1", Kind: "break", StartTime: end, Status: "running"},
	}}
	out, err := h.ImportSessions(context.Background(), mustEncode(t, req))
	if err != nil {
		t.Fatalf("ImportSessions returned error: %v", err)
	}
	in := stub.lastInput.(session.ImportInput)
	if len(in.Sessions) != 2 || in.Sessions[0].Kind != session.KindWork || in.Sessions[0].EndTime == nil {
		t.Errorf("unexpected import input: %#v", in.Sessions)
	}

	var resp wire.ImportResponse
	if err := wire.Decode(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Imported != 1 || resp.Skipped != 1 {
		t.Errorf("unexpected result %#v", resp)
	}

	withNull, err := structpb.NewStruct(map[string]any{"sessions": []any{nil}})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	if _, err := h.ImportSessions(context.Background(), withNull); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for null session, got %v", status.Code(err))
	}
}

func TestTimeTrackingGrpcHandler_GetReport(t *testing.T) {
	t.Parallel()

	stub := &stubReportUseCase{out: &report.Report{
		Scope:        report.Scope{EmployeeID: "emp-1"},
		SessionCount: 2,
		Totals: report.Totals{
			SecondsByKind: map[session.Kind]int64{session.KindWork: 3600},
		},
	}}
	h := NewTimeTrackingGrpcHandler(&stubSessionUseCase{}, stub)

	out, err := h.GetReport(context.Background(), mustEncode(t, wire.ReportRequest{EmployeeID: "emp-1"}))
	if err != nil {
		t.Fatalf("GetReport returned error: %v", err)
	}
	if stub.scope.EmployeeID != "emp-1" {
		t.Errorf("expected scope employee emp-1, got %s", stub.scope.EmployeeID)
	}

	var resp wire.Report
	if err := wire.Decode(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionCount != 2 || resp.Totals.SecondsByKind["work"] != 3600 {
		t.Errorf("unexpected report %#v", resp)
	}
}
