package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{ closed *bool }

func (c nopCloser) Close() error {
	*c.closed = true
	return nil
}

type stubAPI struct {
	tick      session.RecordIdleTickInput
	reason    session.UpdateReasonInput
	review    session.ReviewInput
	list      wire.ListRequest
	export    wire.ExportRequest
	imported  []*wire.Session
	reportReq wire.ReportRequest

	exportOut []*wire.Session
	err       error
}

func (s *stubAPI) RecordIdleTick(_ context.Context, in session.RecordIdleTickInput) (*session.IdleTickResult, error) {
	s.tick = in
	return &session.IdleTickResult{Action: session.IdleActionOpened}, s.err
}

func (s *stubAPI) UpdateIdleReason(_ context.Context, in session.UpdateReasonInput) (*session.Session, error) {
	s.reason = in
	return &session.Session{ID: in.SessionID, Kind: session.KindIdle, Idle: &session.IdleReview{Reason: in.Reason, ApprovalStatus: session.ApprovalPending}}, s.err
}

func (s *stubAPI) ReviewIdleSession(_ context.Context, in session.ReviewInput) (*session.Session, error) {
	s.review = in
	status, _ := in.Decision.ApprovalStatus()
	return &session.Session{ID: in.SessionID, Kind: session.KindIdle, Idle: &session.IdleReview{ApprovalStatus: status, ReviewedBy: in.AdminID}}, s.err
}

func (s *stubAPI) ListSessions(_ context.Context, req wire.ListRequest) ([]*session.Session, string, error) {
	s.list = req
	return []*session.Session{{ID: "sess-1", Kind: session.KindWork}}, "1", s.err
}

func (s *stubAPI) ExportSessions(_ context.Context, req wire.ExportRequest) ([]*wire.Session, error) {
	s.export = req
	return s.exportOut, s.err
}

func (s *stubAPI) ImportSessions(_ context.Context, sessions []*wire.Session) (*session.ImportResult, error) {
	s.imported = sessions
	return &session.ImportResult{Imported: len(sessions)}, s.err
}

func (s *stubAPI) GetReport(_ context.Context, req wire.ReportRequest) (*wire.Report, error) {
	s.reportReq = req
	return &wire.Report{EmployeeID: req.EmployeeID, SessionCount: 3}, s.err
}

func execute(t *testing.T, api *stubAPI, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	closed := false
	var dialedAddr string
	root := NewRootCmd(func(addr string) (API, io.Closer, error) {
		dialedAddr = addr
		return api, nopCloser{closed: &closed}, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)

	err := root.Execute()
	if dialedAddr != "" {
		assert.True(t, closed, "connection must be closed")
	}
	return out.String(), err
}

func TestReviewCmd(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	out, err := execute(t, api, nil, "review", "idle-1", "reject", "--admin", "admin-1", "--note", "lunch")
	require.NoError(t, err)

	assert.Equal(t, session.ReviewInput{SessionID: "idle-1", AdminID: "admin-1", Decision: session.DecisionReject, Note: "lunch"}, api.review)

	var got wire.Session
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Idle)
	assert.Equal(t, "rejected", got.Idle.ApprovalStatus)
}

func TestReviewCmd_RejectsUnknownDecision(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	_, err := execute(t, api, nil, "review", "idle-1", "maybe", "--admin", "admin-1")
	assert.ErrorIs(t, err, session.ErrInvalidDecision)
	assert.Empty(t, api.review.SessionID, "server must not be called")
}

func TestReasonCmd(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	_, err := execute(t, api, nil, "reason", "idle-1", "client call", "--employee", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, session.UpdateReasonInput{SessionID: "idle-1", EmployeeID: "emp-1", Reason: "client call"}, api.reason)
}

func TestListCmd(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	out, err := execute(t, api, nil, "list", "--employee", "emp-1", "--kind", "work", "--from", "2025-03-03T09:00:00+09:00", "--page-size", "10")
	require.NoError(t, err)

	require.NotNil(t, api.list.From)
	assert.True(t, api.list.From.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, api.list.From.Location())
	assert.Equal(t, "work", api.list.Kind)
	assert.Equal(t, 10, api.list.PageSize)

	var resp wire.ListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "1", resp.NextPageToken)
	assert.Len(t, resp.Sessions, 1)
}

func TestListCmd_BadTime(t *testing.T) {
	t.Parallel()

	_, err := execute(t, &stubAPI{}, nil, "list", "--from", "yesterday")
	assert.ErrorContains(t, err, "--from")
}

func TestExportImportCmd(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	api := &stubAPI{exportOut: []*wire.Session{{
		ID:              "sess-1",
		EmployeeID:      "emp-1",
		Kind:            "work",
		ProjectID:       "proj-a",
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: 3600,
		Status:          "stopped",
		CreatedAt:       start,
		UpdatedAt:       end,
	}}}

	path := filepath.Join(t.TempDir(), "sessions.json")
	_, err := execute(t, api, nil, "export", "--employee", "emp-1", "--kind", "work", "-o", path)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", api.export.EmployeeID)
	assert.Equal(t, "work", api.export.Kind)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"project_id": "proj-a"`)

	out, err := execute(t, api, nil, "import", path)
	require.NoError(t, err)
	assert.Equal(t, api.exportOut, api.imported)

	var resp wire.ImportResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Imported)

	_, err = execute(t, api, bytes.NewBufferString(`[{"id":"x","bogus":1}]`), "import", "-")
	assert.ErrorContains(t, err, "bogus")
}

func TestExportCmd_EmptyIsArray(t *testing.T) {
	t.Parallel()

	out, err := execute(t, &stubAPI{}, nil, "export")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestReportCmd(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	out, err := execute(t, api, nil, "report", "--employee", "emp-1", "--addr", "timetracker:50051")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", api.reportReq.EmployeeID)

	var rep wire.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 3, rep.SessionCount)
}

func TestIdleAgentCmd_Once(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	out, err := execute(t, api, nil, "idle-agent", "--employee", "emp-1", "--command", "echo 400000", "--once", "--log-level", "error")
	require.NoError(t, err)

	assert.Equal(t, session.RecordIdleTickInput{EmployeeID: "emp-1", IdleSeconds: 400}, api.tick)
	assert.JSONEq(t, `{"action":"opened"}`, out)
}

func TestIdleAgentCmd_RequiresFlags(t *testing.T) {
	t.Parallel()

	_, err := execute(t, &stubAPI{}, nil, "idle-agent", "--command", "echo 1")
	assert.ErrorContains(t, err, "employee")
}
