package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func stopped(id, employeeID string, kind session.Kind, projectID string, startOffset, seconds int) *session.Session {
	start := base.Add(time.Duration(startOffset) * time.Second)
	end := start.Add(time.Duration(seconds) * time.Second)
	s := &session.Session{
		ID:              id,
		EmployeeID:      employeeID,
		Kind:            kind,
		ProjectID:       projectID,
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: int64(seconds),
		Status:          session.StatusStopped,
	}
	if kind == session.KindIdle {
		s.Idle = &session.IdleReview{ApprovalStatus: session.ApprovalPending}
	}
	return s
}

func withApproval(s *session.Session, status session.ApprovalStatus) *session.Session {
	s.Idle.ApprovalStatus = status
	return s
}

func fixture() []*session.Session {
	running := &session.Session{
		ID: "s-6", EmployeeID: "emp-2", Kind: session.KindWork, ProjectID: "proj-b",
		StartTime: base.Add(7200 * time.Second), Status: session.StatusRunning,
	}
	return []*session.Session{
		stopped("s-1", "emp-1", session.KindWork, "proj-a", 0, 3600),
		stopped("s-2", "emp-1", session.KindBreak, "", 100, 60),
		withApproval(stopped("s-3", "emp-1", session.KindIdle, "", 160, 340), session.ApprovalRejected),
		withApproval(stopped("s-4", "emp-2", session.KindIdle, "", 500, 120), session.ApprovalApproved),
		stopped("s-5", "emp-2", session.KindWork, "proj-a", 0, 1800),
		running,
	}
}

func TestSummarize_Totals(t *testing.T) {
	t.Parallel()

	r := Summarize(Scope{}, fixture())

	assert.Equal(t, 6, r.SessionCount)
	assert.Equal(t, int64(5400), r.Totals.SecondsByKind[session.KindWork], "running sessions add no seconds")
	assert.Equal(t, int64(60), r.Totals.SecondsByKind[session.KindBreak])
	assert.Equal(t, int64(460), r.Totals.SecondsByKind[session.KindIdle])
	assert.Equal(t, StatusCounts{Running: 1, Stopped: 2}, r.Totals.CountByKind[session.KindWork])

	assert.Equal(t, 1, r.Totals.Idle.CountByApproval[session.ApprovalRejected])
	assert.Equal(t, int64(340), r.Totals.Idle.SecondsByApproval[session.ApprovalRejected])
	assert.Equal(t, int64(120), r.Totals.Idle.SecondsByApproval[session.ApprovalApproved])
	assert.Equal(t, 0, r.Totals.Idle.CountByApproval[session.ApprovalPending])

	require.Len(t, r.Employees, 2)
	assert.Equal(t, "emp-1", r.Employees[0].ID)
	assert.Equal(t, int64(3600), r.Employees[0].Totals.SecondsByKind[session.KindWork])
	assert.Equal(t, "emp-2", r.Employees[1].ID)

	require.Len(t, r.Projects, 2)
	assert.Equal(t, "proj-a", r.Projects[0].ID)
	assert.Equal(t, int64(5400), r.Projects[0].Totals.SecondsByKind[session.KindWork])
	assert.Equal(t, StatusCounts{Running: 1}, r.Projects[1].Totals.CountByKind[session.KindWork])
}

func TestSummarize_ScopeFilters(t *testing.T) {
	t.Parallel()

	from := base.Add(100 * time.Second)
	to := base.Add(500 * time.Second)
	r := Summarize(Scope{EmployeeID: "emp-1", From: &from, To: &to}, fixture())

	assert.Equal(t, 2, r.SessionCount)
	assert.Equal(t, int64(0), r.Totals.SecondsByKind[session.KindWork])
	assert.Equal(t, int64(60), r.Totals.SecondsByKind[session.KindBreak])
	assert.Equal(t, int64(340), r.Totals.SecondsByKind[session.KindIdle])
}

func TestSummarize_Deterministic(t *testing.T) {
	t.Parallel()

	sessions := fixture()
	reversed := make([]*session.Session, len(sessions))
	for i, s := range sessions {
		reversed[len(sessions)-1-i] = s
	}

	first := Summarize(Scope{}, sessions)
	second := Summarize(Scope{}, sessions)
	third := Summarize(Scope{}, reversed)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third, "input order does not affect the result")
}

type stubLister struct {
	filter   session.ListFilter
	sessions []*session.Session
	err      error
}

func (s *stubLister) List(_ context.Context, filter session.ListFilter) ([]*session.Session, error) {
	s.filter = filter
	return s.sessions, s.err
}

func TestService_GetReport(t *testing.T) {
	t.Parallel()

	lister := &stubLister{sessions: fixture()}
	svc := NewService(lister, nil)

	r, err := svc.GetReport(context.Background(), Scope{ProjectID: " proj-a "})
	require.NoError(t, err)

	assert.Equal(t, "proj-a", lister.filter.ProjectID)
	assert.Equal(t, 2, r.SessionCount)
	assert.Equal(t, int64(5400), r.Totals.SecondsByKind[session.KindWork])
}

func TestService_GetReport_Errors(t *testing.T) {
	t.Parallel()

	from := base
	to := base
	_, err := NewService(&stubLister{}, nil).GetReport(context.Background(), Scope{From: &from, To: &to})
	require.ErrorIs(t, err, ErrInvalidScope)

	boom := errors.New("boom")
	_, err = NewService(&stubLister{err: boom}, nil).GetReport(context.Background(), Scope{})
	require.ErrorIs(t, err, boom)
}
