package report

import (
	"sort"
	"time"

	"github.com/ogurasousui/worktime/internal/core/session"
)

// Scope は集計対象の範囲です。ゼロ値の項目は絞り込みに使いません。
// From は含み、To は含みません (セッションの開始時刻で判定)。
type Scope struct {
	EmployeeID string
	ProjectID  string
	From       *time.Time
	To         *time.Time
}

// Report はセッション履歴から導出した集計結果です。
type Report struct {
	Scope        Scope
	Totals       Totals
	Employees    []ContributorTotals
	Projects     []ContributorTotals
	SessionCount int
}

// Totals は種別ごとの秒数と件数です。秒数は停止済みセッションのみを合計します。
type Totals struct {
	SecondsByKind map[session.Kind]int64
	CountByKind   map[session.Kind]StatusCounts
	Idle          IdleTotals
}

// StatusCounts は稼働状態ごとの件数です。
type StatusCounts struct {
	Running int
	Stopped int
}

// IdleTotals は承認状態ごとのアイドル件数と秒数です。
// approved は説明済み、rejected は説明なし、pending は未レビューとして扱います。
type IdleTotals struct {
	CountByApproval   map[session.ApprovalStatus]int
	SecondsByApproval map[session.ApprovalStatus]int64
}

// ContributorTotals は従業員またはプロジェクト単位の集計です。
type ContributorTotals struct {
	ID     string
	Totals Totals
}

// Summarize はセッション一覧を集計します。入力以外の状態を持たず、同じ入力には常に同じ結果を返します。
func Summarize(scope Scope, sessions []*session.Session) *Report {
	r := &Report{Scope: scope, Totals: newTotals()}

	byEmployee := make(map[string]*Totals)
	byProject := make(map[string]*Totals)

	for _, s := range sessions {
		if s == nil || !inScope(scope, s) {
			continue
		}
		r.SessionCount++
		r.Totals.add(s)

		emp, ok := byEmployee[s.EmployeeID]
		if !ok {
			t := newTotals()
			emp = &t
			byEmployee[s.EmployeeID] = emp
		}
		emp.add(s)

		if s.Kind == session.KindWork && s.ProjectID != "" {
			proj, ok := byProject[s.ProjectID]
			if !ok {
				t := newTotals()
				proj = &t
				byProject[s.ProjectID] = proj
			}
			proj.add(s)
		}
	}

	r.Employees = sortedContributors(byEmployee)
	r.Projects = sortedContributors(byProject)
	return r
}

func newTotals() Totals {
	return Totals{
		SecondsByKind: map[session.Kind]int64{
			session.KindWork:  0,
			session.KindBreak: 0,
			session.KindIdle:  0,
		},
		CountByKind: map[session.Kind]StatusCounts{
			session.KindWork:  {},
			session.KindBreak: {},
			session.KindIdle:  {},
		},
		Idle: IdleTotals{
			CountByApproval: map[session.ApprovalStatus]int{
				session.ApprovalPending:  0,
				session.ApprovalApproved: 0,
				session.ApprovalRejected: 0,
			},
			SecondsByApproval: map[session.ApprovalStatus]int64{
				session.ApprovalPending:  0,
				session.ApprovalApproved: 0,
				session.ApprovalRejected: 0,
			},
		},
	}
}

func (t *Totals) add(s *session.Session) {
	counts := t.CountByKind[s.Kind]
	if s.Status == session.StatusRunning {
		counts.Running++
	} else {
		counts.Stopped++
	}
	t.CountByKind[s.Kind] = counts

	stopped := s.Status == session.StatusStopped
	if stopped {
		t.SecondsByKind[s.Kind] += s.DurationSeconds
	}

	if s.Kind != session.KindIdle || s.Idle == nil {
		return
	}
	t.Idle.CountByApproval[s.Idle.ApprovalStatus]++
	if stopped {
		t.Idle.SecondsByApproval[s.Idle.ApprovalStatus] += s.DurationSeconds
	}
}

func inScope(scope Scope, s *session.Session) bool {
	if scope.EmployeeID != "" && s.EmployeeID != scope.EmployeeID {
		return false
	}
	if scope.ProjectID != "" && s.ProjectID != scope.ProjectID {
		return false
	}
	if scope.From != nil && s.StartTime.Before(*scope.From) {
		return false
	}
	if scope.To != nil && !s.StartTime.Before(*scope.To) {
		return false
	}
	return true
}

func sortedContributors(m map[string]*Totals) []ContributorTotals {
	out := make([]ContributorTotals, 0, len(m))
	for id, totals := range m {
		out = append(out, ContributorTotals{ID: id, Totals: *totals})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
