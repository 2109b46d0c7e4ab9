package report

import (
	"context"
	"errors"
	"strings"

	"github.com/ogurasousui/worktime/internal/core/session"
)

// ErrInvalidScope は集計範囲が不正な場合に返されます。
var ErrInvalidScope = errors.New("report: invalid scope")

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
}

// Lister はセッション履歴の読み出し口です。session.Repository が満たします。
type Lister interface {
	List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error)
}

// UseCase は集計ユースケースの公開インターフェースです。
type UseCase interface {
	GetReport(ctx context.Context, scope Scope) (*Report, error)
}

// Service は保存済みのセッション履歴から集計を行います。状態は変更しません。
type Service struct {
	sessions Lister
	tx       TransactionManager
}

// NewService は Service を生成します。
func NewService(sessions Lister, tx TransactionManager) *Service {
	return &Service{sessions: sessions, tx: tx}
}

// GetReport は範囲内のセッションを読み出して集計します。
func (s *Service) GetReport(ctx context.Context, scope Scope) (*Report, error) {
	scope.EmployeeID = strings.TrimSpace(scope.EmployeeID)
	scope.ProjectID = strings.TrimSpace(scope.ProjectID)
	if scope.From != nil && scope.To != nil && !scope.To.After(*scope.From) {
		return nil, ErrInvalidScope
	}

	filter := session.ListFilter{
		EmployeeID: scope.EmployeeID,
		ProjectID:  scope.ProjectID,
		StartFrom:  scope.From,
		StartTo:    scope.To,
	}

	var sessions []*session.Session
	read := func(txCtx context.Context) error {
		found, err := s.sessions.List(txCtx, filter)
		if err != nil {
			return err
		}
		sessions = found
		return nil
	}

	var err error
	if s.tx != nil {
		err = s.tx.WithinReadOnly(ctx, read)
	} else {
		err = read(ctx)
	}
	if err != nil {
		return nil, err
	}

	return Summarize(scope, sessions), nil
}
