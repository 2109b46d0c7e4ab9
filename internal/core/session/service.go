package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	defaultListPageSize  = 50
	maxListPageSize      = 200
	defaultIdleThreshold = 5 * time.Minute
	maxTextLength        = 1000
	timePrecision        = time.Millisecond
)

// Service はセッションのライフサイクルとアイドル承認をまとめたユースケースです。
type Service struct {
	repo          Repository
	clock         Clock
	tx            TransactionManager
	log           zerolog.Logger
	idleThreshold time.Duration
	newID         func() string
}

// UseCase はセッションユースケースの公開インターフェースです。
type UseCase interface {
	StartWork(ctx context.Context, in StartInput) (*Session, error)
	StopWork(ctx context.Context, in StopInput) (*Session, error)
	StartBreak(ctx context.Context, in StartInput) (*Session, error)
	StopBreak(ctx context.Context, in StopInput) (*Session, error)
	GetRunning(ctx context.Context, in GetRunningInput) (*Session, error)
	RecordIdleTick(ctx context.Context, in RecordIdleTickInput) (*IdleTickResult, error)
	UpdateIdleReason(ctx context.Context, in UpdateReasonInput) (*Session, error)
	ReviewIdleSession(ctx context.Context, in ReviewInput) (*Session, error)
	GetSession(ctx context.Context, in GetSessionInput) (*Session, error)
	ListSessions(ctx context.Context, in ListSessionsInput) (*ListSessionsResult, error)
	ExportSessions(ctx context.Context, in ExportInput) ([]*Session, error)
	ImportSessions(ctx context.Context, in ImportInput) (*ImportResult, error)
}

// Option は Service の生成オプションです。
type Option func(*Service)

// WithLogger はロガーを設定します。
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log.With().Str("component", "session").Logger()
	}
}

// WithIdleThreshold はアイドル判定の閾値を設定します。0 以下の値は無視します。
func WithIdleThreshold(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleThreshold = d
		}
	}
}

// WithIDGenerator はセッション ID の生成関数を差し替えます。
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:          repo,
		clock:         clock,
		tx:            tx,
		log:           zerolog.Nop(),
		idleThreshold: defaultIdleThreshold,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdleThreshold は設定済みのアイドル閾値を返します。
func (s *Service) IdleThreshold() time.Duration {
	return s.idleThreshold
}

// StartInput はセッション開始時の入力です。ProjectID は作業セッションでのみ使用します。
type StartInput struct {
	EmployeeID string
	ProjectID  string
}

// StopInput はセッション停止時の入力です。
type StopInput struct {
	EmployeeID string
}

// GetRunningInput は稼働中セッション取得時の入力です。
type GetRunningInput struct {
	EmployeeID string
	Kind       Kind
}

// GetSessionInput はセッション取得時の入力です。
type GetSessionInput struct {
	ID string
}

// ListSessionsInput は一覧取得時の入力です。
type ListSessionsInput struct {
	EmployeeID string
	ProjectID  string
	Kind       *Kind
	Status     *Status
	From       *time.Time
	To         *time.Time
	PageSize   int
	PageToken  string
}

// ListSessionsResult は一覧取得結果を表します。
type ListSessionsResult struct {
	Sessions      []*Session
	NextPageToken string
}

// StartWork は作業タイマーを開始します。
func (s *Service) StartWork(ctx context.Context, in StartInput) (*Session, error) {
	return s.StartSession(ctx, KindWork, in)
}

// StopWork は作業タイマーを停止します。
func (s *Service) StopWork(ctx context.Context, in StopInput) (*Session, error) {
	return s.StopSession(ctx, KindWork, in)
}

// StartBreak は休憩を開始します。作業セッションとは独立しており、作業中でも開始できます。
func (s *Service) StartBreak(ctx context.Context, in StartInput) (*Session, error) {
	return s.StartSession(ctx, KindBreak, StartInput{EmployeeID: in.EmployeeID})
}

// StopBreak は休憩を終了します。
func (s *Service) StopBreak(ctx context.Context, in StopInput) (*Session, error) {
	return s.StopSession(ctx, KindBreak, in)
}

// StartSession は指定種別のセッションを開始します。
func (s *Service) StartSession(ctx context.Context, kind Kind, in StartInput) (*Session, error) {
	if !isValidKind(kind) {
		return nil, ErrInvalidKind
	}
	employeeID, err := normalizeEmployeeID(in.EmployeeID)
	if err != nil {
		return nil, err
	}

	projectID := ""
	if kind == KindWork {
		projectID, err = normalizeProjectID(in.ProjectID)
		if err != nil {
			return nil, err
		}
	}

	return s.insertRunning(ctx, employeeID, kind, projectID, s.now())
}

// StopSession は指定種別の稼働中セッションを停止します。
func (s *Service) StopSession(ctx context.Context, kind Kind, in StopInput) (*Session, error) {
	if !isValidKind(kind) {
		return nil, ErrInvalidKind
	}
	employeeID, err := normalizeEmployeeID(in.EmployeeID)
	if err != nil {
		return nil, err
	}

	running, err := s.repo.FindRunning(ctx, employeeID, kind)
	if err != nil {
		return nil, err
	}
	return s.closeRunning(ctx, running, s.now())
}

// GetRunning は稼働中のセッションを取得します。存在しない場合は ErrNoRunningSession を返します。
func (s *Service) GetRunning(ctx context.Context, in GetRunningInput) (*Session, error) {
	employeeID, err := normalizeEmployeeID(in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !isValidKind(in.Kind) {
		return nil, ErrInvalidKind
	}
	return s.repo.FindRunning(ctx, employeeID, in.Kind)
}

// GetSession は ID でセッションを取得します。
func (s *Service) GetSession(ctx context.Context, in GetSessionInput) (*Session, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	var result *Session
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions はセッションの一覧を開始時刻の昇順で取得します。
func (s *Service) ListSessions(ctx context.Context, in ListSessionsInput) (*ListSessionsResult, error) {
	filter, err := buildListFilter(in.EmployeeID, in.ProjectID, in.Kind, in.Status, in.From, in.To)
	if err != nil {
		return nil, err
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}
	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	filter.Limit = limit + 1
	filter.Offset = offset

	var sessions []*Session
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.List(txCtx, filter)
		if err != nil {
			return err
		}
		sessions = found
		return nil
	}); err != nil {
		return nil, err
	}

	var nextToken string
	if len(sessions) > limit {
		sessions = sessions[:limit]
		nextToken = strconv.Itoa(offset + limit)
	}

	return &ListSessionsResult{Sessions: sessions, NextPageToken: nextToken}, nil
}

func (s *Service) insertRunning(ctx context.Context, employeeID string, kind Kind, projectID string, start time.Time) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:         s.newID(),
		EmployeeID: employeeID,
		Kind:       kind,
		ProjectID:  projectID,
		StartTime:  start,
		Status:     StatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if kind == KindIdle {
		sess.Idle = &IdleReview{ApprovalStatus: ApprovalPending}
	}

	created, err := s.repo.Insert(ctx, sess)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("employee_id", employeeID).
		Str("kind", string(kind)).
		Str("session_id", created.ID).
		Time("start_time", created.StartTime).
		Msg("session started")
	return created, nil
}

func (s *Service) closeRunning(ctx context.Context, running *Session, end time.Time) (*Session, error) {
	duration, err := ComputeDuration(running.StartTime, end)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("employee_id", running.EmployeeID).
			Str("kind", string(running.Kind)).
			Str("session_id", running.ID).
			Time("start_time", running.StartTime).
			Time("end_time", end).
			Msg("refusing to close session with negative duration")
		return nil, err
	}

	closed, err := s.repo.Close(ctx, running.ID, end, duration)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("employee_id", closed.EmployeeID).
		Str("kind", string(closed.Kind)).
		Str("session_id", closed.ID).
		Int64("duration_seconds", closed.DurationSeconds).
		Msg("session stopped")
	return closed, nil
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(timePrecision)
}

func buildListFilter(employeeID, projectID string, kind *Kind, status *Status, from, to *time.Time) (ListFilter, error) {
	filter := ListFilter{
		EmployeeID: strings.TrimSpace(employeeID),
		ProjectID:  strings.TrimSpace(projectID),
	}

	if kind != nil {
		if !isValidKind(*kind) {
			return ListFilter{}, ErrInvalidKind
		}
		k := *kind
		filter.Kind = &k
	}
	if status != nil {
		if !isValidStatus(*status) {
			return ListFilter{}, ErrInvalidStatus
		}
		st := *status
		filter.Status = &st
	}
	if from != nil && to != nil && !to.After(*from) {
		return ListFilter{}, ErrInvalidTimeRange
	}
	filter.StartFrom = cloneUTC(from)
	filter.StartTo = cloneUTC(to)

	return filter, nil
}

func normalizeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidID
	}
	return trimmed, nil
}

func normalizeEmployeeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmployeeID
	}
	return trimmed, nil
}

func normalizeProjectID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) > 255 {
		return "", ErrInvalidProjectID
	}
	return trimmed, nil
}

func normalizeText(raw string, invalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if len([]rune(trimmed)) > maxTextLength {
		return "", invalid
	}
	return trimmed, nil
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}

func cloneUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := t.UTC()
	return &clone
}

// IsAlreadyRunning は err が ErrAlreadyRunning を含むかどうかを返します。
func IsAlreadyRunning(err error) bool {
	return errors.Is(err, ErrAlreadyRunning)
}

func wrapRecordError(index int, err error) error {
	return fmt.Errorf("record %d: %w", index, err)
}
