package idle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/rs/zerolog"
)

const defaultInterval = time.Second

// Source は OS が無操作状態にある秒数を返すアイドルクロックです。
// 値はスリープ復帰などで急に 0 付近へ戻ることがあります。
type Source interface {
	CurrentIdleSeconds(ctx context.Context) (int64, error)
}

// Recorder はサンプルを受け取るセッションエンジンの窓口です。
type Recorder interface {
	RecordIdleTick(ctx context.Context, in session.RecordIdleTickInput) (*session.IdleTickResult, error)
}

// Ticker は time.Ticker の差し替え可能な抽象です。
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker は time.Ticker を用いた Ticker を返します。
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Config は Sampler の設定です。
type Config struct {
	EmployeeID string
	Interval   time.Duration
	// NewTicker が nil の場合は NewRealTicker を使います。
	NewTicker func(time.Duration) Ticker
	Logger    zerolog.Logger
}

// Sampler はアイドルクロックを一定間隔で読み取り、Recorder へ渡す定期タスクです。
type Sampler struct {
	source     Source
	recorder   Recorder
	employeeID string
	interval   time.Duration
	newTicker  func(time.Duration) Ticker
	log        zerolog.Logger
}

// ErrInvalidConfig は Sampler の設定が不正な場合に返されます。
var ErrInvalidConfig = errors.New("idle: invalid sampler config")

// NewSampler は Sampler を生成します。
func NewSampler(source Source, recorder Recorder, cfg Config) (*Sampler, error) {
	if source == nil || recorder == nil {
		return nil, ErrInvalidConfig
	}
	employeeID := strings.TrimSpace(cfg.EmployeeID)
	if employeeID == "" {
		return nil, ErrInvalidConfig
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = NewRealTicker
	}

	return &Sampler{
		source:     source,
		recorder:   recorder,
		employeeID: employeeID,
		interval:   interval,
		newTicker:  newTicker,
		log:        cfg.Logger.With().Str("component", "idle-sampler").Str("employee_id", employeeID).Logger(),
	}, nil
}

// Run は ctx がキャンセルされるまでサンプリングを続けます。
func (s *Sampler) Run(ctx context.Context) error {
	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("idle sampler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("idle sampler stopped")
			return nil
		case <-ticker.C():
			if _, err := s.SampleOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("idle sample failed")
			}
		}
	}
}

// SampleOnce はアイドル秒数を一度読み取り、エンジンへ反映します。
func (s *Sampler) SampleOnce(ctx context.Context) (*session.IdleTickResult, error) {
	seconds, err := s.source.CurrentIdleSeconds(ctx)
	if err != nil {
		return nil, err
	}
	if seconds < 0 {
		seconds = 0
	}

	result, err := s.recorder.RecordIdleTick(ctx, session.RecordIdleTickInput{
		EmployeeID:  s.employeeID,
		IdleSeconds: seconds,
	})
	if err != nil {
		return nil, err
	}

	if result != nil && result.Action != session.IdleActionNone {
		s.log.Info().
			Str("action", string(result.Action)).
			Int64("idle_seconds", seconds).
			Msg("idle state changed")
	}
	return result, nil
}
