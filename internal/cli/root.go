// Package cli は worktimectl のサブコマンドを定義します。
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/client"
	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/ogurasousui/worktime/internal/core/idle"
	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/ogurasousui/worktime/internal/platform/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// API は worktimectl が利用する TimeTrackingService の操作です。client.Client が満たします。
type API interface {
	idle.Recorder
	UpdateIdleReason(ctx context.Context, in session.UpdateReasonInput) (*session.Session, error)
	ReviewIdleSession(ctx context.Context, in session.ReviewInput) (*session.Session, error)
	ListSessions(ctx context.Context, req wire.ListRequest) ([]*session.Session, string, error)
	ExportSessions(ctx context.Context, req wire.ExportRequest) ([]*wire.Session, error)
	ImportSessions(ctx context.Context, sessions []*wire.Session) (*session.ImportResult, error)
	GetReport(ctx context.Context, req wire.ReportRequest) (*wire.Report, error)
}

// Dialer は addr へ接続した API を返します。
type Dialer func(addr string) (API, io.Closer, error)

// DialGRPC は gRPC クライアントで接続する Dialer です。
func DialGRPC(addr string) (API, io.Closer, error) {
	c, conn, err := client.Dial(addr)
	if err != nil {
		return nil, nil, err
	}
	return c, conn, nil
}

type globalOptions struct {
	addr     string
	timeout  time.Duration
	logLevel string
}

type app struct {
	dial Dialer
	opts globalOptions
}

// NewRootCmd は worktimectl のルートコマンドを生成します。
func NewRootCmd(dial Dialer) *cobra.Command {
	a := &app{dial: dial}

	root := &cobra.Command{
		Use:           "worktimectl",
		Short:         "Operate a worktime server",
		Long:          "worktimectl talks to a worktime gRPC server: run the idle agent, review idle sessions, move session records and read reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.opts.addr, "addr", "localhost:50051", "address of the worktime gRPC server")
	root.PersistentFlags().DurationVar(&a.opts.timeout, "timeout", 10*time.Second, "timeout of a single request")
	root.PersistentFlags().StringVar(&a.opts.logLevel, "log-level", "info", "log level of the idle agent")

	root.AddCommand(
		a.idleAgentCmd(),
		a.reasonCmd(),
		a.reviewCmd(),
		a.listCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.reportCmd(),
	)
	return root
}

// withAPI は接続を開いて fn を実行し、終了時に閉じます。
func (a *app) withAPI(fn func(API) error) error {
	api, closer, err := a.dial(a.opts.addr)
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(api)
}

func (a *app) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.opts.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, a.opts.timeout)
}

func (a *app) logger(w io.Writer) (zerolog.Logger, error) {
	return logging.New(a.opts.logLevel, logging.FormatAuto, w)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseTimeFlag は RFC 3339 形式の時刻フラグを解釈します。空文字は未指定です。
func parseTimeFlag(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	t = t.UTC()
	return &t, nil
}
