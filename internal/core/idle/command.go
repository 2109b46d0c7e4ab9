package idle

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Unit はコマンド出力の単位です。
type Unit string

const (
	UnitMilliseconds Unit = "ms"
	UnitSeconds      Unit = "s"
)

const defaultCommandTimeout = 2 * time.Second

// ErrEmptyCommand はコマンドが指定されていない場合に返されます。
var ErrEmptyCommand = errors.New("idle: command is required")

// CommandSource は外部コマンド (xprintidle など) の出力からアイドル秒数を取得します。
type CommandSource struct {
	name    string
	args    []string
	unit    Unit
	timeout time.Duration
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCommandSource は CommandSource を生成します。unit が空の場合はミリ秒として扱います。
func NewCommandSource(command []string, unit Unit) (*CommandSource, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, ErrEmptyCommand
	}
	switch unit {
	case "":
		unit = UnitMilliseconds
	case UnitMilliseconds, UnitSeconds:
	default:
		return nil, fmt.Errorf("idle: unsupported unit %q", unit)
	}

	return &CommandSource{
		name:    command[0],
		args:    command[1:],
		unit:    unit,
		timeout: defaultCommandTimeout,
		run:     runCommand,
	}, nil
}

// CurrentIdleSeconds はコマンドを実行し、出力を秒に換算して返します。
func (c *CommandSource) CurrentIdleSeconds(ctx context.Context) (int64, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.run(runCtx, c.name, c.args...)
	if err != nil {
		return 0, fmt.Errorf("idle: run %s: %w", c.name, err)
	}
	return parseIdleOutput(string(out), c.unit)
}

func parseIdleOutput(raw string, unit Unit) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("idle: parse output %q: %w", strings.TrimSpace(raw), err)
	}
	if value < 0 {
		return 0, fmt.Errorf("idle: negative idle value %d", value)
	}
	if unit == UnitMilliseconds {
		return value / 1000, nil
	}
	return value, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
