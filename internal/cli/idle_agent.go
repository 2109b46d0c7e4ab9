package cli

import (
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ogurasousui/worktime/internal/core/idle"
	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/spf13/cobra"
)

func (a *app) idleAgentCmd() *cobra.Command {
	var (
		employeeID string
		command    string
		unit       string
		interval   time.Duration
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "idle-agent",
		Short: "Sample the idle clock of this machine and report it to the server",
		Long: `Runs an idle-time command (for example xprintidle) at a fixed interval and sends each
sample to the server, which opens and closes idle sessions for the employee.

Examples:
  worktimectl idle-agent --employee emp-1 --command xprintidle
  worktimectl idle-agent --employee emp-1 --command "ioreg-idle" --unit s --interval 5s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := idle.NewCommandSource(strings.Fields(command), idle.Unit(unit))
			if err != nil {
				return err
			}
			log, err := a.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			return a.withAPI(func(api API) error {
				sampler, err := idle.NewSampler(source, api, idle.Config{
					EmployeeID: employeeID,
					Interval:   interval,
					Logger:     log,
				})
				if err != nil {
					return err
				}

				if once {
					ctx, cancel := a.requestContext(cmd.Context())
					defer cancel()
					result, err := sampler.SampleOnce(ctx)
					if err != nil {
						return err
					}
					action := session.IdleActionNone
					if result != nil {
						action = result.Action
					}
					return writeJSON(cmd.OutOrStdout(), map[string]any{"action": action})
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return sampler.Run(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&employeeID, "employee", "", "employee whose idle time is sampled")
	cmd.Flags().StringVar(&command, "command", "", "command printing the current idle time")
	cmd.Flags().StringVar(&unit, "unit", string(idle.UnitMilliseconds), "unit printed by --command (ms or s)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "sampling interval")
	cmd.Flags().BoolVar(&once, "once", false, "take a single sample and exit")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}
