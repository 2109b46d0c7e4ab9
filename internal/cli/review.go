package cli

import (
	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/spf13/cobra"
)

func (a *app) reasonCmd() *cobra.Command {
	var employeeID string

	cmd := &cobra.Command{
		Use:   "reason <session-id> <reason>",
		Short: "Explain an idle session before it is reviewed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAPI(func(api API) error {
				ctx, cancel := a.requestContext(cmd.Context())
				defer cancel()

				updated, err := api.UpdateIdleReason(ctx, session.UpdateReasonInput{
					SessionID:  args[0],
					EmployeeID: employeeID,
					Reason:     args[1],
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), wire.FromSession(updated))
			})
		},
	}
	cmd.Flags().StringVar(&employeeID, "employee", "", "employee owning the idle session")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func (a *app) reviewCmd() *cobra.Command {
	var (
		adminID string
		note    string
	)

	cmd := &cobra.Command{
		Use:   "review <session-id> <approve|reject>",
		Short: "Approve or reject a stopped idle session",
		Long: `Records an administrator decision on a stopped idle session. A decided session
cannot be reviewed again.

Examples:
  worktimectl review 6f1c... approve --admin admin-1
  worktimectl review 6f1c... reject --admin admin-1 --note "lunch, not a meeting"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := session.ParseDecision(args[1])
			if err != nil {
				return err
			}

			return a.withAPI(func(api API) error {
				ctx, cancel := a.requestContext(cmd.Context())
				defer cancel()

				reviewed, err := api.ReviewIdleSession(ctx, session.ReviewInput{
					SessionID: args[0],
					AdminID:   adminID,
					Decision:  decision,
					Note:      note,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), wire.FromSession(reviewed))
			})
		},
	}
	cmd.Flags().StringVar(&adminID, "admin", "", "administrator recording the decision")
	cmd.Flags().StringVar(&note, "note", "", "optional note stored with the decision")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}
