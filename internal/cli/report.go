package cli

import (
	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/spf13/cobra"
)

func (a *app) reportCmd() *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print time totals per kind, employee and project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseTimeFlag("from", rf.from)
			if err != nil {
				return err
			}
			to, err := parseTimeFlag("to", rf.to)
			if err != nil {
				return err
			}

			return a.withAPI(func(api API) error {
				ctx, cancel := a.requestContext(cmd.Context())
				defer cancel()

				rep, err := api.GetReport(ctx, wire.ReportRequest{
					EmployeeID: rf.employeeID,
					ProjectID:  rf.projectID,
					From:       from,
					To:         to,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
	rf.register(cmd)
	return cmd
}
