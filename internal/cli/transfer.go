package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/wire"
	"github.com/spf13/cobra"
)

type rangeFlags struct {
	employeeID string
	projectID  string
	from       string
	to         string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.employeeID, "employee", "", "only sessions of this employee")
	cmd.Flags().StringVar(&f.projectID, "project", "", "only work sessions of this project")
	cmd.Flags().StringVar(&f.from, "from", "", "only sessions starting at or after this RFC 3339 time")
	cmd.Flags().StringVar(&f.to, "to", "", "only sessions starting before this RFC 3339 time")
}

func (a *app) listCmd() *cobra.Command {
	var (
		rf        rangeFlags
		kind      string
		status    string
		pageSize  int
		pageToken string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions one page at a time",
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

				sessions, next, err := api.ListSessions(ctx, wire.ListRequest{
					EmployeeID: rf.employeeID,
					ProjectID:  rf.projectID,
					Kind:       kind,
					Status:     status,
					From:       from,
					To:         to,
					PageSize:   pageSize,
					PageToken:  pageToken,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), wire.ListResponse{Sessions: wire.FromSessions(sessions), NextPageToken: next})
			})
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "work, break or idle")
	cmd.Flags().StringVar(&status, "status", "", "running or stopped")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "sessions per page (server default when 0)")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "token returned by the previous page")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		rf     rangeFlags
		kind   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write session records as a JSON array",
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

				sessions, err := api.ExportSessions(ctx, wire.ExportRequest{
					EmployeeID: rf.employeeID,
					ProjectID:  rf.projectID,
					Kind:       kind,
					From:       from,
					To:         to,
				})
				if err != nil {
					return err
				}
				if sessions == nil {
					sessions = []*wire.Session{}
				}

				var buf bytes.Buffer
				if err := writeJSON(&buf, sessions); err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(buf.Bytes())
					return err
				}
				if err := os.WriteFile(output, buf.Bytes(), 0o600); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d sessions to %s\n", len(sessions), output)
				return nil
			})
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "work, break or idle")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (stdout when empty or -)")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import session records written by export",
		Long: `Imports a JSON array of session records. Records whose (employee, kind, start time)
already exist are skipped, so importing the same file twice is harmless.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			var sessions []*wire.Session
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&sessions); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			return a.withAPI(func(api API) error {
				ctx, cancel := a.requestContext(cmd.Context())
				defer cancel()

				result, err := api.ImportSessions(ctx, sessions)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), wire.ImportResponse{Imported: result.Imported, Skipped: result.Skipped})
			})
		},
	}
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
