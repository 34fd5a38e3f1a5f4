package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"novel-studio-api/internal/application/story/review"
	einoobs "novel-studio-api/internal/observability/eino"
	"novel-studio-api/internal/wire"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <project-id>",
		Short: "Run a consistency audit against the configured model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			einoobs.Init()
			return ctx.withStore(cmd.Context(), func(store *project.Store) error {
				engine := wire.NewEngine(cfg, store, nil, nil)
				report, err := engine.Auditor.Audit(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func printReport(out io.Writer, r *review.Report) {
	fmt.Fprintf(out, "Score:   %d/100\n", r.OverallScore)
	if s := strings.TrimSpace(r.Summary); s != "" {
		fmt.Fprintf(out, "Summary: %s\n", s)
	}
	if len(r.Issues) == 0 {
		fmt.Fprintln(out, "Issues:  none")
		return
	}
	rows := make([][]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		rows = append(rows, []string{string(is.Severity), is.Location, is.Description, is.Suggestion})
	}
	fmt.Fprintln(out, renderTable([]string{"Severity", "Location", "Issue", "Suggestion"}, rows))
}
