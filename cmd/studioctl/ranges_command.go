package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	domainservice "novel-studio-api/internal/domain/service"
)

func newRangesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ranges <text>...",
		Short: "Show how free-form chapter ranges are parsed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(args))
			for _, text := range args {
				r, ok := domainservice.ParseRange(text)
				if !ok {
					rows = append(rows, []string{text, "-", "-"})
					continue
				}
				rows = append(rows, []string{strings.TrimSpace(text), strconv.Itoa(r.Start), strconv.Itoa(r.End)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Input", "Start", "End"}, rows, 1, 2))
			return nil
		},
	}
}
