package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"novel-studio-api/internal/application/project"
	"novel-studio-api/internal/domain/repository"
)

const stampLayout = "2006-01-02 15:04"

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects, most recently modified first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *project.Store) error {
				printProjects(cmd.OutOrStdout(), store.List(cmd.Context()))
				return nil
			})
		},
	}
}

func printProjects(out io.Writer, items []repository.ProjectSummary) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No projects")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.ID,
			it.Title,
			it.CurrentStep.String(),
			strconv.Itoa(it.PlotProgress) + "%",
			strconv.Itoa(it.ChapterCount),
			it.LastModified.Local().Format(stampLayout),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Stage", "Progress", "Chapters", "Modified"}, rows, 3, 4))
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a project from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return ctx.withStore(cmd.Context(), func(store *project.Store) error {
				p, err := store.Import(cmd.Context(), data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s (%d chapters)\n", p.Title, p.ID, len(p.Chapters))
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export a project as json, txt or doc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := project.ParseExportFormat(format)
			if err != nil {
				return err
			}
			var doc *project.Document
			err = ctx.withStore(cmd.Context(), func(store *project.Store) error {
				doc, err = store.Export(cmd.Context(), args[0], f)
				return err
			})
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(doc.Body)
				return err
			}
			if output == "" {
				output = filepath.Base(doc.Filename)
			}
			if err := os.WriteFile(output, doc.Body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, len(doc.Body))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json, txt or doc")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file; '-' writes to stdout")
	return cmd
}
