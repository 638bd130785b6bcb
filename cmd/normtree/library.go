package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coolbeans/normtree/pkg/library"
	"github.com/coolbeans/normtree/pkg/render"
)

func (a *app) libraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the document library",
		Long: `Inspect and maintain the SQLite library of structured documents, their
parametrizations and their generated versions.

Examples:
  normtree library list
  normtree library show ap-2510 --format md
  normtree library show ap-2510 --version "regime = A"
  normtree library status ap-2510 published
  normtree library import trees/
  normtree library stats
  normtree library delete ap-2510`,
	}
	cmd.PersistentFlags().String("library", "", "Library database (default: from configuration)")

	cmd.AddCommand(a.libraryListCmd())
	cmd.AddCommand(a.libraryShowCmd())
	cmd.AddCommand(a.libraryStatusCmd())
	cmd.AddCommand(a.libraryImportCmd())
	cmd.AddCommand(a.libraryStatsCmd())
	cmd.AddCommand(a.libraryDeleteCmd())

	return cmd
}

func (a *app) openLibrary(cmd *cobra.Command) (*library.Library, error) {
	libraryPath, _ := cmd.Flags().GetString("library")
	if libraryPath == "" {
		libraryPath = a.cfg.LibraryPath
	}
	lib, err := library.Open(libraryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open library at %s: %w", libraryPath, err)
	}
	return lib, nil
}

func (a *app) libraryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents in the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary(cmd)
			if err != nil {
				return err
			}
			defer lib.Close()

			entries, err := lib.ListDocuments()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Library is empty.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tNODES\tPARAMETRIZED\tVERSIONS\tUPDATED\tTITLE")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%d\t%s\t%s\n",
					entry.ID, entry.Status, entry.Nodes, entry.HasParametrization, entry.Versions,
					entry.UpdatedAt.Format("2006-01-02 15:04"), entry.Title)
			}
			return w.Flush()
		},
	}
}

func (a *app) libraryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored document, parametrization or version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			label, _ := cmd.Flags().GetString("version")
			showParametrization, _ := cmd.Flags().GetBool("parametrization")

			lib, err := a.openLibrary(cmd)
			if err != nil {
				return err
			}
			defer lib.Close()

			if showParametrization {
				p, err := lib.GetParametrization(args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), p)
			}

			doc, err := lib.GetDocument(args[0])
			if label != "" {
				doc, err = lib.GetVersion(args[0], label)
			}
			if err != nil {
				return err
			}
			switch format {
			case "md", "markdown":
				return render.Markdown(cmd.OutOrStdout(), doc)
			case "", "json":
				return writeJSON(cmd.OutOrStdout(), doc)
			default:
				return fmt.Errorf("unsupported output format %q", format)
			}
		},
	}
	cmd.Flags().String("format", "json", "Output format: json, md")
	cmd.Flags().String("version", "", "Show the stored version with this combination label")
	cmd.Flags().Bool("parametrization", false, "Show the parametrization instead of the document")
	return cmd
}

func (a *app) libraryStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> [draft|structured|parametrized|published]",
		Short: "Show or set the status of a document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary(cmd)
			if err != nil {
				return err
			}
			defer lib.Close()

			if len(args) == 2 {
				if err := lib.SetStatus(args[0], library.DocumentStatus(args[1])); err != nil {
					return err
				}
			}
			status, err := lib.GetStatus(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
			return nil
		},
	}
}

func (a *app) libraryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Import every structured tree (*.json) of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary(cmd)
			if err != nil {
				return err
			}
			defer lib.Close()

			report, err := library.ImportDirectory(lib, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Import complete: %d imported, %d unchanged, %d failed (of %d)\n",
				report.Imported, report.Unchanged, report.Failed, report.TotalAttempted)
			for _, entry := range report.Entries {
				if entry.Error != "" {
					fmt.Fprintf(out, "  FAILED %s: %s\n", entry.ID, entry.Error)
				}
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d file(s) failed to import", report.Failed)
			}
			return nil
		},
	}
}

func (a *app) libraryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate library statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary(cmd)
			if err != nil {
				return err
			}
			defer lib.Close()

			stats, err := lib.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Documents:    %d\n", stats.TotalDocuments)
			fmt.Fprintf(out, "Nodes:        %d\n", stats.TotalNodes)
			fmt.Fprintf(out, "Parametrized: %d\n", stats.Parametrized)
			fmt.Fprintf(out, "Versions:     %d\n", stats.TotalVersions)
			fmt.Fprintf(out, "Stored bytes: %d\n", stats.TotalStoredBytes)
			for _, status := range []library.DocumentStatus{library.StatusDraft, library.StatusStructured, library.StatusParametrized, library.StatusPublished} {
				if n := stats.ByStatus[string(status)]; n > 0 {
					fmt.Fprintf(out, "  %-13s %d\n", status+":", n)
				}
			}
			return nil
		},
	}
}

func (a *app) libraryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document with its parametrization and versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary(cmd)
			if err != nil {
				return err
			}
			defer lib.Close()

			if err := lib.DeleteDocument(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
