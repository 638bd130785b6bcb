package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coolbeans/normtree/internal/logging"
	"github.com/coolbeans/normtree/pkg/linkcheck"
	"github.com/coolbeans/normtree/pkg/text"
)

func (a *app) linksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Check the hyperlinks of a structured document",
		Long: `Collect every link of a structured tree (titles, alineas and table cells)
and check it over HTTP. Requests to one host are spaced; hosts are checked
in parallel. Exits with an error when a link is broken.

Examples:
  normtree links --input tree.json
  normtree links --id ap-2510 --format md > links.md
  normtree links --input tree.json --timeout 5s --retries 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			documentID, _ := cmd.Flags().GetString("id")
			format, _ := cmd.Flags().GetString("format")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			retries, _ := cmd.Flags().GetInt("retries")
			interval, _ := cmd.Flags().GetDuration("interval")

			tree, err := a.linksTree(cmd, inputPath, documentID)
			if err != nil {
				return err
			}
			links := linkcheck.Collect(tree)
			logging.InfoContext(cmd.Context(), "checking links", "links", len(links))

			config := linkcheck.DefaultConfig()
			config.Concurrency = a.cfg.Workers
			config.Timeout = timeout
			config.MaxRetries = retries
			config.HostInterval = interval
			checker := linkcheck.NewChecker(config, nil)
			checker.SetLogger(logging.LoggerFromContext(cmd.Context()))
			report := checker.Check(cmd.Context(), links)

			out := cmd.OutOrStdout()
			switch format {
			case "md", "markdown":
				fmt.Fprint(out, report.Markdown())
			case "json":
				if err := writeJSON(out, report); err != nil {
					return err
				}
			case "", "text":
				fmt.Fprint(out, report.String())
			default:
				return fmt.Errorf("unsupported output format %q", format)
			}

			if !report.OK() {
				return fmt.Errorf("%d broken link(s)", len(report.Broken))
			}
			return nil
		},
	}
	cmd.Flags().String("input", "", "Structured tree JSON")
	cmd.Flags().String("id", "", "Library document id (instead of --input)")
	cmd.Flags().String("library", "", "Library database (default: from configuration)")
	cmd.Flags().String("format", "text", "Output format: text, md, json")
	cmd.Flags().Duration("timeout", 15*time.Second, "Timeout of each request")
	cmd.Flags().Int("retries", 2, "Retries on timeouts and transport errors")
	cmd.Flags().Duration("interval", 500*time.Millisecond, "Minimum delay between requests to one host")
	return cmd
}

func (a *app) linksTree(cmd *cobra.Command, inputPath, documentID string) (*text.StructuredText, error) {
	switch {
	case inputPath != "" && documentID != "":
		return nil, fmt.Errorf("--input and --id are mutually exclusive")
	case inputPath != "":
		return loadTree(inputPath)
	case documentID != "":
		lib, err := a.openLibrary(cmd)
		if err != nil {
			return nil, err
		}
		defer lib.Close()
		return lib.GetDocument(documentID)
	default:
		return nil, fmt.Errorf("--input or --id is required")
	}
}
