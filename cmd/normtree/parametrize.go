package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/coolbeans/normtree/internal/logging"
	"github.com/coolbeans/normtree/pkg/apply"
	"github.com/coolbeans/normtree/pkg/combination"
	"github.com/coolbeans/normtree/pkg/condition"
	"github.com/coolbeans/normtree/pkg/library"
	"github.com/coolbeans/normtree/pkg/parametrization"
	"github.com/coolbeans/normtree/pkg/render"
	"github.com/coolbeans/normtree/pkg/text"
	versions "github.com/coolbeans/normtree/pkg/version"
)

// loadParametrization reads the tree (optional) and the authoring file.
func loadParametrization(cmd *cobra.Command) (*text.StructuredText, *parametrization.Parametrization, error) {
	inputPath, _ := cmd.Flags().GetString("input")
	parametrizationPath, _ := cmd.Flags().GetString("parametrization")
	if parametrizationPath == "" {
		return nil, nil, fmt.Errorf("--parametrization flag is required")
	}

	var tree *text.StructuredText
	if inputPath != "" {
		var err error
		if tree, err = loadTree(inputPath); err != nil {
			return nil, nil, err
		}
	}
	p, err := parametrization.LoadFile(parametrizationPath, tree)
	if err != nil {
		return nil, nil, err
	}
	if tree != nil {
		if err := checkTargets(tree, p); err != nil {
			return nil, nil, err
		}
	}
	return tree, p, nil
}

// checkTargets reports rules whose target path is not in tree.
func checkTargets(tree *text.StructuredText, p *parametrization.Parametrization) error {
	missing := lo.Filter(p.Targets(), func(path text.Path, _ int) bool {
		_, ok := text.AtPath(tree, path)
		return !ok
	})
	if len(missing) > 0 {
		keys := lo.Map(missing, func(path text.Path, _ int) string { return path.String() })
		return fmt.Errorf("%w: targets not in the document: %s", parametrization.ErrInvalidRule, strings.Join(keys, ", "))
	}
	return nil
}

func (a *app) checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Build a parametrization and report inconsistencies",
		Long: `Parse a parametrization file, check every rule and every pair of rules
sharing a target, and print a summary.

Examples:
  normtree check --parametrization ap-2510.yaml
  normtree check --parametrization ap-2510.yaml --input tree.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadParametrization(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parametrization OK\n")
			fmt.Fprintf(out, "  Inapplicable sections: %d\n", len(p.Inapplicable()))
			fmt.Fprintf(out, "  Alternative sections:  %d\n", len(p.Alternatives()))
			fmt.Fprintf(out, "  Warnings:              %d\n", len(p.Warnings()))
			fmt.Fprintf(out, "  Targets:               %d\n", len(p.Targets()))
			params := lo.Map(p.Parameters(), func(param condition.Parameter, _ int) string { return param.String() })
			if len(params) > 0 {
				fmt.Fprintf(out, "  Parameters:            %s\n", strings.Join(params, ", "))
			}
			return nil
		},
	}
	cmd.Flags().String("parametrization", "", "Parametrization YAML file (required)")
	cmd.Flags().String("input", "", "Structured tree JSON, to resolve target_id and check targets")
	return cmd
}

func (a *app) combinationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combinations",
		Short: "Print the parameter combinations of a parametrization",
		Long: `Print one line per combination: every value that can change the outcome
of at least one rule, crossed over all parameters.

Examples:
  normtree combinations --parametrization ap-2510.yaml
  normtree combinations --parametrization ap-2510.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			_, p, err := loadParametrization(cmd)
			if err != nil {
				return err
			}
			combinations, err := combination.Generate(p)
			if err != nil {
				return err
			}
			if asJSON {
				type entry struct {
					Label  string               `json:"label"`
					Values condition.Assignment `json:"values"`
				}
				return writeJSON(cmd.OutOrStdout(), lo.Map(combinations, func(c combination.Combination, _ int) entry {
					return entry{Label: c.Label(), Values: c.Values}
				}))
			}
			for i, c := range combinations {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, c.Label())
			}
			return nil
		},
	}
	cmd.Flags().String("parametrization", "", "Parametrization YAML file (required)")
	cmd.Flags().String("input", "", "Structured tree JSON, to resolve target_id")
	cmd.Flags().Bool("json", false, "Print combinations with their values as JSON")
	return cmd
}

func (a *app) applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Print the version of a document for one assignment",
		Long: `Apply a parametrization to a structured tree for the given parameter
values. Parameters left unset make the rules depending on them undetermined:
their nodes stay active and carry a warning.

Examples:
  normtree apply --input tree.json --parametrization ap-2510.yaml --set regime=E
  normtree apply --input tree.json --parametrization ap-2510.yaml \
    --set regime=A --set date-d-installation=2005-03-01 --format md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, _ := cmd.Flags().GetStringArray("set")
			format, _ := cmd.Flags().GetString("format")

			tree, p, err := loadParametrization(cmd)
			if err != nil {
				return err
			}
			if tree == nil {
				return fmt.Errorf("--input flag is required")
			}
			assignment, err := parseAssignment(p, sets)
			if err != nil {
				return err
			}
			logging.Debug("applying parametrization", "assignment", assignment.String())

			out, err := apply.Apply(tree, p, assignment)
			if err != nil {
				return err
			}
			switch format {
			case "md", "markdown":
				return render.Markdown(cmd.OutOrStdout(), out)
			case "", "json":
				return writeJSON(cmd.OutOrStdout(), out)
			default:
				return fmt.Errorf("unsupported output format %q", format)
			}
		},
	}
	cmd.Flags().String("input", "", "Structured tree JSON (required)")
	cmd.Flags().String("parametrization", "", "Parametrization YAML file (required)")
	cmd.Flags().StringArray("set", nil, "Parameter value as id=value (repeatable)")
	cmd.Flags().String("format", "json", "Output format: json, md")
	return cmd
}

// parseAssignment reads id=value pairs against the parameters used by p.
func parseAssignment(p *parametrization.Parametrization, sets []string) (condition.Assignment, error) {
	known := lo.KeyBy(p.Parameters(), func(param condition.Parameter) string { return param.ID })
	assignment := condition.Assignment{}
	for _, set := range sets {
		id, raw, ok := strings.Cut(set, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: expected id=value", set)
		}
		param, ok := known[strings.TrimSpace(id)]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q (known: %s)", id, strings.Join(sortedKeys(known), ", "))
		}
		value, err := condition.ParseValue(param.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", param.ID, err)
		}
		assignment[param] = value
	}
	return assignment, nil
}

func sortedKeys(m map[string]condition.Parameter) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func (a *app) versionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Generate every version of a document and store them",
		Long: `Generate the version of a document for every parameter combination and
store the document, its parametrization and its versions in the library.

Examples:
  normtree versions --input tree.json --parametrization ap-2510.yaml --id ap-2510
  normtree versions --input tree.json --parametrization ap-2510.yaml --workers 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			documentID, _ := cmd.Flags().GetString("id")
			workers, _ := cmd.Flags().GetInt("workers")
			libraryPath, _ := cmd.Flags().GetString("library")

			tree, p, err := loadParametrization(cmd)
			if err != nil {
				return err
			}
			if tree == nil {
				return fmt.Errorf("--input flag is required")
			}
			if documentID == "" {
				documentID = library.DeriveDocumentID(inputPath)
			}
			if workers < 1 {
				workers = a.cfg.Workers
			}
			if libraryPath == "" {
				libraryPath = a.cfg.LibraryPath
			}

			generated, err := versions.Generate(cmd.Context(), tree, p, workers)
			if err != nil {
				return err
			}

			lib, err := library.Open(libraryPath)
			if err != nil {
				return err
			}
			defer lib.Close()

			if _, _, err := lib.SaveDocument(documentID, tree); err != nil {
				return err
			}
			if err := lib.SaveParametrization(documentID, p); err != nil {
				return err
			}
			changed := 0
			for _, v := range generated {
				ok, err := lib.SaveVersion(documentID, v.Label(), v.Tree)
				if err != nil {
					return err
				}
				if ok {
					changed++
				}
			}
			logging.InfoContext(cmd.Context(), "versions stored", "document", documentID, "versions", len(generated), "changed", changed)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Document: %s\n", documentID)
			fmt.Fprintf(out, "  Versions: %d (%d new or changed)\n", len(generated), changed)
			for _, v := range generated {
				fmt.Fprintf(out, "  - %s\n", v.Label())
			}
			return nil
		},
	}
	cmd.Flags().String("input", "", "Structured tree JSON (required)")
	cmd.Flags().String("parametrization", "", "Parametrization YAML file (required)")
	cmd.Flags().String("id", "", "Library document id (default: from the input file name)")
	cmd.Flags().Int("workers", 0, "Parallel applications (default: from configuration)")
	cmd.Flags().String("library", "", "Library database (default: from configuration)")
	return cmd
}
