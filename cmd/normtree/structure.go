package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coolbeans/normtree/internal/logging"
	"github.com/coolbeans/normtree/pkg/library"
	"github.com/coolbeans/normtree/pkg/placeholder"
	"github.com/coolbeans/normtree/pkg/reader"
	"github.com/coolbeans/normtree/pkg/text"
)

func (a *app) structureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Structure a document into a tree of sections",
		Long: `Read a document and print its structured tree as JSON.

Headings split the document first; numbering patterns ("1.", "I.", "a)")
split whatever has no headings. With --by-patterns, HTML is structured by
numbering patterns alone, tables and links being set aside while the text
is split.

Examples:
  normtree structure --input arrete.html
  normtree structure --input arrete.docx --title "Arrêté du 3 août 2018"
  normtree structure --input arrete.html --by-patterns --out tree.json
  normtree structure --input arrete.md --save ap-2510`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			format, _ := cmd.Flags().GetString("format")
			title, _ := cmd.Flags().GetString("title")
			byPatterns, _ := cmd.Flags().GetBool("by-patterns")
			outPath, _ := cmd.Flags().GetString("out")
			saveID, _ := cmd.Flags().GetString("save")

			if inputPath == "" {
				return fmt.Errorf("--input flag is required")
			}
			tree, err := a.structureFile(inputPath, format, title, byPatterns)
			if err != nil {
				return err
			}

			if saveID != "" {
				if err := a.saveStructured(cmd, saveID, tree); err != nil {
					return err
				}
			}
			return writeJSONOutput(cmd, outPath, tree)
		},
	}

	cmd.Flags().String("input", "", "Input document (required)")
	cmd.Flags().String("format", "", "Input format: html, md, docx, txt (default: from extension)")
	cmd.Flags().String("title", "", "Root title (default: first top-level heading or file name)")
	cmd.Flags().Bool("by-patterns", false, "Structure HTML by numbering patterns only")
	cmd.Flags().String("out", "", "Write the tree to this file instead of stdout")
	cmd.Flags().String("save", "", "Also store the tree in the library under this id")

	return cmd
}

func (a *app) structureFile(inputPath, format, title string, byPatterns bool) (*text.StructuredText, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if format == "" {
		format = formatFromPath(inputPath)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	}

	s := a.structurer()
	if byPatterns {
		if format != "html" {
			return nil, fmt.Errorf("--by-patterns requires HTML input, got %s", format)
		}
		return placeholder.StructureHTML(text.NewString(title), string(data), s, a.tokens())
	}

	elements, err := readElements(data, format)
	if err != nil {
		return nil, err
	}
	marker, elements := rootTitle(title, elements)
	logging.Debug("document read", "input", inputPath, "format", format, "elements", len(elements))

	tree, err := s.Structure(marker, elements)
	if err != nil {
		return nil, fmt.Errorf("failed to structure %s: %w", inputPath, err)
	}
	return tree, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return "html"
	case ".md", ".markdown":
		return "md"
	case ".docx":
		return "docx"
	default:
		return "txt"
	}
}

func readElements(data []byte, format string) ([]text.TextElement, error) {
	switch format {
	case "html":
		return reader.HTMLElements(bytes.NewReader(data))
	case "md":
		return reader.MarkdownElements(data)
	case "docx":
		return reader.ReadDocx(bytes.NewReader(data), int64(len(data)))
	case "txt":
		return textElements(data)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

// textElements reads plain text: every non-blank line is a paragraph.
func textElements(data []byte) ([]text.TextElement, error) {
	var elements []text.TextElement
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		elements = append(elements, text.Paragraph{Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	return elements, nil
}

// rootTitle uses a lone level-1 heading at the top of the document as the
// root title. Otherwise the given title is used.
func rootTitle(fallback string, elements []text.TextElement) (*text.TitleMarker, []text.TextElement) {
	if len(elements) > 0 {
		if m, ok := elements[0].(text.TitleMarker); ok && m.Level == 1 {
			lone := true
			for _, el := range elements[1:] {
				if other, ok := el.(text.TitleMarker); ok && other.Level == 1 {
					lone = false
					break
				}
			}
			if lone {
				return &m, elements[1:]
			}
		}
	}
	return &text.TitleMarker{Text: fallback}, elements
}

func (a *app) saveStructured(cmd *cobra.Command, id string, tree *text.StructuredText) error {
	lib, err := library.Open(a.cfg.LibraryPath)
	if err != nil {
		return err
	}
	defer lib.Close()

	if previous, err := lib.GetDocument(id); err == nil {
		n := library.TransferIDs(previous, tree)
		logging.Info("node ids transferred", "document", id, "count", n)
	}
	entry, changed, err := lib.SaveDocument(id, tree)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	if changed {
		logging.Info("document saved", "document", id, "nodes", entry.Nodes, "digest", entry.Digest)
	} else {
		logging.Info("document unchanged", "document", id)
	}
	return nil
}

func (a *app) detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <line>...",
		Short: "Print the numbering pattern detected on each line",
		Long: `Print the numbering pattern detected at the start of each line, or "-"
when none matches.

Examples:
  normtree detect "1. Champ" "II. Définitions" "a) Les installations"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := a.registry.Catalog()
			out := cmd.OutOrStdout()
			for _, line := range args {
				name, ok := catalog.Detect(line)
				if !ok {
					name = "-"
				}
				fmt.Fprintf(out, "%s\t%s\n", name, line)
			}
			return nil
		},
	}
}

// loadTree reads a structured tree from a JSON file.
func loadTree(path string) (*text.StructuredText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree: %w", err)
	}
	var tree text.StructuredText
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse tree %s: %w", path, err)
	}
	return &tree, nil
}

func writeJSONOutput(cmd *cobra.Command, outPath string, v any) error {
	if outPath == "" {
		return writeJSON(cmd.OutOrStdout(), v)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	if err := writeJSON(f, v); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Written to: %s\n", outPath)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
