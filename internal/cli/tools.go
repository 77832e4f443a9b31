package cli

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/compare"
	"github.com/diblac17-eng/weftend/internal/evidence"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

var ticketPackCmd = &cobra.Command{
	Use:   "ticket-pack <root>",
	Short: "Repack an evidence root for a support ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		asZip, _ := cmd.Flags().GetBool("zip")
		return runTicketPack(args[0], out, asZip)
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <root>",
	Short: "Print the normalized summary of an evidence root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, lerr := compare.LoadSide(args[0], compare.SideLeft)
		if lerr != nil {
			return lerr
		}
		fmt.Fprint(cmd.OutOrStdout(), renderSummary(compare.Normalize(src)))
		return nil
	},
}

var exportJSONCmd = &cobra.Command{
	Use:   "export-json <root>",
	Short: "Export the normalized summary as canonical JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		return runExportJSON(cmd, args[0], format, out)
	},
}

func init() {
	ticketPackCmd.Flags().String("out", "", "ticket pack output root (required)")
	ticketPackCmd.Flags().Bool("zip", false, "also produce ticket_pack.zip")
	_ = ticketPackCmd.MarkFlagRequired("out")

	exportJSONCmd.Flags().String("format", "summary", "export format: summary")
	exportJSONCmd.Flags().String("out", "", "output file (stdout when omitted)")

	rootCmd.AddCommand(ticketPackCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(exportJSONCmd)
}

// runTicketPack copies every file of a committed root under ticket_pack/
// in a fresh evidence root of its own, so the pack carries an operator
// receipt covering the copies.
func runTicketPack(root, out string, asZip bool) error {
	if cerr := evidence.CheckCompareRoots(out, root, root); cerr != nil {
		return cerr
	}

	// The source must be a committed, loadable evidence root.
	if _, lerr := compare.LoadSide(root, compare.SideLeft); lerr != nil {
		return lerr
	}

	w, werr := evidence.NewWriter(out, deps.Build, evidence.Options{})
	if werr != nil {
		return werr
	}

	var rels []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		w.Abort()
		return reason.Surface(reason.InputUnreadable, "evidence root unreadable", walkErr)
	}
	sort.SliceStable(rels, func(i, j int) bool { return canon.LessV0(rels[i], rels[j]) })

	for _, rel := range rels {
		b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			w.Abort()
			return reason.Surface(reason.InputUnreadable, "evidence file unreadable", err)
		}
		if err := w.StageBytes("ticket_pack/"+rel, "ticket_copy", b); err != nil {
			w.Abort()
			return reason.Internal(err)
		}
	}

	if asZip {
		zipBytes, err := zipTree(root, rels)
		if err != nil {
			w.Abort()
			return reason.Internal(err)
		}
		if err := w.StageBytes("ticket_pack.zip", "ticket_zip", zipBytes); err != nil {
			w.Abort()
			return reason.Internal(err)
		}
	}

	if _, cerr := w.Commit(); cerr != nil {
		return cerr
	}
	return nil
}

// zipTree builds a deterministic zip of the given files: sorted entry
// order, store-only headers, zeroed timestamps.
func zipTree(root string, rels []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, rel := range rels {
		b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		hdr := &zip.FileHeader{Name: rel, Method: zip.Store}
		f, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(b); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// runExportJSON writes the normalized summary. The output file must not be
// one of the source evidence files.
func runExportJSON(cmd *cobra.Command, root, format, out string) error {
	if format != "summary" {
		return reason.Surface(reason.FormatUnsupported, "unsupported export format "+format, nil)
	}

	src, lerr := compare.LoadSide(root, compare.SideLeft)
	if lerr != nil {
		return lerr
	}
	summary := compare.Normalize(src)

	if out == "" {
		return printCanonical(cmd, summary)
	}

	if info, statErr := os.Stat(out); statErr == nil && info.IsDir() {
		return reason.Surface(reason.ExportJSONOutPathIsDirectory, "export target is a directory", nil)
	}

	absOut, err := filepath.Abs(out)
	if err != nil {
		return reason.Internal(err)
	}
	conflict := false
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if abs, aerr := filepath.Abs(path); aerr == nil && abs == absOut {
			conflict = true
		}
		return nil
	})
	if conflict {
		return reason.Surface(reason.ExportJSONOutConflictsSource, "export target collides with a source evidence file", nil)
	}

	b, err := canonicalSummaryBytes(summary)
	if err != nil {
		return reason.Internal(err)
	}
	if err := os.WriteFile(out, b, 0644); err != nil {
		return reason.Internal(err)
	}
	return nil
}

func canonicalSummaryBytes(summary *compare.Summary) ([]byte, error) {
	b, err := schema.CanonicalBytes(summary)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Summary rendering for the terminal.
var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	summaryKeyStyle   = lipgloss.NewStyle().Faint(true)
)

func renderSummary(s *compare.Summary) string {
	row := func(k, v string) string {
		return summaryKeyStyle.Render(fmt.Sprintf("%-22s", k)) + v + "\n"
	}
	var b strings.Builder
	b.WriteString(summaryTitleStyle.Render("weftend summary"))
	b.WriteString("\n")
	b.WriteString(row("result", s.Result))
	b.WriteString(row("artifact", fmt.Sprintf("%s/%s", dashIfEmpty(s.ArtifactKind), dashIfEmpty(s.TargetKind))))
	b.WriteString(row("digest", dashIfEmpty(s.ArtifactDigest)))
	b.WriteString(row("files", fmt.Sprintf("%d (%d bytes bounded)", s.TotalFiles, s.TotalBytesBounded)))
	b.WriteString(row("external refs", fmt.Sprintf("%d (%d domains)", s.ExternalRefCount, s.UniqueDomainCount)))
	b.WriteString(row("reason codes", dashIfEmpty(strings.Join(s.ReasonCodes, ", "))))
	b.WriteString(row("entry hints", dashIfEmpty(strings.Join(s.EntryHints, ", "))))
	return b.String()
}
