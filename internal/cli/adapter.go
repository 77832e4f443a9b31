package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/diblac17-eng/weftend/internal/adapter"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

var adapterCmd = &cobra.Command{
	Use:   "adapter",
	Short: "Inspect adapter availability and maintenance state",
}

var adapterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered adapters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asText, _ := cmd.Flags().GetBool("text")
		includeMissing, _ := cmd.Flags().GetBool("include-missing-plugins")

		rep := deps.Registry.Doctor()
		rows := rep.Adapters
		if !includeMissing {
			kept := rows[:0]
			for _, a := range rows {
				if len(a.MissingPlugins) == 0 {
					kept = append(kept, a)
				}
			}
			rows = kept
		}

		if asText {
			fmt.Fprint(cmd.OutOrStdout(), renderAdapterTable(rows))
			return nil
		}
		return printCanonical(cmd, map[string]any{
			"schema":   "weftend.adapterList/0",
			"adapters": rows,
		})
	},
}

var adapterDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Merge maintenance policy with plugin availability",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asText, _ := cmd.Flags().GetBool("text")
		strict, _ := cmd.Flags().GetBool("strict")
		writePolicy, _ := cmd.Flags().GetString("write-policy")

		rep := deps.Registry.Doctor()

		if writePolicy != "" {
			doc := schema.AdapterMaintenance{
				Schema:           schema.SchemaAdapterMaintenance,
				DisabledAdapters: rep.Policy.DisabledAdapters,
			}
			b, err := schema.CanonicalBytes(&doc)
			if err != nil {
				return reason.Internal(err)
			}
			if err := os.WriteFile(writePolicy, append(b, '\n'), 0644); err != nil {
				return reason.Internal(err)
			}
		}

		if asText {
			fmt.Fprint(cmd.OutOrStdout(), renderDoctorText(rep))
		} else if err := printCanonical(cmd, map[string]any{
			"schema":         "weftend.adapterDoctor/0",
			"adapters":       rep.Adapters,
			"policy":         rep.Policy,
			"strictFailures": rep.StrictFailures,
		}); err != nil {
			return err
		}

		if strict && len(rep.StrictFailures) > 0 {
			return reason.Surface(reason.Code(rep.StrictFailures[0]), "adapter doctor strict check failed", nil)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{adapterListCmd, adapterDoctorCmd} {
		c.Flags().Bool("text", false, "render a terminal table instead of JSON")
	}
	adapterListCmd.Flags().Bool("include-missing-plugins", false, "include adapters whose plugins are missing")
	adapterDoctorCmd.Flags().Bool("strict", false, "fail (exit 40) on any strict doctor finding")
	adapterDoctorCmd.Flags().String("write-policy", "", "write the effective maintenance policy to a file")

	adapterCmd.AddCommand(adapterListCmd)
	adapterCmd.AddCommand(adapterDoctorCmd)
	rootCmd.AddCommand(adapterCmd)
}

// Terminal styling for the text surfaces. Styles only touch stdout
// rendering, never evidence.
var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true)
	tableBadStyle    = lipgloss.NewStyle().Bold(true)
)

func renderAdapterTable(rows []adapter.DoctorAdapter) string {
	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render("NAME       CLASS      STATE"))
	b.WriteString("\n")
	for _, a := range rows {
		state := "ok"
		if a.Disabled {
			state = "disabled"
		} else if len(a.MissingPlugins) > 0 {
			state = "missing: " + strings.Join(a.MissingPlugins, ",")
		}
		if state != "ok" {
			state = tableBadStyle.Render(state)
		}
		fmt.Fprintf(&b, "%-10s %-10s %s\n", a.Name, a.Class, state)
	}
	return b.String()
}

func renderDoctorText(rep adapter.DoctorReport) string {
	var b strings.Builder
	b.WriteString(renderAdapterTable(rep.Adapters))
	fmt.Fprintf(&b, "disabled: %s\n", dashIfEmpty(strings.Join(rep.Policy.DisabledAdapters, ", ")))
	fmt.Fprintf(&b, "unknown tokens: %s\n", dashIfEmpty(strings.Join(rep.Policy.UnknownTokens, ", ")))
	if rep.Policy.InvalidReasonCode != "" {
		fmt.Fprintf(&b, "policy: %s\n", rep.Policy.InvalidReasonCode)
	}
	fmt.Fprintf(&b, "strict failures: %s\n", dashIfEmpty(strings.Join(rep.StrictFailures, ", ")))
	return b.String()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printCanonical renders a document in canonical JSON on stdout with a
// trailing newline, matching the file format rules.
func printCanonical(cmd *cobra.Command, doc any) error {
	b, err := schema.CanonicalBytes(doc)
	if err != nil {
		return reason.Internal(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
