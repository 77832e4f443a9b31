package cli

import (
	"github.com/spf13/cobra"

	"github.com/diblac17-eng/weftend/internal/compare"
	"github.com/diblac17-eng/weftend/internal/evidence"
	"github.com/diblac17-eng/weftend/internal/reason"
)

var compareCmd = &cobra.Command{
	Use:   "compare <left> <right>",
	Short: "Diff two evidence roots into a deterministic delta",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		return runCompare(args[0], args[1], out)
	},
}

func init() {
	compareCmd.Flags().String("out", "", "compare output root (required)")
	_ = compareCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(leftRoot, rightRoot, out string) error {
	if cerr := evidence.CheckCompareRoots(out, leftRoot, rightRoot); cerr != nil {
		return cerr
	}

	w, werr := evidence.NewWriter(out, deps.Build, evidence.Options{
		NotDirectoryCode: reason.CompareOutPathNotDirectory,
	})
	if werr != nil {
		return werr
	}

	left, right, lerr := compare.Load(leftRoot, rightRoot)
	if lerr != nil {
		w.Abort()
		return lerr
	}

	delta := compare.Diff(compare.Normalize(left), compare.Normalize(right))

	if err := w.StageReceipt("compare_receipt.json", "compare_receipt", delta.Receipt(deps.Build)); err != nil {
		w.Abort()
		return reason.Internal(err)
	}
	if err := w.StageText("compare_report.txt", "compare_report", delta.Report()); err != nil {
		w.Abort()
		return reason.Internal(err)
	}
	if _, cerr := w.Commit(); cerr != nil {
		return cerr
	}
	return nil
}
