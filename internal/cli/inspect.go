package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diblac17-eng/weftend/internal/inspect"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <release-dir>",
	Short: "Verify a release directory's signatures and bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portal, _ := cmd.Flags().GetBool("portal")
		rep := inspect.Verify(args[0], portal)

		b, err := schema.CanonicalBytes(rep)
		if err != nil {
			return reason.Internal(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))

		if rep.Verdict != "PASS" {
			return reason.Surface(reason.Code(rep.ReasonCodes[0]), "release verification failed", nil)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().Bool("portal", false, "apply release-portal strictness")
	rootCmd.AddCommand(inspectCmd)
}
