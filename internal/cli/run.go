package cli

import (
	"github.com/spf13/cobra"

	"github.com/diblac17-eng/weftend/internal/config"
	"github.com/diblac17-eng/weftend/internal/pipeline"
)

var examineCmd = &cobra.Command{
	Use:   "examine <input>",
	Short: "Classify an artifact and mint its observation package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd, args[0])
		if err != nil {
			return err
		}
		opts.EmitCapture, _ = cmd.Flags().GetBool("emit-capture")
		outcome, rerr := pipeline.Examine(cmd.Context(), deps, opts)
		if rerr != nil {
			return rerr
		}
		return exitFor(outcome.Exit)
	},
}

var intakeCmd = &cobra.Command{
	Use:   "intake <input>",
	Short: "Evaluate an artifact under a policy and record the decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd, args[0])
		if err != nil {
			return err
		}
		outcome, rerr := pipeline.SafeRun(cmd.Context(), deps, opts)
		if rerr != nil {
			return rerr
		}
		return exitFor(outcome.Exit)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Produce the full strict/compatible/legacy run record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd, args[0])
		if err != nil {
			return err
		}
		opts.Mode, _ = cmd.Flags().GetString("mode")
		outcome, rerr := pipeline.Run(cmd.Context(), deps, opts)
		if rerr != nil {
			return rerr
		}
		return exitFor(outcome.Exit)
	},
}

var safeRunCmd = &cobra.Command{
	Use:   "safe-run <input>",
	Short: "Intake plus optional sandboxed execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd, args[0])
		if err != nil {
			return err
		}
		opts.Execute, _ = cmd.Flags().GetBool("execute")
		opts.WithholdExec, _ = cmd.Flags().GetBool("withhold-exec")
		outcome, rerr := pipeline.SafeRun(cmd.Context(), deps, opts)
		if rerr != nil {
			return rerr
		}
		return exitFor(outcome.Exit)
	},
}

func init() {
	for _, c := range []*cobra.Command{examineCmd, intakeCmd, runCmd, safeRunCmd} {
		c.Flags().String("out", "", "evidence output root (required)")
		c.Flags().String("profile", "generic", "policy profile: web, mod, generic")
		c.Flags().Bool("script", false, "treat the input's entry as script-typed")
		_ = c.MarkFlagRequired("out")
		_ = c.RegisterFlagCompletionFunc("profile", completeProfile)
		rootCmd.AddCommand(c)
	}

	examineCmd.Flags().Bool("emit-capture", false, "also emit the raw observation capture")
	intakeCmd.Flags().String("policy", "", "policy document (required)")
	_ = intakeCmd.MarkFlagRequired("policy")
	runCmd.Flags().String("policy", "", "policy document (required)")
	runCmd.Flags().String("mode", "strict", "record mode: strict, compatible, legacy")
	_ = runCmd.MarkFlagRequired("policy")
	safeRunCmd.Flags().String("policy", "", "policy document (built-in profile default when omitted)")
	safeRunCmd.Flags().Bool("execute", false, "execute the approved artifact in the sandbox")
	safeRunCmd.Flags().Bool("withhold-exec", false, "record execution as withheld without running")
}

// runOptions collects the flags shared by the examine/intake/run/safe-run
// family and validates the profile. A weftend.toml in the working directory
// seeds the profile default; the flag always wins.
func runOptions(cmd *cobra.Command, input string) (pipeline.Options, error) {
	out, _ := cmd.Flags().GetString("out")
	profile, _ := cmd.Flags().GetString("profile")
	script, _ := cmd.Flags().GetBool("script")
	policy, _ := cmd.Flags().GetString("policy")

	if !cmd.Flags().Changed("profile") {
		if defaults, err := config.LoadDefaults(); err == nil && defaults.Profile != "" {
			profile = defaults.Profile
		}
	}

	if perr := config.ValidateProfile(profile); perr != nil {
		return pipeline.Options{}, perr
	}
	return pipeline.Options{
		Input:      input,
		Out:        out,
		Profile:    profile,
		Script:     script,
		PolicyPath: policy,
	}, nil
}
