// Package cli implements the Cobra command hierarchy for the weftend CLI.
// The root command is the entry point for all subcommands and handles the
// cross-cutting concerns: logging initialization, startup dependency
// construction, and reason-code error surfacing.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/diblac17-eng/weftend/internal/adapter"
	"github.com/diblac17-eng/weftend/internal/config"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/examine"
	"github.com/diblac17-eng/weftend/internal/host"
	"github.com/diblac17-eng/weftend/internal/pipeline"
	"github.com/diblac17-eng/weftend/internal/reason"
)

// flagValues holds the parsed global flag values, populated by
// config.BindFlags during command initialization.
var flagValues *config.FlagValues

// deps are the process-wide collaborators, built once in PersistentPreRunE
// and passed explicitly into every operation.
var deps pipeline.Deps

var rootCmd = &cobra.Command{
	Use:   "weftend",
	Short: "Offline, fail-closed artifact triage.",
	Long: `Weftend examines an artifact, evaluates what a policy would permit,
and writes deterministic, content-addressed receipts describing the outcome.

Receipts are evidence, not content: identical inputs under an identical
policy always yield byte-identical output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := config.ResolveLogLevel(flagValues.Verbose, flagValues.Quiet)
		format := config.ResolveLogFormat()
		config.SetupLogging(level, format)

		deps = buildDeps()
		slog.Debug("startup complete", "level", level, "build", deps.Build.Algo)
		return nil
	},
}

func init() {
	flagValues = config.BindFlags(rootCmd)
}

func completeProfile(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return config.Profiles, cobra.ShellCompDirectiveNoFileComp
}

// buildDeps computes the build identity, captures the environment, and
// assembles the adapter registry and collaborators.
func buildDeps() pipeline.Deps {
	env := config.ReadEnv()
	build := digest.NewBuild()
	maintenance := adapter.LoadMaintenance(env.AdapterDisable, env.AdapterDisableFile)

	return pipeline.Deps{
		Build:      build,
		Env:        env,
		Registry:   adapter.NewRegistry(maintenance, pluginProbe),
		Examiner:   examine.New(),
		Host:       host.NewRunner(build, env.HostOutRoot),
		ImageProbe: dockerImageProbe(env),
	}
}

// pluginProbe resolves host plugin availability. The archive and email
// plugins ride on the stdlib and are always present; the container plugin
// requires a docker CLI on PATH.
func pluginProbe(plugin string) bool {
	switch plugin {
	case "zipreader", "mimeparser":
		return true
	case "dockerd":
		_, err := exec.LookPath("docker")
		return err == nil
	default:
		return false
	}
}

// dockerImageProbe asks the local daemon whether an immutable reference is
// present. Nil when no local daemon can be consulted; the examiner then
// fails closed with DOCKER_DAEMON_UNAVAILABLE.
func dockerImageProbe(env config.Env) func(string) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil
	}
	return func(ref string) bool {
		cmd := exec.Command("docker", "image", "inspect", ref)
		cmd.Stdout = nil
		cmd.Stderr = nil
		return cmd.Run() == nil
	}
}

// Execute runs the root command and returns the process exit code. A
// *reason.Error surfaces its bracketed code as the first stderr line and
// maps to its exit code; any other error is internal (exit 1).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var rerr *reason.Error
		if errors.As(err, &rerr) {
			fmt.Fprintln(os.Stderr, rerr.SurfaceLine())
			return rerr.Exit
		}
		var action *actionExit
		if errors.As(err, &action) {
			return action.code
		}
		slog.Error(err.Error())
		return reason.ExitError
	}
	return reason.ExitSuccess
}

// RootCmd returns the root command for testing and registration.
func RootCmd() *cobra.Command {
	return rootCmd
}
