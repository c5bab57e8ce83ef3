// Package cmdroot assembles the opkg root command: persistent flags,
// config/logging/printer wiring, and the seven subcommands, mirroring
// how kpt's internal/cmd* root builds up GetRunner and registers its
// command tree in one place.
package cmdroot

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opkgdev/opkg/internal/cmdadd"
	"github.com/opkgdev/opkg/internal/cmdinstall"
	"github.com/opkgdev/opkg/internal/cmdremove"
	"github.com/opkgdev/opkg/internal/cmdsave"
	"github.com/opkgdev/opkg/internal/cmdstatus"
	"github.com/opkgdev/opkg/internal/cmduninstall"
	"github.com/opkgdev/opkg/internal/cmdview"
	"github.com/opkgdev/opkg/internal/config"
	"github.com/opkgdev/opkg/internal/logging"
	"github.com/opkgdev/opkg/internal/printer"
)

// NewCommand builds the opkg root command.
func NewCommand(ctx context.Context) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "opkg",
		Short:         "Install and manage AI assistant configuration packages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.Bool(config.KeyGlobal, false, "operate on the global (user-wide) workspace instead of the current directory")
	flags.Bool(config.KeyDryRun, false, "print what would change without writing anything")
	flags.Bool(config.KeyForce, false, "skip interactive prompts and auto-resolve ambiguity")
	flags.String(config.KeyConflicts, string(config.ConflictAsk), "conflict arbitration policy: keep-both|overwrite|skip|ask")
	flags.StringSlice(config.KeyPlatforms, nil, "restrict to these platform ids")
	flags.Bool(config.KeyRemote, false, "prefer the remote registry over the local cache")
	flags.String(config.KeyProfile, "", "named profile to load from ~/.opkg/<profile>.yaml")
	flags.String(config.KeyAPIKey, "", "registry API key")
	flags.StringSlice(config.KeyPlugins, nil, "restrict to these plugin (agent+skill bundle) names")
	flags.StringSlice(config.KeyAgents, nil, "restrict to these agent names")
	flags.StringSlice(config.KeySkills, nil, "restrict to these skill names")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cmd.Root()); err != nil {
			return err
		}
		if err := config.ValidateResourceFilters(); err != nil {
			return err
		}
		l := logging.NewZap(verbose)
		p := printer.New(os.Stdout, os.Stderr)
		newCtx := logging.WithLogger(cmd.Context(), l)
		newCtx = printer.WithContext(newCtx, p)
		cmd.SetContext(newCtx)
		return nil
	}

	root.AddCommand(
		cmdinstall.NewCommand(ctx),
		cmduninstall.NewCommand(ctx),
		cmdsave.NewCommand(ctx),
		cmdview.NewCommand(ctx),
		cmdstatus.NewCommand(ctx),
		cmdadd.NewCommand(ctx),
		cmdremove.NewCommand(ctx),
	)
	return root
}

// Execute runs the opkg CLI to completion, returning the process exit
// code (§6 "Exit 0 on success (including user cancel), non-zero on any
// fatal").
func Execute(ctx context.Context) int {
	cmd := NewCommand(ctx)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "opkg:", err)
		return 1
	}
	return 0
}
