package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danmuck/utilctl/internal/dotfiles"
	"github.com/danmuck/utilctl/internal/logging"
)

// errProblems marks a run that finished but left conflicts or missing
// links behind.
var (
	errProblems = errors.New("dotfiles: conflicts or missing links remain")
	errUsage    = errors.New("dotfiles: usage error")
)

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage):
		return 2
	case errors.Is(err, dotfiles.ErrMissingDir), errors.Is(err, dotfiles.ErrNotDir):
		return 3
	default:
		return 1
	}
}

func rootCmd() *cobra.Command {
	var force, dryRun bool

	root := &cobra.Command{
		Use:           "dotfiles",
		Short:         "Manage dotfile symlinks from one or more dotfile directories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&force, "force", false, "replace symlinks that point elsewhere")
	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "report without touching the filesystem")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	newManager := func() (*dotfiles.Manager, error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		m := dotfiles.NewManager(home)
		m.Force = force
		m.DryRun = dryRun
		return m, nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "install [dir]",
		Short: "Link a dotfile directory (or every registered one) into $HOME",
		Args:  atMostOneDir,
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			sum, err := m.InstallDirs(optionalDir(args))
			report(sum)
			if err != nil {
				return err
			}
			if sum.HasConflicts() || sum.HasMissing() {
				return errProblems
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "remove [dir]",
		Short: "Unlink a dotfile directory (or every registered one) from $HOME",
		Args:  atMostOneDir,
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			sum, err := m.RemoveDirs(optionalDir(args))
			report(sum)
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "audit [dir]",
		Short: "Report link status without changing anything",
		Args:  atMostOneDir,
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			sum, err := m.AuditDirs(optionalDir(args))
			report(sum)
			if err != nil {
				return err
			}
			if sum.HasConflicts() || sum.HasMissing() {
				return errProblems
			}
			return nil
		},
	})

	return root
}

func atMostOneDir(_ *cobra.Command, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: at most one directory argument", errUsage)
	}
	return nil
}

func optionalDir(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}

func report(sum dotfiles.Summary) {
	for _, r := range sum.Results {
		fmt.Printf("%-14s %s\n", r.Status, r.Entry.SourcePath())
	}
}
