package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/danmuck/utilctl/internal/borg"
	"github.com/danmuck/utilctl/internal/logging"
	"github.com/danmuck/utilctl/internal/tools"
)

var errUsage = errors.New("borgadm: usage error")

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage), errors.Is(err, borg.ErrUnknownSet):
		return 1
	case errors.Is(err, borg.ErrConfigMissing), errors.Is(err, borg.ErrInvalidConfig):
		return 2
	case errors.Is(err, borg.ErrSubprocess):
		return 4
	default:
		return 5
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var dryRun bool

	root := &cobra.Command{
		Use:           "borgadm",
		Short:         "Run and prune borg backups of named sets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.borgadm.toml)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	newClient := func() (*borg.Client, error) {
		path := configPath
		if path == "" {
			var err error
			if path, err = borg.DefaultConfigPath(); err != nil {
				return nil, err
			}
		}
		cfg, err := borg.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		c := borg.NewClient(cfg, tools.ExecRunner{})
		if err := c.EnsurePassphrase(); err != nil {
			return nil, err
		}
		return c, nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "create <set>",
		Short: "Create a new archive of one configured backup set",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: exactly one set name required", errUsage)
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			a, err := c.Create(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("created %s\n", a.Name)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List repository archives with their keep labels",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			archives, err := c.List()
			if err != nil {
				return err
			}
			plans, err := c.Plan(archives)
			if err != nil {
				return err
			}
			labels := make(map[string]string)
			for set, plan := range plans {
				for _, k := range plan.Keeps {
					labels[set+"-"+k.Timestamp] = k.Label
				}
			}
			for _, a := range archives {
				fmt.Printf("%-40s %s\n", a.Name, labels[a.Name])
			}
			return nil
		},
	})

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete archives the keep policy does not retain",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			plans, err := c.Prune(dryRun)
			if err != nil {
				return err
			}
			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			for _, set := range sortedSets(plans) {
				for _, k := range plans[set].Keeps {
					fmt.Printf("keep  %-10s %s-%s\n", k.Label, set, k.Timestamp)
				}
				for _, a := range plans[set].Deletes {
					fmt.Printf("%s %s\n", verb, a.Name)
				}
			}
			return nil
		},
	}
	prune.Flags().BoolVar(&dryRun, "dry-run", false, "show the prune plan without deleting")
	root.AddCommand(prune)

	automate := &cobra.Command{
		Use:   "automate enable|disable|status",
		Short: "Manage the borgadm systemd user timer",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: want enable, disable, or status", errUsage)
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			auto := borg.Automation{Runner: tools.ExecRunner{}}
			switch args[0] {
			case "enable":
				return auto.Enable()
			case "disable":
				return auto.Disable()
			case "status":
				active, enabled, err := auto.Status()
				if err != nil {
					return err
				}
				fmt.Printf("active: %t\nenabled: %t\n", active, enabled)
				return nil
			default:
				return fmt.Errorf("%w: unknown automate action %q", errUsage, args[0])
			}
		},
	}
	root.AddCommand(automate)

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Run borg check against the repository",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			return c.Check()
		},
	})

	return root
}

func sortedSets(plans map[string]borg.PrunePlan) []string {
	sets := make([]string, 0, len(plans))
	for set := range plans {
		sets = append(sets, set)
	}
	sort.Strings(sets)
	return sets
}
