package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danmuck/utilctl/internal/archiver"
	"github.com/danmuck/utilctl/internal/logging"
)

var errUsage = errors.New("secure-archiver: usage error")

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage), errors.Is(err, archiver.ErrUnknownArchive):
		return 1
	case errors.Is(err, archiver.ErrConfigNotFound),
		errors.Is(err, archiver.ErrInvalidConfig),
		errors.Is(err, archiver.ErrConfigExists):
		return 2
	case errors.Is(err, archiver.ErrMissingFile),
		errors.Is(err, archiver.ErrNoMatches):
		return 3
	case errors.Is(err, archiver.ErrSubprocess),
		errors.Is(err, archiver.ErrEmptySecret):
		return 4
	default:
		return 5
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var dryRun, forceUpdate bool

	root := &cobra.Command{
		Use:           "secure-archiver",
		Short:         "Publish encrypted 7z archives of secret material",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./secure-archiver.toml, ~/.secure-archiver.toml)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	loadConfig := func() (*archiver.Config, error) {
		path, err := archiver.FindConfig(configPath)
		if err != nil {
			return nil, err
		}
		return archiver.LoadConfig(path)
	}

	create := &cobra.Command{
		Use:   "create [name]...",
		Short: "Stage, archive, and publish the named archives (all when none given)",
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, err := archiver.Run(cfg, archiver.Options{
				Names:       args,
				DryRun:      dryRun,
				ForceUpdate: forceUpdate,
			})
			for _, name := range res.Published {
				fmt.Printf("published  %s\n", name)
			}
			for _, name := range res.Skipped {
				fmt.Printf("unchanged  %s\n", name)
			}
			if res.ReadmeUpdated {
				fmt.Println("updated    README.txt")
			}
			return err
		},
	}
	create.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be published without writing")
	create.Flags().BoolVar(&forceUpdate, "force-update", false, "republish even when nothing changed")
	root.AddCommand(create)

	root.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("config ok: %d archive(s)\n", len(cfg.Archives))
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "write-example-config",
		Short: "Write an annotated example config to ./secure-archiver.toml",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			const path = "secure-archiver.toml"
			if err := archiver.WriteExampleConfig(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	})

	return root
}
