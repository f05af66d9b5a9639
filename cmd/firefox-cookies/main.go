package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danmuck/utilctl/internal/ffcookies"
	"github.com/danmuck/utilctl/internal/logging"
)

var errUsage = errors.New("firefox-cookies: usage error")

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
		return 1
	case errors.Is(err, ffcookies.ErrNoProfiles),
		errors.Is(err, ffcookies.ErrUnknownProfile),
		errors.Is(err, ffcookies.ErrUnknownContainer),
		errors.Is(err, ffcookies.ErrAmbiguousContainer):
		return 2
	case errors.Is(err, ffcookies.ErrNotFound),
		errors.Is(err, ffcookies.ErrUnsupportedPlatform):
		return 3
	default:
		return 5
	}
}

type flags struct {
	profile   string
	domains   []string
	container string
	format    string
	sources   []string
}

func rootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "firefox-cookies",
		Short:         "Export cookies from Firefox profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.profile, "profile", "p", "", "profile name or path (default profile when empty)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "Print cookies in Netscape or JSON format",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runList(f)
		},
	}
	list.Flags().StringArrayVarP(&f.domains, "domain", "d", nil, "restrict to a domain (repeatable)")
	list.Flags().StringVarP(&f.container, "container", "c", "", "container id, name, or unique prefix")
	list.Flags().StringVar(&f.format, "format", "netscape", "output format: netscape or json")
	list.Flags().StringArrayVar(&f.sources, "source", nil, "cookie source: db or recovery (repeatable, default both)")
	root.AddCommand(list)

	listDomains := &cobra.Command{
		Use:   "list-domains",
		Short: "Count cookies per domain and container",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runListDomains(f)
		},
	}
	listDomains.Flags().StringVarP(&f.container, "container", "c", "", "container id, name, or unique prefix")
	root.AddCommand(listDomains)

	root.AddCommand(&cobra.Command{
		Use:   "list-profiles",
		Short: "Print the available Firefox profiles",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runListProfiles()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list-containers",
		Short: "Print the profile's containers with cookie counts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runListContainers(f)
		},
	})

	return root
}

func profileDir(selector string) (string, error) {
	dir, err := ffcookies.FirefoxDir()
	if err != nil {
		return "", err
	}
	profiles, err := ffcookies.Profiles(dir)
	if err != nil {
		return "", err
	}
	p, err := ffcookies.ResolveProfile(profiles, selector)
	if err != nil {
		return "", err
	}
	return p.Path, nil
}

func runList(f flags) error {
	dir, err := profileDir(f.profile)
	if err != nil {
		return err
	}
	sources, err := ffcookies.NormalizeSources(f.sources)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	containerID, err := resolveContainerID(dir, f.container)
	if err != nil {
		return err
	}

	cookies, conflicts, err := ffcookies.Collect(dir, f.domains, containerID, sources)
	if err != nil {
		return err
	}

	switch f.format {
	case "netscape":
		fmt.Print(ffcookies.FormatNetscape(cookies, conflicts))
	case "json":
		out, err := ffcookies.FormatJSON(cookies, conflicts)
		if err != nil {
			return err
		}
		fmt.Print(out)
	default:
		return fmt.Errorf("%w: unknown format %q (want netscape or json)", errUsage, f.format)
	}
	return nil
}

// resolveContainerID maps a container selector to its id; an empty
// selector means no filtering.
func resolveContainerID(dir, selector string) (int, error) {
	if selector == "" {
		return -1, nil
	}
	containers, err := ffcookies.Containers(dir)
	if err != nil {
		return -1, err
	}
	c, err := ffcookies.ResolveContainer(containers, selector)
	if err != nil {
		return -1, err
	}
	return c.ID, nil
}

func runListDomains(f flags) error {
	dir, err := profileDir(f.profile)
	if err != nil {
		return err
	}
	containerID, err := resolveContainerID(dir, f.container)
	if err != nil {
		return err
	}
	cookies, err := mergedCookies(dir, containerID)
	if err != nil {
		return err
	}
	for _, dc := range ffcookies.CountDomains(cookies) {
		fmt.Printf("%6d  %3d  %s\n", dc.Count, dc.ContainerID, dc.Domain)
	}
	return nil
}

func runListProfiles() error {
	dir, err := ffcookies.FirefoxDir()
	if err != nil {
		return err
	}
	profiles, err := ffcookies.Profiles(dir)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		marker := ""
		if p.Default {
			marker = " (default)"
		}
		fmt.Printf("%s%s\n\t%s\n", p.Name, marker, p.Path)
	}
	return nil
}

func runListContainers(f flags) error {
	dir, err := profileDir(f.profile)
	if err != nil {
		return err
	}
	containers, err := ffcookies.Containers(dir)
	if err != nil {
		return err
	}
	cookies, err := mergedCookies(dir, -1)
	if err != nil {
		return err
	}
	counts := make(map[int]int)
	for _, c := range cookies {
		counts[ffcookies.UserContextID(c.OriginAttributes)]++
	}

	fmt.Printf("%3d  %-20s %d cookies\n", 0, "default", counts[0])
	for _, c := range containers {
		fmt.Printf("%3d  %-20s %d cookies\n", c.ID, c.Name, counts[c.ID])
	}
	return nil
}

// mergedCookies gathers both sources without container dedup, so the
// per-container reports count every copy. containerID -1 keeps all
// containers.
func mergedCookies(dir string, containerID int) ([]ffcookies.Cookie, error) {
	dbPath, err := ffcookies.CopyDB(dir)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(filepath.Dir(dbPath))
	dbCookies, err := ffcookies.QueryCookies(dbPath, nil, containerID)
	if err != nil {
		return nil, err
	}
	sessionCookies, err := ffcookies.SessionCookies(dir, nil, containerID)
	if err != nil {
		return nil, err
	}
	return ffcookies.Merge(dbCookies, sessionCookies), nil
}
