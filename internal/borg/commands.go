package borg

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/utilctl/internal/tools"
)

var (
	ErrSubprocess = errors.New("borg: subprocess failed")
	ErrUnknownSet = errors.New("borg: unknown backup set")
)

// Archive is one repository archive named <set>-<timestamp>.
type Archive struct {
	Name      string
	Set       string
	Timestamp string
}

// Client drives borg(1) against the configured repository.
type Client struct {
	Config *Config
	Runner tools.CommandRunner
	// Now stamps new archives; overridable in tests.
	Now func() time.Time
}

func NewClient(cfg *Config, runner tools.CommandRunner) *Client {
	return &Client{Config: cfg, Runner: runner, Now: time.Now}
}

func (c *Client) run(name string, args ...string) ([]byte, error) {
	stdout, stderr, code, err := c.Runner.Run(name, args...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return stdout, fmt.Errorf("%w: %s %s (exit %d): %s",
			ErrSubprocess, name, strings.Join(args, " "), code, msg)
	}
	return stdout, nil
}

// EnsurePassphrase resolves op_passphrase through `op read` and exports
// it as BORG_PASSPHRASE. A missing reference leaves the environment
// alone so interactive prompting still works.
func (c *Client) EnsurePassphrase() error {
	ref := strings.TrimSpace(c.Config.OpPassphrase)
	if ref == "" {
		return nil
	}
	stdout, err := c.run("op", "read", ref)
	if err != nil {
		return err
	}
	secret := strings.TrimRight(string(stdout), "\r\n")
	if secret == "" {
		return fmt.Errorf("%w: op read %s returned nothing", ErrSubprocess, ref)
	}
	return os.Setenv("BORG_PASSPHRASE", secret)
}

// Create runs borg create for one named set.
func (c *Client) Create(set string) (Archive, error) {
	s, ok := c.Config.Sets[set]
	if !ok {
		return Archive{}, fmt.Errorf("%w: %s", ErrUnknownSet, set)
	}
	ts := c.Now().Format(TimestampLayout)
	archive := Archive{Name: set + "-" + ts, Set: set, Timestamp: ts}

	args := []string{"create", "--compression", "zstd"}
	for _, ex := range s.Excludes {
		args = append(args, "--exclude", ex)
	}
	args = append(args, c.Config.Repo+"::"+archive.Name)
	args = append(args, s.Paths...)

	if _, err := c.run("borg", args...); err != nil {
		return Archive{}, err
	}
	log.Info().Str("archive", archive.Name).Msg("archive created")
	return archive, nil
}

// List returns the repository's archives, newest first. Archives whose
// names do not follow <set>-<timestamp> are skipped.
func (c *Client) List() ([]Archive, error) {
	stdout, err := c.run("borg", "list", "--short", c.Config.Repo)
	if err != nil {
		return nil, err
	}
	var archives []Archive
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a, ok := parseArchiveName(line)
		if !ok {
			log.Warn().Str("archive", line).Msg("unrecognized archive name, skipped")
			continue
		}
		archives = append(archives, a)
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Timestamp > archives[j].Timestamp })
	return archives, nil
}

func parseArchiveName(name string) (Archive, bool) {
	i := strings.LastIndex(name, "-")
	if i <= 0 || i == len(name)-1 {
		return Archive{}, false
	}
	set, ts := name[:i], name[i+1:]
	if _, err := time.ParseInLocation(TimestampLayout, ts, time.UTC); err != nil {
		return Archive{}, false
	}
	return Archive{Name: name, Set: set, Timestamp: ts}, true
}

// PrunePlan is the per-set outcome of a prune selection.
type PrunePlan struct {
	Keeps   []Keep    // labeled survivors, newest first
	Deletes []Archive // everything else, newest first
}

// Plan computes, per set, which archives the keep policy retains and
// which get deleted. Selection runs independently for every set.
func (c *Client) Plan(archives []Archive) (map[string]PrunePlan, error) {
	bySet := make(map[string][]Archive)
	for _, a := range archives {
		bySet[a.Set] = append(bySet[a.Set], a)
	}

	plans := make(map[string]PrunePlan, len(bySet))
	for set, members := range bySet {
		var stamps []string
		for _, a := range members {
			stamps = append(stamps, a.Timestamp)
		}
		keeps, err := TimestampsToKeep(stamps, c.Config.Keep())
		if err != nil {
			return nil, err
		}
		kept := make(map[string]bool, len(keeps))
		for _, k := range keeps {
			kept[k.Timestamp] = true
		}
		plan := PrunePlan{Keeps: keeps}
		for _, a := range members {
			if !kept[a.Timestamp] {
				plan.Deletes = append(plan.Deletes, a)
			}
		}
		sort.Slice(plan.Deletes, func(i, j int) bool {
			return plan.Deletes[i].Timestamp > plan.Deletes[j].Timestamp
		})
		plans[set] = plan
	}
	return plans, nil
}

// Prune deletes every archive the keep policy does not retain. With
// dryRun the plan is returned without deleting anything.
func (c *Client) Prune(dryRun bool) (map[string]PrunePlan, error) {
	archives, err := c.List()
	if err != nil {
		return nil, err
	}
	plans, err := c.Plan(archives)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return plans, nil
	}
	for set, plan := range plans {
		for _, a := range plan.Deletes {
			if _, err := c.run("borg", "delete", c.Config.Repo+"::"+a.Name); err != nil {
				return plans, err
			}
			log.Info().Str("set", set).Str("archive", a.Name).Msg("archive pruned")
		}
	}
	return plans, nil
}

// Check runs borg check against the repository.
func (c *Client) Check() error {
	_, err := c.run("borg", "check", c.Config.Repo)
	return err
}
