package archiver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/utilctl/internal/tools"
)

var ErrUnknownArchive = errors.New("archiver: unknown archive name")

// Options configures a create run.
type Options struct {
	// Names limits the run to specific archives; empty means all.
	Names       []string
	DryRun      bool
	ForceUpdate bool

	// Runner executes op and 7zz extraction. StagingRunner builds the
	// runner used for 7zz archive creation, rooted in the staging dir.
	Runner        tools.CommandRunner
	StagingRunner func(dir string) tools.CommandRunner

	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Runner == nil {
		o.Runner = tools.ExecRunner{}
	}
	if o.StagingRunner == nil {
		o.StagingRunner = func(dir string) tools.CommandRunner {
			return tools.ExecRunner{Dir: dir}
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Result summarizes a create run.
type Result struct {
	Published     []string
	Skipped       []string
	ReadmeUpdated bool
}

// Run stages, publishes, and rotates every selected archive, then
// refreshes the output directory README.
func Run(cfg *Config, opts Options) (Result, error) {
	opts.defaults()

	outDir, err := expandTilde(cfg.General.OutputDir)
	if err != nil {
		return Result{}, err
	}
	// The 7zz runner executes inside the staging dir, so archive paths
	// must be absolute.
	if outDir, err = filepath.Abs(outDir); err != nil {
		return Result{}, err
	}
	if err := CheckOutputDir(outDir); err != nil {
		return Result{}, err
	}

	names := opts.Names
	if len(names) == 0 {
		names = cfg.ArchiveNames()
	} else {
		for _, name := range names {
			if _, ok := cfg.Archives[name]; !ok {
				return Result{}, fmt.Errorf("%w: %s", ErrUnknownArchive, name)
			}
		}
	}

	var res Result
	ts := opts.Now().UTC().Format(TimestampLayout)
	for _, name := range names {
		published, err := runOne(cfg, opts, outDir, name, ts)
		if err != nil {
			return res, fmt.Errorf("archive %s: %w", name, err)
		}
		if published {
			res.Published = append(res.Published, name)
		} else {
			res.Skipped = append(res.Skipped, name)
		}
	}

	if cfg.General.Readme != "" {
		updated, err := WriteOutputReadme(outDir, cfg.General.Readme, opts.DryRun)
		if err != nil {
			return res, err
		}
		res.ReadmeUpdated = updated
	}
	return res, nil
}

func runOne(cfg *Config, opts Options, outDir, name, ts string) (bool, error) {
	a := cfg.Archives[name]

	staging, err := os.MkdirTemp("", "secure-archiver-*")
	if err != nil {
		return false, err
	}
	defer os.RemoveAll(staging)

	stager := NewStager(staging, opts.Runner)
	staged, err := stager.Build(a)
	if err != nil {
		return false, err
	}

	password, err := OpRead(opts.Runner, a.OpPassword)
	if err != nil {
		return false, err
	}

	return Publish(PublishParams{
		Name:          name,
		OutDir:        outDir,
		Password:      strings.TrimRight(password, "\n"),
		StagingDir:    staging,
		StagedNames:   staged,
		Timestamp:     ts,
		OpPasswordURI: a.OpPassword,
		Description:   a.Description,
		KeepRevisions: cfg.General.KeepRevisions,
		DryRun:        opts.DryRun,
		ForceUpdate:   opts.ForceUpdate,
		Runner:        opts.StagingRunner(staging),
	})
}
