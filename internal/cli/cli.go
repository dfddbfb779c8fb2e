// Package cli implements rangestore's seven non-interactive subcommands
// on top of internal/dataset, mirroring the teacher's
// cmdXxx(out, errOut, cfg, workDir, args) int handler shape and shared
// exit-code taxonomy.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/holovault/rangestore/internal/config"
	"github.com/holovault/rangestore/internal/dataset"
	"github.com/holovault/rangestore/pkg/fs"
)

// Exit codes shared by every subcommand.
const (
	ExitSuccess  = 0
	ExitNoResult = 1
	ExitUsage    = 2
	ExitAppError = 3
)

// commonFlags holds the --dataset/--index-path/--lockfile-path flags
// every subcommand accepts.
type commonFlags struct {
	dataset   string
	indexPath string
	lockPath  string
}

func bindCommon(fset *pflag.FlagSet) *commonFlags {
	c := &commonFlags{}

	fset.StringVar(&c.dataset, "dataset", "", "path to the dataset's data file (required)")
	fset.StringVar(&c.indexPath, "index-path", "", "path to the index file (default: <dataset>.idx)")
	fset.StringVar(&c.lockPath, "lockfile-path", "", "path to the lock file (default: <dataset>.lck)")

	return c
}

// applyConfigDefaults fills in any common flag left at its zero value
// from cfg, following the defaults -> config -> flags precedence chain:
// flags set on the command line always win because fset.Parse already
// populated them before this runs, so this only ever adds, never
// overwrites.
func applyConfigDefaults(c *commonFlags, cfg config.Config) {
	if c.dataset == "" {
		c.dataset = cfg.Dataset
	}

	if c.indexPath == "" {
		c.indexPath = cfg.IndexPath
	}

	if c.lockPath == "" {
		c.lockPath = cfg.LockPath
	}
}

func (c *commonFlags) requireDataset(errOut io.Writer) bool {
	if c.dataset == "" {
		fmt.Fprintln(errOut, "error: --dataset is required")

		return false
	}

	return true
}

// writeErr prints err to errOut and returns the exit code it maps to: a
// *dataset.Error carries its own abstract code for diagnostics, anything
// else is an opaque application error.
func writeErr(errOut io.Writer, err error) int {
	var dsErr *dataset.Error
	if errors.As(err, &dsErr) {
		fmt.Fprintf(errOut, "error: %s\n", dsErr.Error())
	} else {
		fmt.Fprintf(errOut, "error: %v\n", err)
	}

	return ExitAppError
}

func newFS() fs.FS {
	return fs.NewReal()
}

func openDataset(c *commonFlags, mode dataset.OpenMode) (*dataset.Dataset, error) {
	return dataset.Open(newFS(), c.dataset, c.indexPath, c.lockPath, mode)
}
