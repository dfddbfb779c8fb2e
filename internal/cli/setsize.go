package cli

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/holovault/rangestore/internal/config"
	"github.com/holovault/rangestore/internal/dataset"
)

// CmdSetSize implements `set-size --size N [--force]`.
func CmdSetSize(out, errOut io.Writer, cfg config.Config, args []string) int {
	fset := pflag.NewFlagSet("set-size", pflag.ContinueOnError)
	fset.SetOutput(errOut)

	common := bindCommon(fset)

	size := fset.Uint64("size", 0, "new data file size in bytes (required)")
	force := fset.Bool("force", false, "allow a destructive shrink that drops index entries")

	err := fset.Parse(args)
	if err != nil {
		return ExitUsage
	}

	applyConfigDefaults(common, cfg)

	if !common.requireDataset(errOut) {
		return ExitUsage
	}

	ds, err := openDataset(common, dataset.OpenExistingReadWrite)
	if err != nil {
		return writeErr(errOut, err)
	}

	defer ds.Close()

	err = ds.DataSetSize(*size, *force)
	if err != nil {
		return writeErr(errOut, err)
	}

	fmt.Fprintf(out, "%d\n", *size)

	return ExitSuccess
}
