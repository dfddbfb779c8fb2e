package cli

import (
	"io"

	"github.com/spf13/pflag"

	"github.com/holovault/rangestore/internal/config"
	"github.com/holovault/rangestore/internal/dataset"
)

// CmdCreate implements `create [--size N]`: creates a new, empty dataset
// (CREATE_NEW_READ_WRITE), optionally pre-sizing the data file.
func CmdCreate(out, errOut io.Writer, cfg config.Config, args []string) int {
	fset := pflag.NewFlagSet("create", pflag.ContinueOnError)
	fset.SetOutput(errOut)

	common := bindCommon(fset)

	size := fset.Uint64("size", 0, "initial data file size in bytes")

	err := fset.Parse(args)
	if err != nil {
		return ExitUsage
	}

	applyConfigDefaults(common, cfg)

	if !common.requireDataset(errOut) {
		return ExitUsage
	}

	ds, err := openDataset(common, dataset.CreateNewReadWrite)
	if err != nil {
		return writeErr(errOut, err)
	}

	defer ds.Close()

	if *size > 0 {
		err = ds.DataSetSize(*size, false)
		if err != nil {
			return writeErr(errOut, err)
		}
	}

	return ExitSuccess
}
