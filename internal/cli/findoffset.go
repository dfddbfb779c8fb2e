package cli

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/holovault/rangestore/internal/config"
	"github.com/holovault/rangestore/internal/dataset"
)

var findModeByName = map[string]dataset.FindMode{
	"data":    dataset.FindData,
	"no-data": dataset.FindNoData,
}

// CmdFindOffset implements `find-offset [--start-at N] --stop-at
// {data|no-data}`. Exits 1 (not 0) when --stop-at data finds nothing,
// per the absent-but-in-range nuance: FIND_NO_DATA always succeeds (the
// byte past the whole file is "absent" by construction) but FIND_DATA
// can genuinely come up empty.
func CmdFindOffset(out, errOut io.Writer, cfg config.Config, args []string) int {
	fset := pflag.NewFlagSet("find-offset", pflag.ContinueOnError)
	fset.SetOutput(errOut)

	common := bindCommon(fset)

	startAt := fset.Uint64("start-at", 0, "offset to start scanning from")
	stopAt := fset.String("stop-at", "", "data|no-data (required)")

	err := fset.Parse(args)
	if err != nil {
		return ExitUsage
	}

	applyConfigDefaults(common, cfg)

	if !common.requireDataset(errOut) {
		return ExitUsage
	}

	mode, ok := findModeByName[*stopAt]
	if !ok {
		fmt.Fprintln(errOut, "error: --stop-at must be one of data|no-data")

		return ExitUsage
	}

	ds, err := openDataset(common, dataset.OpenExistingReadOnly)
	if err != nil {
		return writeErr(errOut, err)
	}

	defer ds.Close()

	offset, found, err := ds.IndexFindOffset(*startAt, mode)
	if err != nil {
		return writeErr(errOut, err)
	}

	if !found {
		return ExitNoResult
	}

	fmt.Fprintf(out, "%d\n", offset)

	return ExitSuccess
}
