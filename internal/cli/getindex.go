package cli

import (
	"io"

	"github.com/spf13/pflag"

	"github.com/holovault/rangestore/internal/config"
	"github.com/holovault/rangestore/internal/dataset"
	"github.com/holovault/rangestore/internal/uleb128"
)

// CmdGetIndex implements `get-index [--min-range-length N]`: writes a raw
// ULEB128 stream of (gap, length_minus_1) pairs to out, re-encoding from
// scratch so the --min-range-length filter can drop short entries
// without disturbing the delta chain for the ones that remain.
func CmdGetIndex(out, errOut io.Writer, cfg config.Config, args []string) int {
	fset := pflag.NewFlagSet("get-index", pflag.ContinueOnError)
	fset.SetOutput(errOut)

	common := bindCommon(fset)

	minRangeLength := fset.Uint64("min-range-length", 0, "omit entries shorter than this")

	err := fset.Parse(args)
	if err != nil {
		return ExitUsage
	}

	applyConfigDefaults(common, cfg)

	if !common.requireDataset(errOut) {
		return ExitUsage
	}

	ds, err := openDataset(common, dataset.OpenExistingReadOnly)
	if err != nil {
		return writeErr(errOut, err)
	}

	defer ds.Close()

	it := ds.NewIterator()

	var buf []byte

	prevEnd := uint64(0)

	for !it.IsEOF() {
		entry, err := it.Next()
		if err != nil {
			return writeErr(errOut, err)
		}

		if entry.Length < *minRangeLength {
			continue
		}

		gap := entry.Offset
		if prevEnd != 0 {
			gap = entry.Offset - prevEnd - 1
		}

		buf = uleb128.Encode(buf, gap)
		buf = uleb128.Encode(buf, entry.Length-1)
		prevEnd = entry.Offset + entry.Length
	}

	_, err = out.Write(buf)
	if err != nil {
		return writeErr(errOut, err)
	}

	return ExitSuccess
}
