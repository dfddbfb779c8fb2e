package cli

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/holovault/rangestore/internal/byterange"
	"github.com/holovault/rangestore/internal/config"
	"github.com/holovault/rangestore/internal/dataset"
)

// CmdListRanges implements `list-ranges [--range-format
// {inclusive|exclusive}] [--missing]`. With --missing, it lists the
// complement of the index (the gaps), clamped to [0, data_get_size()),
// rather than the entries themselves.
func CmdListRanges(out, errOut io.Writer, cfg config.Config, args []string) int {
	fset := pflag.NewFlagSet("list-ranges", pflag.ContinueOnError)
	fset.SetOutput(errOut)

	common := bindCommon(fset)

	rangeFormat := fset.String("range-format", "exclusive", "inclusive|exclusive")
	missing := fset.Bool("missing", false, "list the gaps instead of the entries")

	err := fset.Parse(args)
	if err != nil {
		return ExitUsage
	}

	applyConfigDefaults(common, cfg)

	if !common.requireDataset(errOut) {
		return ExitUsage
	}

	if *rangeFormat != "inclusive" && *rangeFormat != "exclusive" {
		fmt.Fprintln(errOut, "error: --range-format must be one of inclusive|exclusive")

		return ExitUsage
	}

	ds, err := openDataset(common, dataset.OpenExistingReadOnly)
	if err != nil {
		return writeErr(errOut, err)
	}

	defer ds.Close()

	var ranges []byterange.Range

	if *missing {
		ranges, err = gapsOf(ds)
	} else {
		ranges, err = entriesOf(ds)
	}

	if err != nil {
		return writeErr(errOut, err)
	}

	for _, r := range ranges {
		printRange(out, r, *rangeFormat)
	}

	return ExitSuccess
}

func printRange(out io.Writer, r byterange.Range, format string) {
	if format == "inclusive" {
		fmt.Fprintf(out, "%d-%d\n", r.Offset, r.Offset+r.Length-1)
	} else {
		fmt.Fprintf(out, "%d-%d\n", r.Offset, r.Offset+r.Length)
	}
}

func entriesOf(ds *dataset.Dataset) ([]byterange.Range, error) {
	var out []byterange.Range

	it := ds.NewIterator()

	for !it.IsEOF() {
		entry, err := it.Next()
		if err != nil {
			return nil, err
		}

		out = append(out, entry)
	}

	return out, nil
}

func gapsOf(ds *dataset.Dataset) ([]byterange.Range, error) {
	size, err := ds.DataGetSize()
	if err != nil {
		return nil, err
	}

	entries, err := entriesOf(ds)
	if err != nil {
		return nil, err
	}

	var gaps []byterange.Range

	cursor := uint64(0)

	for _, e := range entries {
		if e.Offset > cursor {
			gaps = append(gaps, byterange.Range{Offset: cursor, Length: e.Offset - cursor})
		}

		cursor = e.Offset + e.Length
	}

	if cursor < size {
		gaps = append(gaps, byterange.Range{Offset: cursor, Length: size - cursor})
	}

	return gaps, nil
}
