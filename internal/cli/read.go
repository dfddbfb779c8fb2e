package cli

import (
	"io"

	"github.com/spf13/pflag"

	"github.com/holovault/rangestore/internal/byterange"
	"github.com/holovault/rangestore/internal/config"
	"github.com/holovault/rangestore/internal/dataset"
)

// CmdRead implements `read --offset N [--length N] [--limit N]`. Without
// --length, it reads up to the next gap (the next offset not covered by
// any index entry).
func CmdRead(out, errOut io.Writer, cfg config.Config, args []string) int {
	fset := pflag.NewFlagSet("read", pflag.ContinueOnError)
	fset.SetOutput(errOut)

	common := bindCommon(fset)

	offset := fset.Uint64("offset", 0, "byte offset to read from (required)")
	length := fset.Int64("length", -1, "number of bytes to read (default: up to the next gap)")
	limit := fset.Int64("limit", -1, "cap the number of bytes read")

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

	n := uint64(0)

	if *length >= 0 {
		n = uint64(*length)
	} else {
		gap, _, err := ds.IndexFindOffset(*offset, dataset.FindNoData)
		if err != nil {
			return writeErr(errOut, err)
		}

		n = gap - *offset
	}

	if *limit >= 0 && n > uint64(*limit) {
		n = uint64(*limit)
	}

	buf := make([]byte, n)

	read, err := ds.DataReadRange(byterange.Range{Offset: *offset, Length: n}, buf)
	if err != nil {
		return writeErr(errOut, err)
	}

	_, err = out.Write(buf[:read])
	if err != nil {
		return writeErr(errOut, err)
	}

	return ExitSuccess
}
