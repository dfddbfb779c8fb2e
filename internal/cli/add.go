package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/pflag"

	"github.com/holovault/rangestore/internal/byterange"
	"github.com/holovault/rangestore/internal/config"
	"github.com/holovault/rangestore/internal/dataset"
)

var conflictModeByName = map[string]dataset.ConflictMode{
	"error":     dataset.ConflictError,
	"keep":      dataset.ConflictKeepOld,
	"overwrite": dataset.ConflictOverwrite,
}

// CmdAdd implements `add --offset N [--source PATH | -]
// [--on-conflict {error|keep|overwrite}] [--enforce-length N]`.
//
// When --enforce-length is given, the source is buffered into a temp
// spill file first so a short or long source is caught before any data
// or index write happens, then (on success) a small manifest recording
// the enforced length is written next to the dataset, atomically.
func CmdAdd(out, errOut io.Writer, cfg config.Config, args []string, stdin io.Reader) int {
	fset := pflag.NewFlagSet("add", pflag.ContinueOnError)
	fset.SetOutput(errOut)

	common := bindCommon(fset)

	offset := fset.Uint64("offset", 0, "byte offset to write at (required)")
	source := fset.String("source", "-", "source file, or - for stdin")
	onConflict := fset.String("on-conflict", "error", "error|keep|overwrite")
	enforceLength := fset.Int64("enforce-length", -1, "fail if the source is not exactly this many bytes")

	err := fset.Parse(args)
	if err != nil {
		return ExitUsage
	}

	applyConfigDefaults(common, cfg)

	if !common.requireDataset(errOut) {
		return ExitUsage
	}

	mode, ok := conflictModeByName[*onConflict]
	if !ok {
		fmt.Fprintln(errOut, "error: --on-conflict must be one of error|keep|overwrite")

		return ExitUsage
	}

	var reader io.Reader = stdin

	if *source != "-" {
		f, err := os.Open(*source)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)

			return ExitUsage
		}

		defer f.Close()

		reader = f
	}

	data, spillPath, err := readSource(reader, *enforceLength >= 0)
	if err != nil {
		fmt.Fprintf(errOut, "error: reading source: %v\n", err)

		return ExitUsage
	}

	if spillPath != "" {
		defer os.Remove(spillPath)
	}

	if *enforceLength >= 0 && int64(len(data)) != *enforceLength {
		fmt.Fprintf(errOut, "error: source is %d bytes, expected %d\n", len(data), *enforceLength)

		return ExitUsage
	}

	ds, err := openDataset(common, dataset.OpenExistingReadWrite)
	if err != nil {
		return writeErr(errOut, err)
	}

	defer ds.Close()

	r := byterange.Range{Offset: *offset, Length: uint64(len(data))}

	err = ds.DataAddRange(r, data, mode)
	if err != nil {
		return writeErr(errOut, err)
	}

	if *enforceLength >= 0 {
		err = writeEnforceLengthManifest(common.dataset, r)
		if err != nil {
			fmt.Fprintf(errOut, "warning: could not write enforce-length manifest: %v\n", err)
		}
	}

	return ExitSuccess
}

// readSource buffers r fully. When spill is true it is first copied to a
// temp file on disk and then read back from it in full, and the temp
// file's path is returned for the caller to remove once done.
func readSource(r io.Reader, spill bool) (data []byte, spillPath string, err error) {
	if !spill {
		data, err = io.ReadAll(r)

		return data, "", err
	}

	tmp, err := os.CreateTemp("", "rangestore-add-*.spill")
	if err != nil {
		return nil, "", err
	}

	spillPath = tmp.Name()

	_, err = io.Copy(tmp, r)
	closeErr := tmp.Close()

	if err != nil {
		return nil, spillPath, err
	}

	if closeErr != nil {
		return nil, spillPath, closeErr
	}

	data, err = os.ReadFile(spillPath)

	return data, spillPath, err
}

type enforceLengthManifest struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

func writeEnforceLengthManifest(datasetPath string, r byterange.Range) error {
	payload, err := json.MarshalIndent(enforceLengthManifest{Offset: r.Offset, Length: r.Length}, "", "  ")
	if err != nil {
		return err
	}

	return atomic.WriteFile(datasetPath+".add-manifest.json", bytes.NewReader(payload))
}
