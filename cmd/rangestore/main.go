// Command rangestore is the CLI surface over the dataset engine: create,
// add, set-size, read, find-offset, list-ranges, get-index.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/holovault/rangestore/internal/cli"
	"github.com/holovault/rangestore/internal/config"
)

const version = "0.1.0"

var dispatch = map[string]func(out, errOut *os.File, cfg config.Config, args []string) int{
	"create":      func(out, errOut *os.File, cfg config.Config, args []string) int { return cli.CmdCreate(out, errOut, cfg, args) },
	"add":         func(out, errOut *os.File, cfg config.Config, args []string) int { return cli.CmdAdd(out, errOut, cfg, args, os.Stdin) },
	"set-size":    func(out, errOut *os.File, cfg config.Config, args []string) int { return cli.CmdSetSize(out, errOut, cfg, args) },
	"read":        func(out, errOut *os.File, cfg config.Config, args []string) int { return cli.CmdRead(out, errOut, cfg, args) },
	"find-offset": func(out, errOut *os.File, cfg config.Config, args []string) int { return cli.CmdFindOffset(out, errOut, cfg, args) },
	"list-ranges": func(out, errOut *os.File, cfg config.Config, args []string) int { return cli.CmdListRanges(out, errOut, cfg, args) },
	"get-index":   func(out, errOut *os.File, cfg config.Config, args []string) int { return cli.CmdGetIndex(out, errOut, cfg, args) },
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)

		return cli.ExitUsage
	}

	switch args[0] {
	case "--help", "-h":
		printUsage(os.Stdout)

		return cli.ExitSuccess
	case "--version":
		fmt.Println(version)

		return cli.ExitSuccess
	}

	handler, ok := dispatch[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[0])
		printUsage(os.Stderr)

		return cli.ExitUsage
	}

	cfg := loadConfig()

	return handler(os.Stdout, os.Stderr, cfg, args[1:])
}

func loadConfig() config.Config {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}
	}

	path := config.FindNearest(wd)
	if path == "" {
		path = globalConfigPath()
		if path == "" {
			return config.Config{}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}
	}

	return cfg
}

// globalConfigPath returns $XDG_CONFIG_HOME/rangestore/config.json if
// XDG_CONFIG_HOME is set, else ~/.config/rangestore/config.json, else "" if
// neither can be determined.
func globalConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rangestore", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "rangestore", "config.json")
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, "usage: rangestore <command> [flags]")
	fmt.Fprintln(w, "commands: create, add, set-size, read, find-offset, list-ranges, get-index")
}
