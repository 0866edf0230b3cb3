package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"
)

const (
	programName   = "servpack"
	defaultConfig = "servpack.hcl"
)

func init() {
	log.SetFlags(0)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	h := fs.Bool("h", false, "alias for help")
	help := fs.Bool("help", false, "print usage")

	cdr := subcommands.NewCommander(fs, programName)
	cdr.Register(&InstallCommand{}, "")
	cdr.Register(&DownloadCommand{}, "")
	cdr.Register(&ModlistCommand{}, "")
	cdr.Register(&LockCommand{}, "")
	cdr.Register(&FormatCommand{}, "")
	cdr.Register(&CleanCommand{}, "")
	cdr.Register(cdr.HelpCommand(), "help")
	cdr.Register(cdr.FlagsCommand(), "help")
	cdr.Register(cdr.CommandsCommand(), "help")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *h || *help {
		cdr.Explain(os.Stdout)
		return 0
	}

	ctx := context.Background()
	switch cdr.Execute(ctx) {
	case subcommands.ExitFailure:
		return 1
	case subcommands.ExitUsageError:
		return 2
	}
	return 0
}
