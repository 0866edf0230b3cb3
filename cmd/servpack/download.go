package main

import (
	"context"
	"flag"
	"log"

	"github.com/google/subcommands"

	"github.com/servpack/servpack/archive"
	"github.com/servpack/servpack/fetcher"
)

type DownloadCommand struct {
	Threads      int
	ExcludePath  string
	DisableCache bool
}

func (*DownloadCommand) Name() string     { return "download" }
func (*DownloadCommand) Synopsis() string { return "download modpack content to local cache" }
func (*DownloadCommand) Usage() string {
	return `Usage: servpack download [-j n] [-e patterns.txt] [-nocache] MODPACK

	Downloads the mods of a modpack to the local cache without
	touching any server directory. Useful for pre-filling the cache
	and checking download availability.

Flags:
`
}

func (cmd *DownloadCommand) SetFlags(fs *flag.FlagSet) {
	fs.IntVar(&cmd.Threads, "j", 1, "concurrent mod downloads")
	fs.StringVar(&cmd.ExcludePath, "e", "", "file with one mod name glob to exclude per line")
	fs.BoolVar(&cmd.DisableCache, "nocache", false, "disable filesystem cache")
}

func (cmd *DownloadCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		log.Printf("expected a modpack path or URL")
		return subcommands.ExitUsageError
	}
	src := fs.Arg(0)

	bl, err := loadBlacklist(cmd.ExcludePath, nil)
	if err != nil {
		log.Printf("blacklist: %+v", err)
		return subcommands.ExitFailure
	}

	client := newClient(0)
	dl, cleanup, err := newFetcher(cmd.DisableCache, client)
	if err != nil {
		log.Printf("open cache: %+v", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	pack, err := archive.OpenSource(dl.Files, client, src)
	if err != nil {
		log.Printf("open modpack %q: %+v", src, err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := pack.Close(); err != nil {
			log.Printf("close modpack: %+v", err)
		}
	}()

	mods := pack.Manifest.Mods()
	var pr fetcher.Progress
	results := dl.CacheAll(ctx, mods, cmd.Threads, bl, &pr)
	for _, r := range results {
		if r.Err != nil {
			name := r.Name
			if name == "" {
				name = describeMod(r.Mod)
			}
			log.Printf("download %s: %+v", name, r.Err)
		}
	}
	done, failed, skipped := pr.Counts()
	log.Printf("downloaded %d mods (%d failed, %d excluded)", done, failed, skipped)
	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
