package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/servpack/servpack/archive"
	"github.com/servpack/servpack/deploy"
	"github.com/servpack/servpack/fetcher"
	"github.com/servpack/servpack/installer"
	"github.com/servpack/servpack/modpack"
)

type InstallCommand struct {
	Dest         string
	Threads      int
	ExcludePath  string
	KeepConfig   bool
	KeepLoader   bool
	Link         string
	ConfigPath   string
	DisableCache bool
}

func (*InstallCommand) Name() string     { return "install" }
func (*InstallCommand) Synopsis() string { return "provision a server from a modpack" }
func (*InstallCommand) Usage() string {
	return `Usage: servpack install [-dest dir] [-j n] [-e patterns.txt] [-keep-config] [-keep-loader] [-link name] [-nocache] MODPACK

	Provisions a Minecraft server directory from a modpack archive.
	MODPACK is either a local archive path or a URL to download it
	from. Mods are downloaded into the local cache, the matching
	Forge server installer is run in the destination directory, and
	the pack overrides are copied on top.

	Mod download failures are reported at the end of the run and
	make the command exit non-zero; they do not stop the remaining
	downloads. Archive and installer failures abort immediately.

Flags:
`
}

func (cmd *InstallCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&cmd.Dest, "dest", "", "server directory (default \".\")")
	fs.IntVar(&cmd.Threads, "j", 0, "concurrent mod downloads (default 1)")
	fs.StringVar(&cmd.ExcludePath, "e", "", "file with one mod name glob to exclude per line")
	fs.BoolVar(&cmd.KeepConfig, "keep-config", false, "preserve existing configuration files")
	fs.BoolVar(&cmd.KeepLoader, "keep-loader", false, "skip the Forge server install")
	fs.StringVar(&cmd.Link, "link", "", "symlink to the server jar (default \"minecraft_server.jar\")")
	fs.StringVar(&cmd.ConfigPath, "config", defaultConfig, "servpack config path")
	fs.BoolVar(&cmd.DisableCache, "nocache", false, "disable filesystem cache")
}

func (cmd *InstallCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		log.Printf("expected a modpack path or URL")
		return subcommands.ExitUsageError
	}
	src := fs.Arg(0)

	cfg, ok := parseConfig(cmd.ConfigPath, cmd.ConfigPath == defaultConfig)
	if !ok {
		return subcommands.ExitFailure
	}
	dest := cmd.Dest
	if dest == "" {
		dest = cfg.Destination
	}
	if dest == "" {
		dest = "."
	}
	threads := cmd.Threads
	if threads <= 0 {
		threads = cfg.Threads
	}
	if threads <= 0 {
		threads = 1
	}
	keepConfig := cmd.KeepConfig || cfg.KeepConfig
	keepLoader := cmd.KeepLoader || cfg.KeepLoader
	link := cmd.Link
	if link == "" {
		link = cfg.Link
	}
	if link == "" {
		link = "minecraft_server.jar"
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		log.Printf("config %q: %+v", cmd.ConfigPath, err)
		return subcommands.ExitFailure
	}
	client := newClient(timeout)

	bl, err := loadBlacklist(cmd.ExcludePath, cfg.Exclude)
	if err != nil {
		log.Printf("blacklist: %+v", err)
		return subcommands.ExitFailure
	}

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
	m := pack.Manifest
	log.Printf("modpack: %s (version %s)", m.Name, m.Version)

	var loaderOverrides []installer.Override
	for _, l := range cfg.Loaders {
		loaderOverrides = append(loaderOverrides, installer.Override{
			Prefix: l.Version,
			URL:    l.URL,
		})
	}

	// Validate the loader mapping before anything touches the
	// destination directory.
	var forgeVersion string
	if !keepLoader {
		var ok bool
		forgeVersion, ok = m.ForgeVersion()
		if !ok {
			log.Printf("no forge loader declared in manifest")
			return subcommands.ExitFailure
		}
		if _, err := selectLoader(m.Minecraft.Version, loaderOverrides); err != nil {
			log.Printf("select loader: %+v", err)
			return subcommands.ExitFailure
		}
	}

	mods := m.Mods()
	log.Printf("downloading %d mods, this may take a while", len(mods))
	var pr fetcher.Progress
	results := dl.CacheAll(ctx, mods, threads, bl, &pr)
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

	target := osfs.New(dest)
	d := &deploy.Deployer{
		Target:       target,
		Blacklist:    bl,
		KeepExisting: keepConfig,
	}
	if err := d.BackupDirs(deploy.ModsDir, deploy.ConfigDir); err != nil {
		log.Printf("backup %q: %+v", dest, err)
		return subcommands.ExitFailure
	}

	if !keepLoader {
		ins := &installer.Installer{
			Fetcher:   dl,
			Client:    client,
			Link:      link,
			Overrides: loaderOverrides,
		}
		log.Printf("installing forge %s-%s", m.Minecraft.Version, forgeVersion)
		if err := ins.Install(ctx, m.Minecraft.Version, forgeVersion, dest); err != nil {
			log.Printf("install loader: %+v", err)
			return subcommands.ExitFailure
		}
	}

	log.Printf("installing mods")
	for _, r := range results {
		if r.Err != nil || r.Skipped {
			continue
		}
		if err := installMod(dl, d, r); err != nil {
			log.Printf("install mod %s: %+v", r.Name, err)
			return subcommands.ExitFailure
		}
	}

	log.Printf("applying overrides")
	if err := d.ApplyOverrides(pack); err != nil {
		log.Printf("apply overrides: %+v", err)
		return subcommands.ExitFailure
	}

	if keepConfig {
		if err := d.RestoreConfig(); err != nil {
			log.Printf("restore config: %+v", err)
			return subcommands.ExitFailure
		}
	}

	if failed > 0 {
		log.Printf("modpack %s installed with %d failed downloads", m.Name, failed)
		return subcommands.ExitFailure
	}
	log.Printf("modpack %s successfully installed", m.Name)
	return subcommands.ExitSuccess
}

func installMod(dl *fetcher.Fetcher, d *deploy.Deployer, r fetcher.Result) error {
	f, err := dl.Open(r.Mod)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Printf("close %s: %+v", r.Name, cerr)
		}
	}()
	return d.InstallMod(r.Name, f)
}

func selectLoader(mcVersion string, overrides []installer.Override) (installer.Descriptor, error) {
	ins := installer.Installer{Overrides: overrides}
	return ins.SelectDescriptor(mcVersion)
}

func describeMod(m modpack.Mod) string {
	if m.File != "" {
		return m.File
	}
	return fmt.Sprintf("project %d file %d", m.ProjectID, m.FileID)
}
