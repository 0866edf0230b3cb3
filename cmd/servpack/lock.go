package main

import (
	"context"
	"flag"
	"log"

	"github.com/google/subcommands"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/servpack/servpack/archive"
	"github.com/servpack/servpack/internal/renameio"
	"github.com/servpack/servpack/modpack"
)

type LockCommand struct {
	OutputPath   string
	DisableCache bool
}

func (*LockCommand) Name() string     { return "lock" }
func (*LockCommand) Synopsis() string { return "record resolved names and checksums" }
func (*LockCommand) Usage() string {
	return `Usage: servpack lock [-o servpack.lock.hcl] [-nocache] MODPACK

	Resolves every mod of a modpack and writes a lock file with the
	resolved file names and the checksums of the downloaded
	payloads. The lock file contains one "mod" block per entry.

Flags:
`
}

func (cmd *LockCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&cmd.OutputPath, "o", "servpack.lock.hcl", "lock file output path")
	fs.BoolVar(&cmd.DisableCache, "nocache", false, "disable filesystem cache")
}

func (cmd *LockCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		log.Printf("expected a modpack path or URL")
		return subcommands.ExitUsageError
	}
	src := fs.Arg(0)

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

	lockFile := hclwrite.NewEmptyFile()
	body := lockFile.Body()
	lb := lockBuilder{Body: body}

	for _, mod := range pack.Manifest.Mods() {
		name, err := dl.Name(mod)
		if err != nil {
			log.Printf("resolve %s: %+v", describeMod(mod), err)
			return subcommands.ExitFailure
		}
		sums, err := dl.Sums(mod)
		if err != nil {
			log.Printf("sum %s: %+v", name, err)
			return subcommands.ExitFailure
		}
		lb.add(mod, name, sums)
	}

	fpath := cmd.OutputPath
	outSrc := lockFile.Bytes()
	if err := renameio.WriteFile(fpath, outSrc, 0644); err != nil {
		log.Printf("write file %q: %+v", fpath, err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}

type lockBuilder struct {
	*hclwrite.Body
	length int
}

func (b *lockBuilder) add(m modpack.Mod, name string, sums []string) {
	if b.length > 0 {
		b.AppendNewline()
	}
	b.length++

	block := b.AppendNewBlock("mod", []string{name})
	body := block.Body()

	if m.Method != modpack.MethodFile {
		method := cty.StringVal(m.Method)
		body.SetAttributeValue("method", method)
	}

	if f := m.File; f != "" {
		file := cty.StringVal(f)
		body.SetAttributeValue("file", file)
	}

	if id := int64(m.ProjectID); id > 0 {
		projectID := cty.NumberIntVal(id)
		body.SetAttributeValue("projectID", projectID)
	}

	if id := int64(m.FileID); id > 0 {
		fileID := cty.NumberIntVal(id)
		body.SetAttributeValue("fileID", fileID)
	}

	if len(sums) <= 0 {
		return
	}
	vals := make([]cty.Value, len(sums))
	for i, sum := range sums {
		vals[i] = cty.StringVal(sum)
	}
	list := cty.ListVal(vals)
	body.SetAttributeValue("sums", list)
}
