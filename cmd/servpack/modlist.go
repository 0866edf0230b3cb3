package main

import (
	"bytes"
	"context"
	"flag"
	"html/template"
	"log"

	"github.com/google/subcommands"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/servpack/servpack/archive"
	"github.com/servpack/servpack/internal/renameio"
)

const modlistTemplate = `<!doctype html>
<title>{{.Name}} {{.Version}}</title>
<h1>{{.Name}} <small>{{.Version}}</small></h1>
<ul>
{{- range .Files}}
<li><a href="https://minecraft.curseforge.com/projects/{{.ProjectID}}">project {{.ProjectID}} file {{.FileID}}</a></li>
{{- end}}
{{- range .DirectDownloads}}
<li><a href="{{.URL}}">{{.Filename}}</a></li>
{{- end}}
</ul>
`

type ModlistCommand struct {
	OutputPath string
}

func (*ModlistCommand) Name() string     { return "modlist" }
func (*ModlistCommand) Synopsis() string { return "generate modlist page" }
func (*ModlistCommand) Usage() string {
	return `Usage: servpack modlist [-o modlist.html] MODPACK

	Generates an HTML listing of the mods in a modpack.

Flags:
`
}

func (cmd *ModlistCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&cmd.OutputPath, "o", "modlist.html", "modlist page output path")
}

func (cmd *ModlistCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		log.Printf("expected a modpack path or URL")
		return subcommands.ExitUsageError
	}
	src := fs.Arg(0)

	tpl, err := template.New("modlist").Parse(modlistTemplate)
	if err != nil {
		log.Printf("parse modlist template: %+v", err)
		return subcommands.ExitFailure
	}

	pack, err := archive.OpenSource(memfs.New(), newClient(0), src)
	if err != nil {
		log.Printf("open modpack %q: %+v", src, err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := pack.Close(); err != nil {
			log.Printf("close modpack: %+v", err)
		}
	}()

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, pack.Manifest); err != nil {
		log.Printf("execute template: %+v", err)
		return subcommands.ExitFailure
	}

	fpath := cmd.OutputPath
	if err := renameio.WriteFile(fpath, buf.Bytes(), 0644); err != nil {
		log.Printf("write file %q: %+v", fpath, err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
