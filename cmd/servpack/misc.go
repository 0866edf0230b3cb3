package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/akrylysov/pogreb"
	pogrebfs "github.com/akrylysov/pogreb/fs"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/servpack/servpack/blacklist"
	"github.com/servpack/servpack/config"
	"github.com/servpack/servpack/fetcher"
	"github.com/servpack/servpack/internal/robustio"
)

func cacheDir(p string) (string, error) {
	c, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(c, p), nil
}

func makeCache(p string) (string, error) {
	c, err := cacheDir(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(c, 0700); err != nil {
		return "", err
	}
	return c, nil
}

// newFetcher assembles the content cache: osfs plus an on-disk
// pogreb database, or fully in-memory when the cache is disabled.
// The returned cleanup closes the database.
func newFetcher(disableCache bool, client *http.Client) (*fetcher.Fetcher, func(), error) {
	var cachefs billy.Filesystem
	var db *pogreb.DB
	if !disableCache {
		cachePath, err := makeCache(programName)
		if err != nil {
			return nil, nil, err
		}
		cachefs = osfs.New(cachePath)
		db, err = pogreb.Open(filepath.Join(cachePath, "db"), nil)
		if err != nil {
			return nil, nil, err
		}
	} else {
		cachefs = memfs.New()
		var err error
		// BUG pogreb.Open always calls os.MkdirAll
		db, err = pogreb.Open(".", &pogreb.Options{
			FileSystem: pogrebfs.Mem,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	dl := &fetcher.Fetcher{
		Files:    cachefs,
		Client:   client,
		Database: db,
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("close database: %+v", err)
		}
	}
	return dl, cleanup, nil
}

func newClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newDiagWr(p *hclparse.Parser) (diagWr hcl.DiagnosticWriter, color bool) {
	files := p.Files()
	stderr := os.Stderr
	fd := int(stderr.Fd())
	istty, color := fdinfo(fd)
	if !istty {
		diagWr := hcl.NewDiagnosticTextWriter(stderr, files, 80, color)
		return diagWr, color
	}
	var width uint
	if w, _, err := terminal.GetSize(fd); err != nil {
		log.Printf("get term size: %+v", err)
	} else if w >= 0 {
		width = uint(w)
	} else {
		width = 80
	}
	return hcl.NewDiagnosticTextWriter(stderr, files, width, color), color
}

func fdinfo(fd int) (istty, color bool) {
	istty = terminal.IsTerminal(fd)
	if istty {
		color = true
	}
	// See https://no-color.org
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		color = false
	}
	return
}

// parseConfig reads an HCL config file. A missing file at the
// default path is not an error.
func parseConfig(fpath string, optional bool) (config.Config, bool) {
	var c config.Config

	src, err := robustio.ReadFile(fpath)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return c, true
		}
		log.Printf("read %q: %+v", fpath, err)
		return c, false
	}

	parser := hclparse.NewParser()
	diagWr, _ := newDiagWr(parser)

	file, diags := parser.ParseHCL(src, fpath)
	if diags.HasErrors() {
		if err := diagWr.WriteDiagnostics(diags); err != nil {
			log.Printf("write diags: %+v", err)
		}
		return c, false
	}

	decodeDiags := gohcl.DecodeBody(file.Body, nil, &c)
	diags = append(diags, decodeDiags...)
	if err := diagWr.WriteDiagnostics(diags); err != nil {
		log.Printf("write diags: %+v", err)
		return c, false
	}

	return c, !diags.HasErrors()
}

// loadBlacklist merges the -e pattern file with config excludes.
func loadBlacklist(fpath string, extra []string) (*blacklist.List, error) {
	var bl *blacklist.List
	if fpath != "" {
		var err error
		bl, err = blacklist.Load(fpath)
		if err != nil {
			return nil, err
		}
	} else {
		bl = &blacklist.List{}
	}
	for _, p := range extra {
		if err := bl.Add(p); err != nil {
			return nil, err
		}
	}
	return bl, nil
}
