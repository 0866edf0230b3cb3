// Package archive opens modpack archives from a local path or a
// remote URL and exposes their manifest and override entries.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/servpack/servpack/modpack"
)

const manifestName = "manifest.json"

// Pack is an opened modpack archive.
type Pack struct {
	Manifest *modpack.Manifest

	zr     *zip.Reader
	closer io.Closer
}

// OpenSource opens a modpack from a local file path if one exists,
// otherwise treats src as a URL and downloads the archive into fs
// first.
func OpenSource(fs billy.Filesystem, c *http.Client, src string) (*Pack, error) {
	if _, err := os.Stat(src); err == nil {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		fi, err := f.Stat()
		if err != nil {
			cclose(f)
			return nil, err
		}
		return open(f, fi.Size(), f)
	}
	fpath, err := fetch(fs, c, src)
	if err != nil {
		return nil, err
	}
	return Open(fs, fpath)
}

// Open opens a modpack archive stored on fs.
func Open(fs billy.Filesystem, fpath string) (*Pack, error) {
	fi, err := fs.Stat(fpath)
	if err != nil {
		return nil, err
	}
	f, err := fs.Open(fpath)
	if err != nil {
		return nil, err
	}
	return open(f, fi.Size(), f)
}

func open(r io.ReaderAt, size int64, closer io.Closer) (*Pack, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		cclose(closer)
		return nil, fmt.Errorf("open archive: %w", err)
	}
	m, err := readManifest(zr)
	if err != nil {
		cclose(closer)
		return nil, err
	}
	return &Pack{Manifest: m, zr: zr, closer: closer}, nil
}

func readManifest(zr *zip.Reader) (*modpack.Manifest, error) {
	for _, f := range zr.File {
		if f.Name != manifestName {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer cclose(r)
		return modpack.ParseManifest(r)
	}
	return nil, modpack.ErrNoManifest
}

// Overrides returns the archive entries under the manifest's
// overrides prefix. Directory entries are omitted.
func (p *Pack) Overrides() []*zip.File {
	prefix := p.Manifest.Overrides
	if prefix == "" {
		return nil
	}
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	var files []*zip.File
	for _, f := range p.zr.File {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		files = append(files, f)
	}
	return files
}

// OverridePath returns the target-relative path for an override
// entry.
func (p *Pack) OverridePath(f *zip.File) string {
	prefix := strings.TrimSuffix(p.Manifest.Overrides, "/") + "/"
	return path.Clean(strings.TrimPrefix(f.Name, prefix))
}

func (p *Pack) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// fetch downloads the archive to a fixed name on fs and returns the
// path.
func fetch(fs billy.Filesystem, c *http.Client, rawurl string) (string, error) {
	resp, err := c.Get(rawurl)
	if err != nil {
		return "", err
	}
	r := resp.Body
	defer func() {
		err := r.Close()
		if err != nil {
			log.Printf("close %q: %+v", rawurl, err)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &modpack.StatusError{URL: rawurl, StatusCode: resp.StatusCode}
	}
	fpath := "modpack.zip"
	f, err := fs.OpenFile(fpath, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	return fpath, nil
}

func cclose(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Printf("close: %+v", err)
	}
}
