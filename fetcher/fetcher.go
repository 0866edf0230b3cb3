// Package fetcher maintains the local download cache for modpack
// content. Payloads live on a billy filesystem keyed by their origin,
// with resolved file names and checksums recorded in a pogreb
// database so repeated runs skip the network entirely.
package fetcher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/akrylysov/pogreb"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/servpack/servpack/modpack"
)

func httpCachePath(fs billy.Basic, m modpack.Mod) (dir, base string) {
	// Good enough is good enough.
	sum := sha1.Sum([]byte(m.File))
	hex := fmt.Sprintf("%x", sum)
	return "http", fs.Join(hex[:2], hex)
}

func httpResolveURL(c *http.Client, m modpack.Mod) (string, error) {
	return m.File, nil
}

type Fetcher struct {
	Files    billy.Filesystem
	Client   *http.Client
	Database *pogreb.DB

	// CurseAPI overrides the CurseForge API base URL.
	CurseAPI string
}

func (dl *Fetcher) curseAPI() string {
	if dl.CurseAPI != "" {
		return dl.CurseAPI
	}
	return defaultCurseAPI
}

// Name resolves the final file name for a mod. Curse mods learn it
// from the resolved download URL; the result is recorded in the
// database so later runs answer without network traffic.
func (dl *Fetcher) Name(m modpack.Mod) (string, error) {
	if m.Path != "" {
		return path.Base(m.Path), nil
	}
	switch m.Method {
	case modpack.MethodCurse, modpack.MethodHTTP:
	case modpack.MethodFile:
		return filepath.Base(m.File), nil
	default:
		return "", modpack.ErrUnknownModMethod
	}
	dir, base := dl.cachePath(m)
	if name, ok := dl.getMeta(dir, base, "name"); ok {
		return name, nil
	}
	rawurl, err := dl.resolve(m)
	if err != nil {
		return "", err
	}
	name, err := urlBase(rawurl)
	if err != nil {
		return "", err
	}
	dl.putMeta(dir, base, "name", name)
	return name, nil
}

// Cache ensures the mod payload is present in the cache. Entries
// whose data file already exists are not fetched again.
func (dl *Fetcher) Cache(m modpack.Mod) error {
	switch m.Method {
	case modpack.MethodCurse, modpack.MethodHTTP:
	case modpack.MethodFile:
		return nil
	default:
		return modpack.ErrUnknownModMethod
	}
	dir, base := dl.cachePath(m)
	_, err := dl.statData(dir, base)
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	rawurl, err := dl.resolve(m)
	if err != nil {
		return err
	}
	if name, err := urlBase(rawurl); err == nil {
		dl.putMeta(dir, base, "name", name)
	}
	return dl.downloadFile(rawurl, dir, base)
}

// Open returns the cached payload for the mod, fetching it first if
// necessary and verifying any expected checksums.
func (dl *Fetcher) Open(m modpack.Mod) (billy.File, error) {
	if m.Method == modpack.MethodFile {
		fpath := filepath.FromSlash(m.File)
		dir, base := filepath.Split(fpath)
		return osfs.New(dir).Open(base)
	}
	if err := dl.Cache(m); err != nil {
		return nil, err
	}
	dir, base := dl.cachePath(m)
	if err := dl.verifySums(m.Sums, dir, base); err != nil {
		return nil, err
	}
	return dl.openData(dir, base)
}

// Sums returns the checksums recorded for the mod, fetching it first
// if necessary.
func (dl *Fetcher) Sums(m modpack.Mod) ([]string, error) {
	if m.Method == modpack.MethodFile {
		// TODO should we check local files integrity?
		return nil, nil
	}
	if err := dl.Cache(m); err != nil {
		return nil, err
	}
	dir, base := dl.cachePath(m)
	return dl.readSums(dir, base), nil
}

func (dl *Fetcher) cachePath(m modpack.Mod) (dir, base string) {
	switch m.Method {
	case modpack.MethodCurse:
		return curseCachePath(dl.Files, m)
	default:
		return httpCachePath(dl.Files, m)
	}
}

func (dl *Fetcher) resolve(m modpack.Mod) (string, error) {
	switch m.Method {
	case modpack.MethodCurse:
		return curseResolveURL(dl.Client, dl.curseAPI(), m)
	default:
		return httpResolveURL(dl.Client, m)
	}
}

func (dl *Fetcher) readSums(dir, base string) []string {
	v, ok := dl.getMeta(dir, base, "sum")
	if !ok || v == "" {
		return nil
	}
	return strings.Split(v, "\n")
}

func (dl *Fetcher) verifySums(sums []string, dir, base string) error {
	if len(sums) <= 0 {
		return nil
	}
	have := dl.readSums(dir, base)
	haveMap := make(map[string]struct{}, len(have))
	for _, sum := range have {
		haveMap[sum] = struct{}{}
	}
	for _, sum := range sums {
		if _, ok := haveMap[sum]; ok {
			continue
		}
		return modpack.ErrSumsMismatch
	}
	return nil
}

func (dl *Fetcher) downloadFile(rawurl, dir, base string) error {
	hashNames := []string{
		"md5",
		"sha1",
		"sha256",
		"keccak256",
	}
	hashes := []hash.Hash{
		md5.New(),
		sha1.New(),
		sha256.New(),
		sha3.New256(),
	}
	nhashes := len(hashes)
	flags := os.O_WRONLY | os.O_TRUNC | os.O_CREATE
	err := dl.withData(dir, base, flags, func(f billy.File) (err error) {
		defer func() {
			cerr := f.Close()
			if err == nil {
				err = cerr
			}
		}()
		ww := make([]io.Writer, nhashes+1)
		for i, h := range hashes {
			ww[i] = h
		}
		ww[nhashes] = f
		w := io.MultiWriter(ww...)
		return dl.fetchFile(w, rawurl)
	})
	if err != nil {
		// Don’t leave a truncated payload behind.
		rerr := dl.removeData(dir, base)
		if rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			log.Printf("remove %q: %+v", base, rerr)
		}
		return err
	}
	sums := make([]string, nhashes)
	for i, name := range hashNames {
		sums[i] = fmt.Sprintf("%s:%x", name, hashes[i].Sum(nil))
	}
	dl.putMeta(dir, base, "sum", strings.Join(sums, "\n"))
	return nil
}

func (dl *Fetcher) fetchFile(w io.Writer, rawurl string) error {
	resp, err := dl.Client.Get(rawurl)
	if err != nil {
		return err
	}
	r := resp.Body
	defer func() {
		err := r.Close()
		if err != nil {
			log.Printf("close %q: %+v", rawurl, err)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &modpack.StatusError{URL: rawurl, StatusCode: resp.StatusCode}
	}
	if _, err := io.Copy(w, r); err != nil {
		return err
	}
	return nil
}

func (dl *Fetcher) getMeta(dir, base, kind string) (string, bool) {
	if dl.Database == nil {
		return "", false
	}
	key := metaKey(dir, base, kind)
	v, err := dl.Database.Get(key)
	if err != nil {
		log.Printf("meta get %q: %+v", key, err)
		return "", false
	}
	if v == nil {
		return "", false
	}
	return string(v), true
}

func (dl *Fetcher) putMeta(dir, base, kind, value string) {
	if dl.Database == nil {
		return
	}
	key := metaKey(dir, base, kind)
	if err := dl.Database.Put(key, []byte(value)); err != nil {
		log.Printf("meta put %q: %+v", key, err)
	}
}

func metaKey(dir, base, kind string) []byte {
	return []byte(fmt.Sprintf("%s/%s.%s", dir, base, kind))
}

func urlBase(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", err
	}
	name, err := url.PathUnescape(path.Base(u.Path))
	if err != nil {
		name = path.Base(u.Path)
	}
	return name, nil
}

func (dl *Fetcher) statData(dir, base string) (os.FileInfo, error) {
	return dl.Files.Stat(dl.Files.Join(dir, base+".dat"))
}

func (dl *Fetcher) removeData(dir, base string) error {
	return dl.Files.Remove(dl.Files.Join(dir, base+".dat"))
}

func (dl *Fetcher) openData(dir, base string) (billy.File, error) {
	return dl.Files.Open(dl.Files.Join(dir, base+".dat"))
}

func (dl *Fetcher) withData(dir, base string, flag int, fn func(billy.File) error) error {
	if err := dl.Files.MkdirAll(dir, 0755); err != nil {
		return err
	}
	fpath := dl.Files.Join(dir, base+".dat")
	f, err := dl.Files.OpenFile(fpath, flag, 0644)
	if err != nil {
		return err
	}
	return fn(f)
}
