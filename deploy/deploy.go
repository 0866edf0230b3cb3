// Package deploy populates the target server directory: mod
// payloads, archive overrides, and backup/restore of the previous
// installation state.
package deploy

import (
	"archive/zip"
	"errors"
	"io"
	"log"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"

	"github.com/servpack/servpack/archive"
	"github.com/servpack/servpack/blacklist"
)

const (
	ModsDir   = "mods"
	ConfigDir = "config"

	backupExt = ".bak"
)

// Deployer writes into the target directory through a billy
// filesystem rooted at it.
type Deployer struct {
	Target    billy.Filesystem
	Blacklist *blacklist.List

	// KeepExisting leaves override destinations that already exist
	// untouched instead of overwriting them.
	KeepExisting bool
}

// BackupDirs rotates each named directory to <name>.bak, replacing a
// previous backup, and recreates it empty. Missing directories are
// created.
func (d *Deployer) BackupDirs(names ...string) error {
	for _, name := range names {
		if err := d.backupDir(name); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deployer) backupDir(name string) error {
	if _, err := d.Target.Stat(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d.Target.MkdirAll(name, 0755)
		}
		return err
	}
	bak := name + backupExt
	if err := removeAll(d.Target, bak); err != nil {
		return err
	}
	if err := copyTree(d.Target, name, bak); err != nil {
		return err
	}
	if err := removeAll(d.Target, name); err != nil {
		return err
	}
	return d.Target.MkdirAll(name, 0755)
}

// InstallMod writes a mod payload to mods/<name>. Blacklisted names
// are not written.
func (d *Deployer) InstallMod(name string, r io.Reader) error {
	if d.Blacklist.Match(name) {
		log.Printf("excluding mod %s", name)
		return nil
	}
	return writeFile(d.Target, d.Target.Join(ModsDir, name), r)
}

// ApplyOverrides copies the pack's override entries to their
// relative paths in the target directory. Entries with a blacklisted
// base name are skipped, as are existing destinations when
// KeepExisting is set.
func (d *Deployer) ApplyOverrides(p *archive.Pack) error {
	for _, f := range p.Overrides() {
		rel := p.OverridePath(f)
		if d.Blacklist.Match(path.Base(rel)) {
			log.Printf("excluding override %s", rel)
			continue
		}
		if d.KeepExisting {
			if _, err := d.Target.Stat(rel); err == nil {
				continue
			}
		}
		if err := d.applyOverride(f, rel); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deployer) applyOverride(f *zip.File, rel string) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		cerr := r.Close()
		if cerr != nil {
			log.Printf("close %q: %+v", f.Name, cerr)
		}
	}()
	return writeFile(d.Target, rel, r)
}

// RestoreConfig copies files from config.bak back into config,
// replacing anything the deployment wrote there. Files only the
// deployment created are kept.
func (d *Deployer) RestoreConfig() error {
	bak := ConfigDir + backupExt
	if _, err := d.Target.Stat(bak); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return copyTree(d.Target, bak, ConfigDir)
}

func writeFile(fs billy.Filesystem, fpath string, r io.Reader) error {
	dir := path.Dir(fpath)
	if dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := fs.OpenFile(fpath, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func copyFile(fs billy.Filesystem, src, dst string) error {
	f, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if cerr != nil {
			log.Printf("close %q: %+v", src, cerr)
		}
	}()
	return writeFile(fs, dst, f)
}

func copyTree(fs billy.Filesystem, src, dst string) error {
	files, err := walkFiles(fs, src)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(dst, 0755); err != nil {
		return err
	}
	for _, fpath := range files {
		rel := fpath[len(src)+1:]
		if err := copyFile(fs, fpath, fs.Join(dst, rel)); err != nil {
			return err
		}
	}
	return nil
}

// walkFiles lists regular files under root, depth first.
func walkFiles(fs billy.Filesystem, root string) ([]string, error) {
	entries, err := fs.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, fi := range entries {
		fpath := fs.Join(root, fi.Name())
		if fi.IsDir() {
			sub, err := walkFiles(fs, fpath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		files = append(files, fpath)
	}
	return files, nil
}

func removeAll(fs billy.Filesystem, root string) error {
	if _, err := fs.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	entries, err := fs.ReadDir(root)
	if err != nil {
		return err
	}
	for _, fi := range entries {
		fpath := fs.Join(root, fi.Name())
		if fi.IsDir() {
			if err := removeAll(fs, fpath); err != nil {
				return err
			}
			continue
		}
		if err := fs.Remove(fpath); err != nil {
			return err
		}
	}
	err = fs.Remove(root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
