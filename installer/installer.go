// Package installer selects, downloads and runs the Forge server
// installer matching a modpack's Minecraft version.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/servpack/servpack/fetcher"
	"github.com/servpack/servpack/modpack"
)

const installServerArg = "--installServer"

// UnsupportedVersionError reports a Minecraft version with no known
// installer mapping.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported minecraft version %q", e.Version)
}

// ExecError reports a failed installer subprocess.
type ExecError struct {
	Cmd string
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("run %q: %v", e.Cmd, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Installer downloads installer jars through the shared content
// cache and runs them against a target server directory.
type Installer struct {
	Fetcher *fetcher.Fetcher
	Client  *http.Client

	// Java is the java binary name, "java" when empty.
	Java string

	// Link is the name of the relative symlink pointed at the
	// universal server jar after a successful install. Empty
	// disables the link.
	Link string

	// Overrides take precedence over the built-in version table.
	Overrides []Override

	// FilesIndexURL overrides the Forge files page template used
	// by the scrape fallback. The verb is the Minecraft version.
	FilesIndexURL string

	// Run executes the installer process. Tests stub it; nil runs
	// the real subprocess.
	Run func(ctx context.Context, dir, name string, args ...string) error
}

// Install provisions the Forge server for the given Minecraft and
// Forge versions into targetDir. Nothing is written when the version
// is not supported.
func (ins *Installer) Install(ctx context.Context, mcVersion, forgeVersion, targetDir string) error {
	d, err := ins.SelectDescriptor(mcVersion)
	if err != nil {
		return err
	}

	jar, jarName, err := ins.fetchJar(d, mcVersion, forgeVersion)
	if err != nil {
		return err
	}
	defer func() {
		cerr := jar.Close()
		if cerr != nil {
			log.Printf("close %q: %+v", jarName, cerr)
		}
	}()

	if err := copyToDir(jar, targetDir, jarName); err != nil {
		return err
	}
	defer func() {
		rerr := os.Remove(filepath.Join(targetDir, jarName))
		if rerr != nil {
			log.Printf("remove %q: %+v", jarName, rerr)
		}
	}()

	if err := ins.runJava(ctx, targetDir, jarName); err != nil {
		return err
	}

	if ins.Link != "" {
		universal := strings.Replace(jarName, "installer", "universal", 1)
		if err := symlink(targetDir, universal, ins.Link); err != nil {
			log.Printf("link %q: %+v", ins.Link, err)
		}
	}
	return nil
}

// SelectDescriptor picks the installer mapping for a Minecraft
// version, user overrides first.
func (ins *Installer) SelectDescriptor(mcVersion string) (Descriptor, error) {
	for _, o := range ins.Overrides {
		if matchVersion(mcVersion, o.Prefix) {
			return Descriptor{Prefix: o.Prefix, URL: o.URL}, nil
		}
	}
	return Select(mcVersion)
}

// fetchJar tries every candidate URL for the descriptor, falling
// back to scraping the Forge files page when all of them 404.
func (ins *Installer) fetchJar(d Descriptor, mcVersion, forgeVersion string) (billy.File, string, error) {
	urls := d.URLs(mcVersion, forgeVersion)
	for _, rawurl := range urls {
		f, name, err := ins.openURL(rawurl)
		if err == nil {
			return f, name, nil
		}
		if !modpack.NotFound(err) {
			return nil, "", err
		}
	}
	template := ins.FilesIndexURL
	if template == "" {
		template = defaultFilesIndexURL
	}
	rawurl, err := scrapeInstallerURL(ins.Client, template, mcVersion)
	if err != nil {
		return nil, "", fmt.Errorf("no installer for %s-%s: %w", mcVersion, forgeVersion, err)
	}
	return ins.openURL(rawurl)
}

func (ins *Installer) openURL(rawurl string) (billy.File, string, error) {
	name, err := urlName(rawurl)
	if err != nil {
		return nil, "", err
	}
	m := modpack.Mod{
		Method: modpack.MethodHTTP,
		File:   rawurl,
		Path:   name,
	}
	f, err := ins.Fetcher.Open(m)
	if err != nil {
		return nil, "", err
	}
	return f, name, nil
}

func (ins *Installer) runJava(ctx context.Context, dir, jarName string) error {
	java := ins.Java
	if java == "" {
		java = "java"
	}
	args := []string{"-jar", jarName, installServerArg}
	run := ins.Run
	if run == nil {
		run = execRun
	}
	if err := run(ctx, dir, java, args...); err != nil {
		cmd := strings.Join(append([]string{java}, args...), " ")
		return &ExecError{Cmd: cmd, Err: err}
	}
	return nil
}

func execRun(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func copyToDir(r io.Reader, dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func urlName(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", err
	}
	return path.Base(u.Path), nil
}

// symlink points a relative link at target inside dir, replacing an
// existing link.
func symlink(dir, target, link string) error {
	if _, err := os.Stat(filepath.Join(dir, target)); err != nil {
		return err
	}
	lpath := filepath.Join(dir, link)
	if err := os.Remove(lpath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Symlink(target, lpath)
}
