package installer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/akrylysov/pogreb"
	pogrebfs "github.com/akrylysov/pogreb/fs"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servpack/servpack/fetcher"
)

// mavenServer serves Forge installer jars under /maven and an
// optional files index page.
type mavenServer struct {
	mu   sync.Mutex
	hits map[string]int

	srv *httptest.Server

	// jars is the set of installer jar names present in the maven
	// repository. Anything else gets a 404.
	jars map[string]bool

	// index, when non-empty, is served as the files page body.
	index string
}

func newMavenServer(jars ...string) *mavenServer {
	ms := &mavenServer{
		hits: make(map[string]int),
		jars: make(map[string]bool),
	}
	for _, name := range jars {
		ms.jars[name] = true
	}
	ms.srv = httptest.NewServer(http.HandlerFunc(ms.handle))
	return ms
}

func (ms *mavenServer) handle(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	ms.hits[r.URL.Path]++
	index := ms.index
	ms.mu.Unlock()

	var name string
	if n, _ := fmt.Sscanf(r.URL.Path, "/maven/%s", &name); n == 1 {
		if !ms.jars[name] {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "jar %s", name)
		return
	}
	if n, _ := fmt.Sscanf(r.URL.Path, "/index_%s", &name); n == 1 && index != "" {
		fmt.Fprint(w, index)
		return
	}
	http.NotFound(w, r)
}

func (ms *mavenServer) setIndex(body string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.index = body
}

func (ms *mavenServer) count(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.hits[path]
}

func (ms *mavenServer) total() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	n := 0
	for _, c := range ms.hits {
		n += c
	}
	return n
}

func (ms *mavenServer) close() { ms.srv.Close() }

// runRecorder stands in for the java subprocess and records each
// invocation.
type runRecorder struct {
	dir  string
	name string
	args []string

	// jars are file names created in dir before returning, mimicking
	// installer output.
	jars []string

	err error
}

func (rr *runRecorder) run(ctx context.Context, dir, name string, args ...string) error {
	rr.dir = dir
	rr.name = name
	rr.args = args
	for _, jar := range rr.jars {
		if err := os.WriteFile(filepath.Join(dir, jar), []byte("server jar"), 0644); err != nil {
			return err
		}
	}
	return rr.err
}

func newTestInstaller(t *testing.T, ms *mavenServer, rr *runRecorder) *Installer {
	t.Helper()
	db, err := pogreb.Open(t.Name(), &pogreb.Options{
		FileSystem: pogrebfs.Mem,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %+v", err)
		}
	})
	return &Installer{
		Fetcher: &fetcher.Fetcher{
			Files:    memfs.New(),
			Client:   ms.srv.Client(),
			Database: db,
		},
		Client: ms.srv.Client(),
		Overrides: []Override{
			{Prefix: "1.7", URL: ms.srv.URL + "/maven/forge-%s-installer.jar"},
		},
		FilesIndexURL: ms.srv.URL + "/index_%s.html",
		Run:           rr.run,
	}
}

func TestInstall(t *testing.T) {
	ms := newMavenServer("forge-1.7.10-10.13.4.1614-installer.jar")
	defer ms.close()
	rr := &runRecorder{}
	ins := newTestInstaller(t, ms, rr)

	dir := t.TempDir()
	require.NoError(t, ins.Install(context.Background(), "1.7.10", "10.13.4.1614", dir))

	assert.Equal(t, dir, rr.dir)
	assert.Equal(t, "java", rr.name)
	assert.Equal(t, []string{"-jar", "forge-1.7.10-10.13.4.1614-installer.jar", "--installServer"}, rr.args)

	// The installer jar is cleaned up after the run.
	_, err := os.Stat(filepath.Join(dir, "forge-1.7.10-10.13.4.1614-installer.jar"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestInstallAltSuffix(t *testing.T) {
	ms := newMavenServer("forge-1.7.10-10.13.4.1558-1.7.10-installer.jar")
	defer ms.close()
	rr := &runRecorder{}
	ins := newTestInstaller(t, ms, rr)

	d := Descriptor{Prefix: "1.7", URL: ms.srv.URL + "/maven/forge-%s-installer.jar", AltMCSuffix: true}
	jar, name, err := ins.fetchJar(d, "1.7.10", "10.13.4.1558")
	require.NoError(t, err)
	defer jar.Close()

	assert.Equal(t, "forge-1.7.10-10.13.4.1558-1.7.10-installer.jar", name)
	assert.NotZero(t, ms.count("/maven/forge-1.7.10-10.13.4.1558-installer.jar"))
}

func TestInstallScrapeFallback(t *testing.T) {
	ms := newMavenServer("forge-1.7.10-10.13.2.1343-installer.jar")
	defer ms.close()
	ms.setIndex(fmt.Sprintf(
		`<html><body><a href="%s/maven/forge-1.7.10-10.13.2.1343-installer.jar">Installer</a></body></html>`,
		ms.srv.URL))
	rr := &runRecorder{}
	ins := newTestInstaller(t, ms, rr)

	dir := t.TempDir()
	// The version the table derives is absent from maven, so the
	// files page decides.
	require.NoError(t, ins.Install(context.Background(), "1.7.10", "9.9.9.999", dir))

	assert.Equal(t, []string{"-jar", "forge-1.7.10-10.13.2.1343-installer.jar", "--installServer"}, rr.args)
}

func TestInstallExecError(t *testing.T) {
	ms := newMavenServer("forge-1.7.10-10.13.4.1614-installer.jar")
	defer ms.close()
	rr := &runRecorder{err: errors.New("exit status 1")}
	ins := newTestInstaller(t, ms, rr)

	err := ins.Install(context.Background(), "1.7.10", "10.13.4.1614", t.TempDir())
	require.Error(t, err)

	var ee *ExecError
	require.True(t, errors.As(err, &ee))
	assert.Contains(t, ee.Cmd, "--installServer")
	assert.Equal(t, rr.err, ee.Err)
}

func TestInstallUnsupported(t *testing.T) {
	ms := newMavenServer()
	defer ms.close()
	rr := &runRecorder{}
	ins := newTestInstaller(t, ms, rr)

	dir := t.TempDir()
	err := ins.Install(context.Background(), "1.16.5", "36.2.39", dir)

	var uve *UnsupportedVersionError
	require.True(t, errors.As(err, &uve))
	assert.Equal(t, "1.16.5", uve.Version)

	// Nothing touched the target directory.
	entries, rerr := os.ReadDir(dir)
	require.NoError(t, rerr)
	assert.Empty(t, entries)

	// And nothing hit the network.
	assert.Zero(t, ms.total())
}

func TestInstallJava(t *testing.T) {
	ms := newMavenServer("forge-1.7.10-10.13.4.1614-installer.jar")
	defer ms.close()
	rr := &runRecorder{}
	ins := newTestInstaller(t, ms, rr)
	ins.Java = "/opt/jdk8/bin/java"

	require.NoError(t, ins.Install(context.Background(), "1.7.10", "10.13.4.1614", t.TempDir()))
	assert.Equal(t, "/opt/jdk8/bin/java", rr.name)
}

func TestInstallLink(t *testing.T) {
	ms := newMavenServer("forge-1.7.10-10.13.4.1614-installer.jar")
	defer ms.close()
	rr := &runRecorder{jars: []string{"forge-1.7.10-10.13.4.1614-universal.jar"}}
	ins := newTestInstaller(t, ms, rr)
	ins.Link = "minecraft_server.jar"

	dir := t.TempDir()
	require.NoError(t, ins.Install(context.Background(), "1.7.10", "10.13.4.1614", dir))

	target, err := os.Readlink(filepath.Join(dir, "minecraft_server.jar"))
	require.NoError(t, err)
	assert.Equal(t, "forge-1.7.10-10.13.4.1614-universal.jar", target)
}
