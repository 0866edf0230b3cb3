package fetcher

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/servpack/servpack/modpack"
)

const defaultCurseAPI = "https://addons-ecs.forgesvc.net/api/v2"

func curseURL(api string, projectID, fileID int) string {
	return fmt.Sprintf("%s/addon/%d/file/%d/download-url", api, projectID, fileID)
}

func curseCachePath(fs billy.Basic, m modpack.Mod) (dir, base string) {
	projectID := strconv.Itoa(m.ProjectID)
	fileID := strconv.Itoa(m.FileID)
	return fs.Join("curse", projectID), fileID
}

func curseResolveURL(c *http.Client, api string, m modpack.Mod) (string, error) {
	u := curseURL(api, m.ProjectID, m.FileID)
	resp, err := c.Get(u)
	if err != nil {
		return "", err
	}
	r := resp.Body
	defer func() {
		err := r.Close()
		if err != nil {
			log.Printf("close %q: %+v", u, err)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &modpack.StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	// Don’t read URLs larger than 1KiB.
	lr := io.LimitReader(r, 1024)

	var b strings.Builder
	if _, err := io.Copy(&b, lr); err != nil {
		return "", err
	}
	rawurl := strings.TrimSpace(b.String())
	if !strings.HasPrefix(rawurl, "http") {
		return "", fmt.Errorf("resolve %d/%d: unexpected payload", m.ProjectID, m.FileID)
	}
	return rawurl, nil
}
