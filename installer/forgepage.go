package installer

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"golang.org/x/net/html"

	"github.com/andybalholm/cascadia"

	"github.com/servpack/servpack/modpack"
)

var installerSel = cascadia.MustCompile(`a[href$="-installer.jar"]`)

const defaultFilesIndexURL = "https://files.minecraftforge.net/net/minecraftforge/forge/index_%s.html"

func forgePageURL(template, mcVersion string) string {
	return fmt.Sprintf(template, url.QueryEscape(mcVersion))
}

// scrapeInstallerURL finds an installer link on the Forge files page
// for the Minecraft version. Used when every table candidate is
// absent from the maven repository.
func scrapeInstallerURL(c *http.Client, template, mcVersion string) (string, error) {
	u := forgePageURL(template, mcVersion)
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

	// Don’t read HTML pages larger than 1MiB.
	lr := io.LimitReader(r, 1024*1024)

	root, err := html.Parse(lr)
	if err != nil {
		return "", err
	}
	n := installerSel.MatchFirst(root)
	if n == nil || n.Type != html.ElementNode {
		return "", modpack.ErrUnexpectedNode
	}
	if n.Namespace != "" || n.Data != "a" {
		return "", modpack.ErrUnexpectedNode
	}
	for _, attr := range n.Attr {
		if attr.Namespace != "" {
			continue
		}
		if attr.Key != "href" {
			continue
		}
		return resolveRef(u, attr.Val)
	}
	return "", modpack.ErrUnexpectedNode
}

func resolveRef(base, ref string) (string, error) {
	bu, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return bu.ResolveReference(ru).String(), nil
}
