package installer

import (
	"fmt"
	"strings"
)

const mavenURL = "https://files.minecraftforge.net/maven/net/minecraftforge/forge/%[1]s/forge-%[1]s-installer.jar"

// Descriptor maps a Minecraft version range to a Forge installer
// location.
type Descriptor struct {
	// Prefix is the Minecraft version or version prefix covered by
	// this entry, e.g. "1.7" covers "1.7.2" and "1.7.10".
	Prefix string

	// URL is the installer URL template. The verb is the full
	// "<mc>-<forge>" version string.
	URL string

	// AltMCSuffix retries with a "<mc>-<forge>-<mc>" version when
	// the plain URL is absent. Some 1.7 era builds were published
	// under that scheme.
	AltMCSuffix bool
}

// URLs returns the candidate installer URLs, most likely first.
func (d Descriptor) URLs(mcVersion, forgeVersion string) []string {
	full := fmt.Sprintf("%s-%s", mcVersion, forgeVersion)
	urls := []string{fmt.Sprintf(d.URL, full)}
	if d.AltMCSuffix {
		alt := fmt.Sprintf("%s-%s", full, mcVersion)
		urls = append(urls, fmt.Sprintf(d.URL, alt))
	}
	return urls
}

// table enumerates the supported Minecraft versions.
var table = []Descriptor{
	{Prefix: "1.6", URL: mavenURL, AltMCSuffix: true},
	{Prefix: "1.7", URL: mavenURL, AltMCSuffix: true},
	{Prefix: "1.8", URL: mavenURL},
}

// Select returns the installer descriptor for a Minecraft version.
func Select(mcVersion string) (Descriptor, error) {
	for _, d := range table {
		if matchVersion(mcVersion, d.Prefix) {
			return d, nil
		}
	}
	return Descriptor{}, &UnsupportedVersionError{Version: mcVersion}
}

func matchVersion(version, prefix string) bool {
	return version == prefix || strings.HasPrefix(version, prefix+".")
}

// Override is a user-configured table entry.
type Override struct {
	Prefix string
	URL    string
}
