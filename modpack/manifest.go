package modpack

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const manifestType = "minecraftModpack"

// Manifest is the modpack description bundled in the archive
// as manifest.json.
type Manifest struct {
	ManifestType    string `json:"manifestType"`
	ManifestVersion int    `json:"manifestVersion"`

	Minecraft MinecraftInstance `json:"minecraft"`

	Name    string `json:"name"`
	Version string `json:"version"`
	Author  string `json:"author"`

	Files     []File `json:"files"`
	Overrides string `json:"overrides"`

	// DirectDownloads lists extra files hosted outside CurseForge.
	DirectDownloads []DirectDownload `json:"directDownload"`
}

type MinecraftInstance struct {
	Version    string      `json:"version"`
	ModLoaders []ModLoader `json:"modLoaders"`
}

type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

type File struct {
	ProjectID int  `json:"projectID"`
	FileID    int  `json:"fileID"`
	Required  bool `json:"required"`
}

type DirectDownload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// ParseManifest decodes and validates a manifest.json document.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.ManifestType != manifestType {
		return nil, fmt.Errorf("%w: manifest type %q", ErrNotModpack, m.ManifestType)
	}
	return &m, nil
}

// ForgeVersion returns the Forge loader version declared by the
// manifest, stripped of the "forge-" prefix. The primary loader wins
// when several are declared.
func (m *Manifest) ForgeVersion() (string, bool) {
	const prefix = "forge-"
	var version string
	for _, l := range m.Minecraft.ModLoaders {
		if !strings.HasPrefix(l.ID, prefix) {
			continue
		}
		v := strings.TrimPrefix(l.ID, prefix)
		if l.Primary {
			return v, true
		}
		if version == "" {
			version = v
		}
	}
	return version, version != ""
}

// Mods flattens the manifest files and direct downloads into the
// download list consumed by the fetcher.
func (m *Manifest) Mods() []Mod {
	mods := make([]Mod, 0, len(m.Files)+len(m.DirectDownloads))
	for _, f := range m.Files {
		mods = append(mods, Mod{
			Method:    MethodCurse,
			ProjectID: f.ProjectID,
			FileID:    f.FileID,
		})
	}
	for _, d := range m.DirectDownloads {
		if d.URL == "" {
			continue
		}
		mods = append(mods, Mod{
			Method: MethodHTTP,
			File:   d.URL,
			Path:   d.Filename,
		})
	}
	return mods
}
