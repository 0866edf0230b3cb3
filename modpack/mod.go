package modpack

const (
	// MethodCurse downloads through the CurseForge addon API.
	MethodCurse = "curse"
	// MethodHTTP downloads a plain URL.
	MethodHTTP = "http"
	// MethodFile reads a local file.
	MethodFile = ""
)

type Mod struct {
	// Path is the preferred file name, when known up front.
	// Curse mods learn their name from the resolved download URL.
	Path string

	// Method is the method used for downloading the mod.
	Method string

	// File is the raw URL for the "http" method and the local
	// path for the file method.
	File string

	// ProjectID and FileID identify a CurseForge project file.
	ProjectID int
	FileID    int

	// Sums is a list of expected file checksums.
	Sums []string
}
