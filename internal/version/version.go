package version

import (
	"runtime/debug"
)

// Info contains build information supplied during compile time.
type Info struct {
	*debug.BuildInfo
	Version string `json:"version"`
}

// version gets filled by a linker argument and should contain the app version.
var version string

// Get version related embedded information.
func Get() Info {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		panic("no build info available: binary was built without module support")
	}

	return Info{buildInfo, version}
}
