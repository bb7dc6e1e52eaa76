package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const devVersion = "0.1.0-dev"

// Set at link time: -X github.com/openmined/davsync/internal/version.Version=...
var (
	AppName   = "DavSync"
	Version   = devVersion
	Revision  = "HEAD"
	BuildDate = ""
)

// fill uses the module version and VCS stamp when ldflags didn't set them.
func fill(mainVersion string, settings map[string]string) {
	if Version == devVersion || Version == "" {
		if mainVersion != "" && mainVersion != "(devel)" {
			Version = strings.TrimPrefix(mainVersion, "v")
		}
	}

	if Revision == "HEAD" || Revision == "" {
		if rev := settings["vcs.revision"]; rev != "" {
			if len(rev) > 12 {
				rev = rev[:12]
			}
			if settings["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			Revision = rev
		}
	}

	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

// Short returns `0.1.0 (5e23a4)`.
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// ShortWithApp returns `DavSync 0.1.0 (5e23a4)`.
func ShortWithApp() string {
	return AppName + " " + Short()
}

// Detailed returns `0.1.0 (5e23a4; go1.23.6; linux/amd64; 2024-05-01T12:00:00Z)`.
func Detailed() string {
	date := BuildDate
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (%s; %s; %s/%s; %s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH, date)
}

func DetailedWithApp() string {
	return AppName + " " + Detailed()
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	fill(info.Main.Version, settings)
}
