// Package version reports the build identity of the branchstat binary.
package version

import (
	"runtime/debug"
)

// Build identity, set with -ldflags "-X" at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	develVersion   = "(devel)"
	vcsRevisionKey = "vcs.revision"
	vcsTimeKey     = "vcs.time"
	shortCommitLen = 12
)

// InitBinaryVersion fills values still at their defaults from the module
// build info embedded by "go install" and "go build".
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != develVersion {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case vcsRevisionKey:
			if Commit == "none" && setting.Value != "" {
				Commit = shorten(setting.Value)
			}
		case vcsTimeKey:
			if Date == "unknown" && setting.Value != "" {
				Date = setting.Value
			}
		}
	}
}

func shorten(rev string) string {
	if len(rev) > shortCommitLen {
		return rev[:shortCommitLen]
	}

	return rev
}
