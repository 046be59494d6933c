// Package versions reports which drive-mirror build is running.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknown = "unknown"

// Set at link time, e.g. -ldflags "-X .../versions.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// VersionInfo describes the running binary
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// String renders the one-line form printed by `drive-mirror version`
func (v VersionInfo) String() string {
	return fmt.Sprintf("drive-mirror %s (commit %s, built %s, %s, %s)",
		v.Version, v.Commit, v.BuildDate, v.GoVersion, v.Platform)
}

// GetVersionInfo combines the link-time values with the VCS stamp Go embeds
// in the binary
func GetVersionInfo() VersionInfo {
	info, _ := debug.ReadBuildInfo()
	return resolve(Version, Commit, BuildDate, info)
}

// resolve fills whatever the linker left unset from the build info. Only dev
// builds consult it, so a release never reports the VCS state of its builder.
func resolve(version, commit, buildDate string, info *debug.BuildInfo) VersionInfo {
	if version == "dev" && info != nil {
		vcs := vcsSettings(info)
		if commit == unknown && vcs["vcs.revision"] != "" {
			commit = vcs["vcs.revision"]
			if vcs["vcs.modified"] == "true" {
				commit += "-dirty"
			}
		}
		if buildDate == unknown && vcs["vcs.time"] != "" {
			buildDate = vcs["vcs.time"]
		}
	}

	if version == "dev" && commit != unknown {
		version = fmt.Sprintf("build-%.8s", commit)
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: formatBuildDate(buildDate),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func vcsSettings(info *debug.BuildInfo) map[string]string {
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// formatBuildDate leaves anything that is not RFC 3339 as it is
func formatBuildDate(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}
