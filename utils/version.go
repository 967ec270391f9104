package utils

import "runtime"

// Version describes the running build.
type Version struct {
	Version   string `json:"version"`
	Branch    string `json:"branch"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Arch      string `json:"arch"`
}

var (
	version   = "0.0.0"
	branch    = "unknown"
	commit    = "unknown"
	buildDate = "unknown"
	arch      = runtime.GOOS + "/" + runtime.GOARCH
)

// SetVersion populates the package-level version variables. Empty values
// keep the defaults.
func SetVersion(versionStr, branchStr, commitStr, buildDateStr, archStr string) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&version, versionStr)
	set(&branch, branchStr)
	set(&commit, commitStr)
	set(&buildDate, buildDateStr)
	set(&arch, archStr)
}

// GetVersion constructs and returns the version information for the service.
func GetVersion() Version {
	return Version{
		Version:   version,
		Branch:    branch,
		Commit:    commit,
		BuildDate: buildDate,
		Arch:      arch,
	}
}

// String formats the version as "version (branch@commit)".
func (v Version) String() string {
	c := v.Commit
	if len(c) > 7 {
		c = c[:7]
	}
	return v.Version + " (" + v.Branch + "@" + c + ")"
}
