package version

import (
	"fmt"
	"runtime/debug"
)

const name = "lightldap"

type gitInfo struct {
	BuildTime string
	Commit    string
	Dirty     bool
}

// GetVersion describes the running binary for the --version flag.
func GetVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s %s\nNon-release build", name, Version)
	}

	return describe(vcsInfo(info.Settings))
}

func describe(g *gitInfo) string {
	if !g.Dirty {
		return fmt.Sprintf("%s %s\nBuild time: %s\nCommit: %s", name, Version, g.BuildTime, g.Commit)
	}

	return fmt.Sprintf("%s\nNon-release build based on tag %s\nBuild time: %s\nCommit: %s", name, Version, g.BuildTime, g.Commit)
}

// Revision is the vcs revision the binary was built from, or "n/a".
func Revision() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return vcsInfo(info.Settings).Commit
	}
	return "n/a"
}

func vcsInfo(settings []debug.BuildSetting) *gitInfo {
	info := &gitInfo{BuildTime: "unknown", Commit: "unknown"}

	for _, v := range settings {
		switch v.Key {
		case "vcs.revision":
			info.Commit = v.Value
		case "vcs.modified":
			info.Dirty = v.Value == "true"
		case "vcs.time":
			info.BuildTime = v.Value
		}
	}

	return info
}
