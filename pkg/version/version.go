// Package version holds build metadata of the placer binary.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags "-X github.com/rzbill/placer/pkg/version.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

// BuildInfo is the structured form of the build metadata.
type BuildInfo struct {
	Version        string `json:"version" yaml:"version"`
	Commit         string `json:"commit" yaml:"commit"`
	BuildTime      string `json:"buildTime" yaml:"buildTime"`
	GoVersion      string `json:"goVersion" yaml:"goVersion"`
	Platform       string `json:"platform" yaml:"platform"`
	CatalogVersion string `json:"catalogVersion,omitempty" yaml:"catalogVersion,omitempty"`
}

// Get returns the build metadata. catalogVersion may be empty.
func Get(catalogVersion string) BuildInfo {
	return BuildInfo{
		Version:        Version,
		Commit:         Commit,
		BuildTime:      BuildTime,
		GoVersion:      runtime.Version(),
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
		CatalogVersion: catalogVersion,
	}
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

// String renders the one-line form printed by `placer version`.
func (b BuildInfo) String() string {
	s := fmt.Sprintf("placer %s (%s) - %s %s", b.Version, shortCommit(b.Commit), b.BuildTime, b.Platform)
	if b.CatalogVersion != "" {
		s += ", catalog " + b.CatalogVersion
	}
	return s
}

// Info returns the one-line version string without catalog information.
func Info() string {
	return Get("").String()
}
