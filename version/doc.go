// Package version reports the build of the segmentation binary.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/segmentation/version.Version=1.0.0" ./cmd/segmentation
//
// BigQuery jobs carry the version in their labels,
// and cloud clients identify themselves with UserAgent.
package version
