// Package buildinfo carries version metadata stamped at link time.
package buildinfo

// Set via -ldflags, for example:
//
//	-X 'github.com/m3rciful/lifeweeks/core/buildinfo.Version=v1.0.0'
//	-X 'github.com/m3rciful/lifeweeks/core/buildinfo.Commit=abcdef0'
var (
	Version = "dev"
	Commit  = "local"
	// Date is the build timestamp in RFC3339.
	Date = ""
)

// Info is the JSON shape reported by the health endpoint.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date,omitempty"`
}

// Current returns the stamped build metadata.
func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}
